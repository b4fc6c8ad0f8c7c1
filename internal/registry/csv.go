package registry

import (
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"
)

// readCSV reads all rows of a CSV registry file.
func readCSV(path string, opts Options) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: open csv %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // rows are bags of fields, widths vary

	records, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "registry: parse csv %s", path)
	}

	if opts.SkipRows > 0 && opts.SkipRows < len(records) {
		records = records[opts.SkipRows:]
	} else if opts.SkipRows >= len(records) {
		records = nil
	}

	return records, nil
}
