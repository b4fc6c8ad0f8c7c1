// Package registry loads the read-only dataset of known institutions. Each
// row is treated as a bag of fields concatenated before normalization; no
// fixed-column schema is assumed.
package registry

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/credent-works/certverify-cli/internal/textnorm"
)

// Entry is one known-institution row: the raw cells and the normalized
// concatenation the matcher compares against.
type Entry struct {
	Fields     []string
	Normalized string
}

// Registry is an immutable set of institution entries. Safe to share across
// concurrent submissions; nothing mutates it after Load.
type Registry struct {
	entries []Entry
	source  string
}

// Entries returns the loaded entries.
func (r *Registry) Entries() []Entry { return r.entries }

// Len returns the number of entries.
func (r *Registry) Len() int { return len(r.entries) }

// Source names where the registry was loaded from, for diagnostics.
func (r *Registry) Source() string { return r.source }

// Options configures registry loading.
type Options struct {
	SheetName string // XLSX only; default first sheet
	SkipRows  int    // header rows to skip
}

// Load reads a registry file, dispatching on extension (.xlsx or .csv).
// A load failure is an I/O error, never an empty registry: the check could
// not be performed, which is not the same as "not found".
func Load(path string, opts Options) (*Registry, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(path, opts)
	case ".csv":
		rows, err = readCSV(path, opts)
	default:
		return nil, eris.Errorf("registry: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	reg := FromRows(rows, filepath.Base(path))
	zap.L().Info("registry: loaded institutions",
		zap.String("source", reg.source),
		zap.Int("entries", reg.Len()),
	)
	return reg, nil
}

// FromRows builds a registry from pre-read rows. Rows that normalize to
// nothing are dropped.
func FromRows(rows [][]string, source string) *Registry {
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		normalized := textnorm.Normalize(strings.Join(row, " "))
		if normalized == "" {
			continue
		}
		entries = append(entries, Entry{Fields: row, Normalized: normalized})
	}
	return &Registry{entries: entries, source: source}
}
