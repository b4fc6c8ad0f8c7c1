package pipeline

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/credent-works/certverify-cli/internal/model"
)

// Section names, matching the JSON keys of the extraction payload.
const (
	sectionStudent     = "student_details"
	sectionAcademic    = "academic_details"
	sectionInstitution = "institution_details"
	sectionMetadata    = "certificate_metadata"
)

// SectionAliases maps section name → canonical field → known alias spellings.
type SectionAliases map[string]map[string][]string

// builtinAliases lists, per section, the spellings the OCR+LLM stage is known
// to emit. The tables are section-scoped on purpose: a bare "name" means the
// student in student_details but the institution in institution_details.
// Canonicalization runs once at ingestion so every scoring stage can be
// schema-strict against canonical names only.
var builtinAliases = SectionAliases{
	sectionStudent: {
		"roll_number": {
			"roll no", "roll#", "enrollment number", "enrollment no", "enrollment id",
			"enrolment number", "student id", "student number", "registration number",
			"uid", "university id", "student roll", "candidate id", "exam roll",
			"exam roll number", "examination roll",
		},
		"registration_number": {
			"reg no", "reg#", "registration no", "registration id", "reg number",
			"regd no", "registration code",
		},
		"student_name": {
			"name", "student name", "candidate name", "applicant name",
			"name of student", "name of candidate", "full name",
			"candidate's name", "student's name",
		},
		"father_name": {
			"father name", "father's name", "father", "father's full name",
			"father / guardian", "name of father", "paternal name",
		},
		"mother_name": {
			"mother name", "mother's name", "mother", "mother's full name",
			"mother's maiden name", "name of mother", "maternal name",
		},
	},
	sectionAcademic: {
		"roll_number": {
			"roll no", "roll#", "exam roll", "exam roll number", "examination roll",
		},
		"degree": {
			"degree name", "degree awarded", "degree conferred", "qualification",
			"degree title", "programme name", "program name", "course name", "course",
			"academic program", "degree program", "degree of",
		},
		"branch": {
			"specialization", "specialisation", "major", "discipline", "stream",
			"field of study", "branch of study",
		},
		"semester": {
			"sem", "academic year", "academic session", "session", "year of study",
			"final semester", "final year",
		},
		"examination": {
			"exam", "exam type", "examination type", "final examination",
			"end semester examination", "end sem exam", "exam name",
		},
	},
	sectionInstitution: {
		"institution_name": {
			"name", "institution", "college", "college name", "university",
			"university name", "school", "school name", "institute", "institute name",
			"educational institution", "name of institution", "name of college",
			"name of university", "issuing institution", "awarding body", "issuing body",
		},
	},
	sectionMetadata: {
		"issued_date": {
			"date issued", "date of issue", "issue date", "completion date",
			"date of completion", "graduation date", "date awarded", "award date",
			"conferred date", "certification date", "date",
		},
	},
}

// Canonicalizer rewrites aliased field names onto canonical ones, one alias
// index per section.
type Canonicalizer struct {
	sections map[string]map[string]string // section → lowercased alias → canonical
}

// NewCanonicalizer builds the per-section alias indexes from the built-in
// tables plus any overrides. Override aliases win over built-in ones.
func NewCanonicalizer(overrides SectionAliases) *Canonicalizer {
	sections := make(map[string]map[string]string, len(builtinAliases))
	merge := func(section string, canonical string, aliases []string) {
		index := sections[section]
		if index == nil {
			index = make(map[string]string)
			sections[section] = index
		}
		for _, alias := range aliases {
			index[strings.ToLower(strings.TrimSpace(alias))] = canonical
		}
	}

	for section, fields := range builtinAliases {
		for canonical, aliases := range fields {
			merge(section, canonical, aliases)
		}
	}
	for section, fields := range overrides {
		for canonical, aliases := range fields {
			merge(section, canonical, aliases)
		}
	}
	return &Canonicalizer{sections: sections}
}

// LoadAliasOverrides reads extra alias mappings from a YAML file shaped as
// section → canonical-name → list of aliases under a top-level "aliases" key.
func LoadAliasOverrides(path string) (SectionAliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read alias overrides %s", path)
	}

	var wrapper struct {
		Aliases SectionAliases `yaml:"aliases"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "ingest: parse alias overrides")
	}
	return wrapper.Aliases, nil
}

// CanonicalField maps one field name within a section to its canonical form,
// or returns the input unchanged when no alias is known there.
func (c *Canonicalizer) CanonicalField(section, name string) string {
	if canonical, ok := c.sections[section][strings.ToLower(strings.TrimSpace(name))]; ok {
		return canonical
	}
	return name
}

// Apply canonicalizes the field names of every section in place and returns
// the number of fields rewritten. On collision the already-canonical key
// wins, so canonicalization never clobbers a value the extraction put under
// the right name.
func (c *Canonicalizer) Apply(cert *model.ExtractedCertificate) int {
	var rewritten int
	cert.StudentDetails, rewritten = c.applySection(sectionStudent, cert.StudentDetails, rewritten)
	cert.AcademicDetails, rewritten = c.applySection(sectionAcademic, cert.AcademicDetails, rewritten)
	cert.InstitutionDetails, rewritten = c.applySection(sectionInstitution, cert.InstitutionDetails, rewritten)
	cert.CertificateMetadata, rewritten = c.applySection(sectionMetadata, cert.CertificateMetadata, rewritten)
	return rewritten
}

func (c *Canonicalizer) applySection(section string, details model.Details, rewritten int) (model.Details, int) {
	if details == nil {
		return nil, rewritten
	}

	out := make(model.Details, len(details))
	// Canonical keys first so aliases cannot overwrite them.
	for key, value := range details {
		if c.CanonicalField(section, key) == key {
			out[key] = value
		}
	}
	for key, value := range details {
		canonical := c.CanonicalField(section, key)
		if canonical == key {
			continue
		}
		if _, exists := out[canonical]; exists {
			zap.L().Debug("ingest: dropping aliased duplicate field",
				zap.String("section", section),
				zap.String("alias", key),
				zap.String("canonical", canonical),
			)
			continue
		}
		out[canonical] = value
		rewritten++
	}
	return out, rewritten
}
