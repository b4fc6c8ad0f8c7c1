package model

// Details is one loosely-typed section of an extracted certificate. Upstream
// OCR+LLM extraction guarantees nothing about which keys are present; a missing
// key means "unknown", never an error.
type Details map[string]any

// GetString returns the value for key as a string, or "" if the key is absent,
// nil, or not string-shaped.
func (d Details) GetString(key string) string {
	if d == nil {
		return ""
	}
	v, ok := d[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// ExtractedCertificate is the unit of work: one certificate's extraction plus
// the verification annotations attached by the pipeline. The four detail
// sections are opaque bags owned by the invocation that produced them.
type ExtractedCertificate struct {
	StudentDetails      Details `json:"student_details,omitempty"`
	AcademicDetails     Details `json:"academic_details,omitempty"`
	InstitutionDetails  Details `json:"institution_details,omitempty"`
	CertificateMetadata Details `json:"certificate_metadata,omitempty"`

	// RawText is the OCR text the extraction came from, when the caller has it.
	// Used only for issuance-marker detection (DigiLocker), never for scoring.
	RawText    string `json:"raw_text,omitempty"`
	SourceFile string `json:"source_file,omitempty"`
	// LogoPath points at the cropped candidate logo image, if one was detected.
	LogoPath string `json:"logo_path,omitempty"`

	FraudChecks     *FraudChecks         `json:"fraud_checks,omitempty"`
	ConfidenceScore float64              `json:"confidence_score"`
	VerifiedProfile *VerifiedProfile     `json:"verified_profile,omitempty"`
	Explainability  *Explainability      `json:"explainability,omitempty"`
	Summary         *VerificationSummary `json:"verification_summary,omitempty"`
}

// InstitutionName returns the canonical institution name field. Alias
// canonicalization at ingest collapses the upstream spellings onto this key.
func (c *ExtractedCertificate) InstitutionName() string {
	return c.InstitutionDetails.GetString("institution_name")
}

// BoardName returns the examining-board name, if the extraction carries one.
func (c *ExtractedCertificate) BoardName() string {
	return c.InstitutionDetails.GetString("board_name")
}

// VerifiedProfile records whether the certificate cleared verification without
// manual review.
type VerifiedProfile struct {
	AutoVerified bool `json:"auto_verified"`
}

// Explainability is the human-readable trace for a certificate's verdict:
// supporting reasons when risk is LOW, contributing risk factors when HIGH.
type Explainability struct {
	WhyVerified []string `json:"why_verified"`
	WhyRisk     []string `json:"why_risk"`
}

// VerificationSummary is a flattened read-only projection of a certificate's
// verification state for downstream consumers.
type VerificationSummary struct {
	AuthorityType       AuthorityType      `json:"authority_type"`
	Authority           string             `json:"authority"`
	VerificationStatus  VerificationStatus `json:"verification_status"`
	InstitutionVerified bool               `json:"institution_verified"`
	RiskLevel           RiskLevel          `json:"risk_level"`
	ConfidenceScore     float64            `json:"confidence_score"`
	AutoVerified        bool               `json:"auto_verified"`
	DigiLockerVerified  bool               `json:"digilocker_verified,omitempty"`
}

// Submission is one batch of certificates verified together. The consistency
// check compares identity fields across all of them.
type Submission struct {
	Certificates []*ExtractedCertificate `json:"certificates"`
}

// SubmissionResult is the batch-level output: the annotated certificates, the
// cross-certificate consistency report, and the overall risk verdict.
type SubmissionResult struct {
	RunID        string                  `json:"run_id,omitempty"`
	Certificates []*ExtractedCertificate `json:"certificates"`
	Consistency  ConsistencyReport       `json:"cross_certificate_consistency"`
	FinalRisk    RiskLevel               `json:"final_risk_level"`
	Mapped       []CertificateRecord     `json:"mapped,omitempty"`
	Phases       []PhaseResult           `json:"phases,omitempty"`
}
