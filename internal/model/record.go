package model

// DocumentType classifies the certificate document.
type DocumentType string

const (
	DocumentDegree     DocumentType = "DEGREE"
	DocumentMarksheet  DocumentType = "MARKSHEET"
	DocumentInternship DocumentType = "INTERNSHIP"
	DocumentCourse     DocumentType = "COURSE"
	DocumentOther      DocumentType = "OTHER"
)

// OrganizationType classifies the issuing organization.
type OrganizationType string

const (
	OrgBoard      OrganizationType = "BOARD"
	OrgUniversity OrganizationType = "UNIVERSITY"
	OrgCollege    OrganizationType = "COLLEGE"
	OrgCompany    OrganizationType = "COMPANY"
	OrgUnknown    OrganizationType = "UNKNOWN"
)

// RecordStatus is the coarse verification state a stored record carries.
type RecordStatus string

const (
	RecordVerified          RecordStatus = "VERIFIED"
	RecordPartiallyVerified RecordStatus = "PARTIALLY_VERIFIED"
	RecordFailed            RecordStatus = "FAILED"
	RecordPending           RecordStatus = "PENDING"
)

// Verdict is the plausibility call a stored record carries.
type Verdict string

const (
	VerdictLegitimate       Verdict = "LEGITIMATE"
	VerdictSuspicious       Verdict = "SUSPICIOUS"
	VerdictLikelyLegitimate Verdict = "LIKELY_LEGITIMATE"
	VerdictRequiresReview   Verdict = "REQUIRES_REVIEW"
)

// CertificateRecord is the flattened storage projection of one verified
// certificate. Downstream schema mapping consumes this shape as-is.
type CertificateRecord struct {
	DocumentType         DocumentType      `json:"document_type"`
	StudentName          string            `json:"extracted_student_name,omitempty"`
	RollNumber           string            `json:"extracted_roll_number,omitempty"`
	RegistrationNumber   string            `json:"extracted_registration_number,omitempty"`
	FatherName           string            `json:"extracted_father_name,omitempty"`
	MotherName           string            `json:"extracted_mother_name,omitempty"`
	Degree               string            `json:"extracted_degree,omitempty"`
	Branch               string            `json:"extracted_branch,omitempty"`
	Semester             string            `json:"extracted_semester,omitempty"`
	Examination          string            `json:"extracted_examination,omitempty"`
	IssuedDate           *string           `json:"issued_date,omitempty"`
	InstitutionName      string            `json:"extracted_institution_name,omitempty"`
	OrganizationType     OrganizationType  `json:"extracted_organization_type"`
	VerificationSource   string            `json:"verification_source"`
	VerificationStatus   RecordStatus      `json:"verification_status"`
	ForgeryRiskScore     *int              `json:"forgery_risk_score,omitempty"`
	Verdict              Verdict           `json:"verdict"`
	LogoVerification     *LogoVerification `json:"extracted_visuals,omitempty"`
}
