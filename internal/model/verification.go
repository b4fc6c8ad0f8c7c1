package model

import "strings"

// VerificationStatus is the closed set of institution-verification outcomes.
type VerificationStatus string

const (
	StatusBoardVerified     VerificationStatus = "BOARD_VERIFIED"
	StatusIssuerVerified    VerificationStatus = "ISSUER_VERIFIED"
	StatusVerifiedExact     VerificationStatus = "VERIFIED_EXACT"
	StatusVerifiedFuzzy     VerificationStatus = "VERIFIED_FUZZY"
	StatusVerifiedTokenSet  VerificationStatus = "VERIFIED_TOKEN_SET"
	StatusNotFound          VerificationStatus = "NOT_FOUND"
	StatusNameMissing       VerificationStatus = "INSTITUTE_NAME_MISSING"
	StatusInvalidName       VerificationStatus = "INVALID_INSTITUTE_NAME"
)

// Verified reports whether the status is a verified outcome. The invariant is
// purely lexical: VERIFIED_ prefix or _VERIFIED suffix.
func (s VerificationStatus) Verified() bool {
	return strings.HasPrefix(string(s), "VERIFIED_") || strings.HasSuffix(string(s), "_VERIFIED")
}

// AuthorityType identifies which rule established the institution's standing.
type AuthorityType string

const (
	AuthorityBoard         AuthorityType = "BOARD"
	AuthorityPrivateIssuer AuthorityType = "PRIVATE_ISSUER"
	AuthorityRegistry      AuthorityType = "APPROVED_INSTITUTE_REGISTRY"
)

// RiskLevel is the binary fraud-risk verdict.
type RiskLevel string

const (
	RiskLow  RiskLevel = "LOW"
	RiskHigh RiskLevel = "HIGH"
)

// FraudChecks carries the per-certificate risk level. Once a stage sets HIGH
// it stays HIGH for the rest of the run; only an authority short-circuit,
// which returns before any other stage runs, produces LOW unconditionally.
type FraudChecks struct {
	RiskLevel RiskLevel `json:"risk_level"`
}

// VerificationOutcome is attached under institution_details.verification.
type VerificationOutcome struct {
	Verified         bool               `json:"verified"`
	Status           VerificationStatus `json:"status"`
	MatchScore       *int               `json:"match_score,omitempty"`
	MatchedInstitute string             `json:"matched_institute,omitempty"`
	InputVariant     string             `json:"input_variant,omitempty"`
	AuthorityType    AuthorityType      `json:"authority_type"`
	Authority        string             `json:"authority"`
	Source           string             `json:"source,omitempty"`
}

// LogoMethod names the visual-verification strategy that produced a result.
type LogoMethod string

const (
	LogoMethodCLIP    LogoMethod = "CLIP"
	LogoMethodORB     LogoMethod = "ORB"
	LogoMethodSkipped LogoMethod = "SKIPPED"
)

// LogoVerification is the visual verifier's result. Supporting signal only;
// it is never the sole basis for a verdict.
type LogoVerification struct {
	Verified bool       `json:"verified"`
	Method   LogoMethod `json:"method"`
	Score    *float64   `json:"score,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

// ConsistencyReport is the batch-level identity agreement result. Scores are
// 0-100 fuzzy similarities; thresholds are asymmetric on purpose (identity
// fields are stricter than parentage fields).
type ConsistencyReport struct {
	NameConsistency       int       `json:"name_consistency"`
	FatherNameConsistency int       `json:"father_name_consistency"`
	RiskLevel             RiskLevel `json:"risk_level"`
}

// IntPtr returns a pointer to v. Convenience for optional match scores.
func IntPtr(v int) *int { return &v }

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 { return &v }
