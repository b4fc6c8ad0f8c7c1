package pipeline

import (
	"strings"
	"time"

	"github.com/credent-works/certverify-cli/internal/model"
)

// mapRecord flattens one scored certificate into the storage projection
// downstream schema mapping consumes.
func mapRecord(cert *model.ExtractedCertificate) model.CertificateRecord {
	summary := cert.Summary
	if summary == nil {
		summary = &model.VerificationSummary{RiskLevel: model.RiskHigh}
	}

	record := model.CertificateRecord{
		DocumentType:       documentTypeFromFilename(cert.SourceFile),
		StudentName:        cert.StudentDetails.GetString("student_name"),
		RollNumber:         firstNonEmpty(cert.StudentDetails.GetString("roll_number"), cert.AcademicDetails.GetString("roll_number")),
		RegistrationNumber: cert.StudentDetails.GetString("registration_number"),
		FatherName:         cert.StudentDetails.GetString("father_name"),
		MotherName:         cert.StudentDetails.GetString("mother_name"),
		Degree:             cert.AcademicDetails.GetString("degree"),
		Branch:             cert.AcademicDetails.GetString("branch"),
		Semester:           cert.AcademicDetails.GetString("semester"),
		Examination:        cert.AcademicDetails.GetString("examination"),
		IssuedDate:         parseIssuedDate(cert.CertificateMetadata.GetString("issued_date")),
		InstitutionName:    cert.InstitutionName(),
		OrganizationType:   organizationType(cert),
		VerificationSource: verificationSource(cert, summary),
		VerificationStatus: recordStatus(summary),
		Verdict:            verdict(summary),
	}

	if summary.ConfidenceScore != 0 {
		record.ForgeryRiskScore = model.IntPtr(int(summary.ConfidenceScore * 100))
	}
	if logo, ok := cert.InstitutionDetails["logo_verification"].(model.LogoVerification); ok {
		record.LogoVerification = &logo
	}

	return record
}

// documentTypeFromFilename infers the document type from the source file
// name. Defaults to DEGREE.
func documentTypeFromFilename(name string) model.DocumentType {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "marksheet") || strings.Contains(lower, "mark"):
		return model.DocumentMarksheet
	case strings.Contains(lower, "internship"):
		return model.DocumentInternship
	case strings.Contains(lower, "course") || strings.Contains(lower, "certificate"):
		return model.DocumentCourse
	default:
		return model.DocumentDegree
	}
}

func organizationType(cert *model.ExtractedCertificate) model.OrganizationType {
	name := strings.ToLower(cert.InstitutionName())
	switch {
	case cert.BoardName() != "":
		return model.OrgBoard
	case strings.Contains(name, "university"):
		return model.OrgUniversity
	case strings.Contains(name, "college"):
		return model.OrgCollege
	case strings.Contains(name, "company"):
		return model.OrgCompany
	default:
		return model.OrgUnknown
	}
}

func verificationSource(cert *model.ExtractedCertificate, summary *model.VerificationSummary) string {
	switch {
	case summary.DigiLockerVerified:
		return "DigiLocker"
	case summary.AuthorityType == model.AuthorityBoard:
		return "NAD"
	default:
		return "OCR"
	}
}

func recordStatus(summary *model.VerificationSummary) model.RecordStatus {
	switch {
	case summary.AutoVerified && summary.RiskLevel == model.RiskLow:
		return model.RecordVerified
	case summary.ConfidenceScore > 0.7:
		return model.RecordPartiallyVerified
	case summary.RiskLevel == model.RiskHigh:
		return model.RecordFailed
	default:
		return model.RecordPending
	}
}

func verdict(summary *model.VerificationSummary) model.Verdict {
	switch {
	case summary.RiskLevel == model.RiskLow && summary.AutoVerified:
		return model.VerdictLegitimate
	case summary.RiskLevel == model.RiskHigh:
		return model.VerdictSuspicious
	case summary.ConfidenceScore > 0.7:
		return model.VerdictLikelyLegitimate
	default:
		return model.VerdictRequiresReview
	}
}

// parseIssuedDate accepts the extraction's ISO date field. A malformed date
// is recovered as nil, never an error.
func parseIssuedDate(raw string) *string {
	if raw == "" {
		return nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	iso := parsed.Format("2006-01-02")
	return &iso
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
