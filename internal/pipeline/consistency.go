package pipeline

import (
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"go.uber.org/zap"

	"github.com/credent-works/certverify-cli/internal/model"
)

const (
	// Identity fields are stricter than parentage fields; the asymmetry is
	// intentional.
	nameConsistencyThreshold   = 85
	fatherConsistencyThreshold = 80
	// consistencyPenalty is subtracted from every certificate's confidence
	// when the batch disagrees on identity.
	consistencyPenalty = 0.20
)

// checkConsistency compares identity fields across the batch. For each field
// the score is the minimum similarity between the first collected value and
// every other value (first-vs-rest, not all-pairs; reordering the batch can
// change the result, and that is the contract). Fewer than two values means
// nothing to contradict: score 100. Raw values are compared, not normalized
// ones: identity fields should agree verbatim across documents.
func checkConsistency(certs []*model.ExtractedCertificate) model.ConsistencyReport {
	var names, fathers []string
	for _, cert := range certs {
		if name := cert.StudentDetails.GetString("student_name"); name != "" {
			names = append(names, name)
		}
		if father := cert.StudentDetails.GetString("father_name"); father != "" {
			fathers = append(fathers, father)
		}
	}

	report := model.ConsistencyReport{
		NameConsistency:       firstVsRestMin(names),
		FatherNameConsistency: firstVsRestMin(fathers),
		RiskLevel:             model.RiskLow,
	}
	if report.NameConsistency < nameConsistencyThreshold ||
		report.FatherNameConsistency < fatherConsistencyThreshold {
		report.RiskLevel = model.RiskHigh
	}
	return report
}

func firstVsRestMin(values []string) int {
	if len(values) < 2 {
		return 100
	}
	min := 100
	for _, v := range values[1:] {
		if score := fuzzy.Ratio(values[0], v); score < min {
			min = score
		}
	}
	return min
}

// applyConsistencyPenalty retroactively downgrades every certificate in a
// batch that failed the consistency check. Runs after per-certificate
// scoring is complete; the summary projections are updated to match.
func applyConsistencyPenalty(certs []*model.ExtractedCertificate) {
	zap.L().Warn("consistency: identity mismatch across batch, downgrading all certificates",
		zap.Int("certificates", len(certs)))

	for _, cert := range certs {
		if cert.FraudChecks == nil {
			cert.FraudChecks = &model.FraudChecks{}
		}
		cert.FraudChecks.RiskLevel = model.RiskHigh
		cert.ConfidenceScore -= consistencyPenalty

		if cert.Explainability != nil {
			cert.Explainability.WhyRisk = append(cert.Explainability.WhyRisk,
				"Identity fields inconsistent across submitted certificates")
		}
		if cert.Summary != nil {
			cert.Summary.RiskLevel = model.RiskHigh
			cert.Summary.ConfidenceScore = cert.ConfidenceScore
		}
	}
}
