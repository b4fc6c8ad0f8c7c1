package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/credent-works/certverify-cli/internal/model"
)

const (
	// defaultConfidence is the starting confidence before any signal lands.
	defaultConfidence = 0.70
	// registryVerifiedConfidence / registryMissConfidence are the matcher's
	// two confidence outcomes.
	registryVerifiedConfidence = 0.95
	registryMissConfidence     = 0.45
	// logoPenalty is subtracted when the visual check ran and failed.
	// Confidence is deliberately not clamped afterwards.
	logoPenalty = 0.20
	// digiLockerBoost rewards issuance markers in the raw OCR text. This is
	// the one adjustment that caps at 1.0.
	digiLockerBoost = 0.05
)

// digiLockerMarkers are raw-text fragments indicating the document came
// through a government digital-issuance channel.
var digiLockerMarkers = []string{
	"digilocker",
	"national academic depository",
	"digitally signed",
	"it act 2000",
}

// assessment is the per-certificate accumulator threaded through the scoring
// stages. Later stages see earlier stages' annotations without any shared
// mutable state.
type assessment struct {
	cert         *model.ExtractedCertificate
	outcome      model.VerificationOutcome
	logo         *model.LogoVerification
	risk         model.RiskLevel
	confidence   float64
	autoVerified bool
}

// scoreCertificate runs the per-certificate state machine: authority
// short-circuits, then registry lookup, then the corrective visual signal.
func (p *Pipeline) scoreCertificate(ctx context.Context, cert *model.ExtractedCertificate) {
	a := assessment{
		cert:       cert,
		risk:       model.RiskLow,
		confidence: defaultConfidence,
	}

	if outcome, confidence := classifyAuthority(cert, p.issuers); outcome != nil {
		a.outcome = *outcome
		a.confidence = confidence
		a.risk = model.RiskLow
		a.autoVerified = true
		p.finalize(&a)
		return
	}

	a.outcome = p.lookupInstitution(ctx, cert.InstitutionName())
	a.outcome.AuthorityType = model.AuthorityRegistry
	a.outcome.Authority = p.registryAuthority

	if a.outcome.Verified {
		a.risk = model.RiskLow
		a.autoVerified = true
		a.confidence = registryVerifiedConfidence
	} else {
		a.risk = model.RiskHigh
		a.autoVerified = false
		a.confidence = registryMissConfidence
	}

	// Visual check: corrective, not determinative. A failed check raises
	// risk and cuts confidence but never overturns a verified institution
	// status.
	logo := p.verifier.Verify(ctx, p.referenceLogoFor(cert), cert.LogoPath)
	a.logo = &logo
	if logo.Method != model.LogoMethodSkipped && !logo.Verified {
		a.risk = model.RiskHigh
		a.confidence -= logoPenalty
	}

	p.finalize(&a)
}

// finalize applies the DigiLocker boost, builds the explainability trace and
// summary projection, and attaches everything to the certificate.
func (p *Pipeline) finalize(a *assessment) {
	digiLocker := detectDigiLocker(a.cert.RawText)
	if digiLocker {
		a.confidence += digiLockerBoost
		if a.confidence > 1.0 {
			a.confidence = 1.0
		}
	}

	cert := a.cert
	cert.FraudChecks = &model.FraudChecks{RiskLevel: a.risk}
	cert.ConfidenceScore = a.confidence
	cert.VerifiedProfile = &model.VerifiedProfile{AutoVerified: a.autoVerified}
	cert.Explainability = buildTrace(a)
	cert.Summary = &model.VerificationSummary{
		AuthorityType:       a.outcome.AuthorityType,
		Authority:           a.outcome.Authority,
		VerificationStatus:  a.outcome.Status,
		InstitutionVerified: a.outcome.Verified,
		RiskLevel:           a.risk,
		ConfidenceScore:     a.confidence,
		AutoVerified:        a.autoVerified,
		DigiLockerVerified:  digiLocker,
	}

	// Mirror the annotations into the nested structure downstream consumers
	// read as opaque JSON.
	if cert.InstitutionDetails == nil {
		cert.InstitutionDetails = model.Details{}
	}
	cert.InstitutionDetails["verification"] = a.outcome
	if a.logo != nil {
		cert.InstitutionDetails["logo_verification"] = *a.logo
	}

	zap.L().Debug("score: certificate assessed",
		zap.String("status", string(a.outcome.Status)),
		zap.String("risk", string(a.risk)),
		zap.Float64("confidence", a.confidence),
	)
}

// buildTrace emits supporting reasons for LOW risk and contributing risk
// factors for HIGH risk.
func buildTrace(a *assessment) *model.Explainability {
	trace := &model.Explainability{
		WhyVerified: []string{},
		WhyRisk:     []string{},
	}

	switch a.outcome.Status {
	case model.StatusBoardVerified:
		trace.WhyVerified = append(trace.WhyVerified, "Certificate issued by recognized examining board")
	case model.StatusIssuerVerified:
		trace.WhyVerified = append(trace.WhyVerified, "Certificate issued by trusted private issuer")
	default:
		if a.outcome.Verified {
			trace.WhyVerified = append(trace.WhyVerified, "Institute exists in approved registry")
		}
	}
	if a.logo != nil && a.logo.Verified {
		trace.WhyVerified = append(trace.WhyVerified, "Certificate logo matches institution reference")
	}

	if a.risk == model.RiskHigh {
		if !a.outcome.Verified {
			trace.WhyRisk = append(trace.WhyRisk, "Institute not found in registry")
		}
		if a.logo != nil && a.logo.Method != model.LogoMethodSkipped && !a.logo.Verified {
			trace.WhyRisk = append(trace.WhyRisk, "Logo verification failed")
		}
	}

	return trace
}

// detectDigiLocker reports whether the raw OCR text carries a digital-
// issuance marker.
func detectDigiLocker(rawText string) bool {
	if rawText == "" {
		return false
	}
	text := strings.ToLower(rawText)
	for _, marker := range digiLockerMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
