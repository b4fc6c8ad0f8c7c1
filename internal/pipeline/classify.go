package pipeline

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/credent-works/certverify-cli/internal/model"
)

const (
	// boardConfidence is the fixed confidence granted by the board
	// short-circuit: an examining board on the document is the strongest
	// cheap signal the pipeline has.
	boardConfidence = 0.92
	// issuerConfidence is the fixed confidence for pre-trusted private
	// issuers.
	issuerConfidence = 0.78
)

// DefaultTrustedIssuers is the allow-list of private issuers whose
// certificates bypass the registry lookup.
var DefaultTrustedIssuers = []string{
	"mathworks",
	"coursera",
	"aws",
	"google",
	"microsoft",
	"nptel",
}

var titleCaser = cases.Title(language.English)

// classifyAuthority applies the two short-circuit rules in fixed order:
// examining board first, then trusted private issuers. A non-nil outcome
// means the matcher and visual verifier are skipped entirely; nil defers to
// the registry lookup.
func classifyAuthority(cert *model.ExtractedCertificate, issuers []string) (*model.VerificationOutcome, float64) {
	if board := cert.BoardName(); board != "" {
		return &model.VerificationOutcome{
			Verified:      true,
			Status:        model.StatusBoardVerified,
			AuthorityType: model.AuthorityBoard,
			Authority:     board,
		}, boardConfidence
	}

	issuerText := strings.ToLower(
		cert.InstitutionName() + " " + cert.CertificateMetadata.GetString("powered_by"),
	)
	for _, issuer := range issuers {
		if issuer != "" && strings.Contains(issuerText, strings.ToLower(issuer)) {
			return &model.VerificationOutcome{
				Verified:      true,
				Status:        model.StatusIssuerVerified,
				AuthorityType: model.AuthorityPrivateIssuer,
				Authority:     titleCaser.String(issuer),
			}, issuerConfidence
		}
	}

	return nil, 0
}
