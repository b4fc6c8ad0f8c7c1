// Package match implements the fuzzy institution lookup: a three-tier cascade
// of exact, partial-ratio, and token-set comparisons against the registry.
package match

import (
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"go.uber.org/zap"

	"github.com/credent-works/certverify-cli/internal/model"
	"github.com/credent-works/certverify-cli/internal/registry"
	"github.com/credent-works/certverify-cli/internal/textnorm"
)

// FuzzyMatchThreshold is the high-confidence cutoff shared by the
// partial-ratio and token-set tiers. It is the system's core
// false-accept/false-reject trade-off; keep it named.
const FuzzyMatchThreshold = 85

// Match looks up an institution name in the registry. The cascade: exact
// equality short-circuits everything; partial ratio tolerates truncation and
// OCR noise; token-set tolerates word reordering. Missing or unusable input
// resolves to a status, never an error.
func Match(candidateName string, reg *registry.Registry) model.VerificationOutcome {
	if candidateName == "" {
		return model.VerificationOutcome{
			Verified: false,
			Status:   model.StatusNameMissing,
			Source:   reg.Source(),
		}
	}

	variants := textnorm.ExpandVariants(candidateName)
	if len(variants) == 0 {
		return model.VerificationOutcome{
			Verified: false,
			Status:   model.StatusInvalidName,
			Source:   reg.Source(),
		}
	}

	// Tier 1: exact equality. Runs to completion before any fuzzy tier so an
	// exact hit wins regardless of other entries' fuzzy scores.
	for _, target := range variants {
		for _, entry := range reg.Entries() {
			if target == entry.Normalized {
				return model.VerificationOutcome{
					Verified:         true,
					Status:           model.StatusVerifiedExact,
					MatchScore:       model.IntPtr(100),
					MatchedInstitute: entry.Normalized,
					InputVariant:     target,
					Source:           reg.Source(),
				}
			}
		}
	}

	bestScore := 0
	bestMatch := ""
	bestVariant := ""

	// Tier 2: partial ratio, tolerant of truncation and OCR noise.
	for _, target := range variants {
		for _, entry := range reg.Entries() {
			score := fuzzy.PartialRatio(target, entry.Normalized)
			if score > bestScore {
				bestScore = score
				bestMatch = entry.Normalized
				bestVariant = target
			}

			if score >= FuzzyMatchThreshold {
				return model.VerificationOutcome{
					Verified:         true,
					Status:           model.StatusVerifiedFuzzy,
					MatchScore:       model.IntPtr(score),
					MatchedInstitute: bestMatch,
					InputVariant:     bestVariant,
					Source:           reg.Source(),
				}
			}
		}
	}

	// Tier 3: token-set ratio, order-insensitive word overlap.
	for _, target := range variants {
		for _, entry := range reg.Entries() {
			score := fuzzy.TokenSetRatio(target, entry.Normalized)
			if score > bestScore {
				bestScore = score
				bestMatch = entry.Normalized
				bestVariant = target
			}

			if score >= FuzzyMatchThreshold {
				return model.VerificationOutcome{
					Verified:         true,
					Status:           model.StatusVerifiedTokenSet,
					MatchScore:       model.IntPtr(score),
					MatchedInstitute: bestMatch,
					InputVariant:     bestVariant,
					Source:           reg.Source(),
				}
			}
		}
	}

	zap.L().Debug("match: institution not found",
		zap.String("name", candidateName),
		zap.Int("best_score", bestScore),
		zap.String("best_match", bestMatch),
	)

	return model.VerificationOutcome{
		Verified:         false,
		Status:           model.StatusNotFound,
		MatchScore:       model.IntPtr(bestScore),
		MatchedInstitute: bestMatch,
		InputVariant:     bestVariant,
		Source:           reg.Source(),
	}
}
