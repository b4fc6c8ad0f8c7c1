// Package visual confirms a cropped certificate logo against a reference
// logo. Embedding similarity is the primary method; ORB keypoint matching is
// the deterministic fallback. This is a supporting signal only: Verify never
// returns an error, every failure path resolves to verified=false with a
// reason.
package visual

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/credent-works/certverify-cli/internal/model"
	"github.com/credent-works/certverify-cli/pkg/clip"
)

const (
	// clipSimilarityThreshold is the cosine-similarity cutoff for the
	// embedding method.
	clipSimilarityThreshold = 0.80
)

// Verifier runs the two-tier logo check. Backend availability is decided
// once at construction, not per call, so both branches are deterministic
// under test.
type Verifier struct {
	clip          clip.Client
	clipAvailable bool
}

// NewVerifier probes the embedding backend once and records whether it is
// usable. A nil client or failed probe is not an error: the verifier
// degrades to the ORB fallback.
func NewVerifier(ctx context.Context, client clip.Client) *Verifier {
	v := &Verifier{clip: client}
	if client != nil {
		if err := client.Ping(ctx); err != nil {
			zap.L().Info("visual: embedding backend unavailable, using ORB fallback only",
				zap.Error(err))
		} else {
			v.clipAvailable = true
		}
	}
	return v
}

// ClipAvailable reports whether the embedding backend was reachable at
// construction time.
func (v *Verifier) ClipAvailable() bool { return v.clipAvailable }

// Verify compares a candidate logo crop against a reference logo. A missing
// path on either side is a valid, handled state (SKIPPED), not a failure.
func (v *Verifier) Verify(ctx context.Context, refPath, candPath string) model.LogoVerification {
	if !fileExists(refPath) {
		return model.LogoVerification{
			Verified: false,
			Method:   model.LogoMethodSkipped,
			Reason:   "reference logo not found",
		}
	}
	if !fileExists(candPath) {
		return model.LogoVerification{
			Verified: false,
			Method:   model.LogoMethodSkipped,
			Reason:   "extracted logo not found",
		}
	}

	if v.clipAvailable {
		if result, ok := v.verifyCLIP(ctx, refPath, candPath); ok {
			return result
		}
		// Embed failure or sub-threshold similarity falls through to ORB.
	}

	return v.verifyORB(refPath, candPath)
}

// verifyCLIP returns (result, true) only on a confident embedding match.
// Any backend error falls through silently to the ORB tier.
func (v *Verifier) verifyCLIP(ctx context.Context, refPath, candPath string) (model.LogoVerification, bool) {
	refVec, err := v.clip.Embed(ctx, refPath)
	if err != nil {
		zap.L().Debug("visual: reference embed failed, falling back", zap.Error(err))
		return model.LogoVerification{}, false
	}
	candVec, err := v.clip.Embed(ctx, candPath)
	if err != nil {
		zap.L().Debug("visual: candidate embed failed, falling back", zap.Error(err))
		return model.LogoVerification{}, false
	}

	score := clip.CosineSimilarity(refVec, candVec)
	if score < clipSimilarityThreshold {
		return model.LogoVerification{}, false
	}

	return model.LogoVerification{
		Verified: true,
		Method:   model.LogoMethodCLIP,
		Score:    model.FloatPtr(score),
	}, true
}

func (v *Verifier) verifyORB(refPath, candPath string) model.LogoVerification {
	ok, score, reason := orbVerify(refPath, candPath)
	result := model.LogoVerification{
		Verified: ok,
		Method:   model.LogoMethodORB,
		Score:    model.FloatPtr(score),
	}
	if !ok {
		result.Reason = reason
	}
	return result
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
