package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/credent-works/certverify-cli/internal/config"
	"github.com/credent-works/certverify-cli/internal/match"
	"github.com/credent-works/certverify-cli/internal/model"
	"github.com/credent-works/certverify-cli/internal/registry"
	"github.com/credent-works/certverify-cli/internal/store"
	"github.com/credent-works/certverify-cli/internal/textnorm"
)

// LogoVerifier is the visual-check dependency. *visual.Verifier satisfies it.
type LogoVerifier interface {
	Verify(ctx context.Context, refPath, candPath string) model.LogoVerification
}

// Pipeline orchestrates the verification phases for one submission: alias
// canonicalization, per-certificate scoring, and the cross-certificate
// consistency check.
type Pipeline struct {
	cfg               *config.Config
	store             store.Store
	registry          *registry.Registry
	verifier          LogoVerifier
	canonicalizer     *Canonicalizer
	issuers           []string
	registryAuthority string
	cacheTTL          time.Duration
}

// New creates a new Pipeline with all dependencies.
func New(
	cfg *config.Config,
	st store.Store,
	reg *registry.Registry,
	verifier LogoVerifier,
	canon *Canonicalizer,
) *Pipeline {
	issuers := cfg.Issuers.Trusted
	if len(issuers) == 0 {
		issuers = DefaultTrustedIssuers
	}
	ttl := cfg.Registry.CacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Pipeline{
		cfg:               cfg,
		store:             st,
		registry:          reg,
		verifier:          verifier,
		canonicalizer:     canon,
		issuers:           issuers,
		registryAuthority: cfg.Registry.Authority,
		cacheTTL:          ttl,
	}
}

// Run executes the full verification pipeline for a single submission.
// Certificates are scored sequentially; concurrency lives one level up, at
// the submission fan-out.
func (p *Pipeline) Run(ctx context.Context, sub model.Submission, source string) (*model.SubmissionResult, error) {
	log := zap.L().With(zap.String("source", source), zap.Int("certificates", len(sub.Certificates)))
	log.Info("pipeline: starting verification")

	result := &model.SubmissionResult{
		Certificates: sub.Certificates,
	}

	run, err := p.store.CreateRun(ctx, source, len(sub.Certificates))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	result.RunID = run.ID

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	trackPhase := func(name string, fn func() (*model.PhaseResult, error)) *model.PhaseResult {
		phase, phaseErr := p.store.CreatePhase(ctx, run.ID, name)
		if phaseErr != nil {
			log.Warn("pipeline: failed to create phase", zap.String("phase", name), zap.Error(phaseErr))
		}

		start := time.Now()
		phaseResult, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		if phaseResult == nil {
			phaseResult = &model.PhaseResult{Name: name}
		}
		phaseResult.Name = name
		phaseResult.Duration = duration

		if fnErr != nil {
			phaseResult.Status = model.PhaseStatusFailed
			phaseResult.Error = fnErr.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else {
			if phaseResult.Status == "" {
				phaseResult.Status = model.PhaseStatusComplete
			}
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
			)
		}

		if phase != nil {
			_ = p.store.CompletePhase(ctx, phase.ID, phaseResult)
		}
		result.Phases = append(result.Phases, *phaseResult)
		return phaseResult
	}

	if len(sub.Certificates) == 0 {
		setStatus(model.RunStatusFailed)
		return result, eris.New("pipeline: submission carries no certificates")
	}

	// ===== Phase 1: Ingest =====
	setStatus(model.RunStatusIngesting)

	trackPhase("1_ingest", func() (*model.PhaseResult, error) {
		collapsed := 0
		for _, cert := range sub.Certificates {
			collapsed += p.canonicalizer.Apply(cert)
		}
		return &model.PhaseResult{
			Metadata: map[string]any{
				"certificates":   len(sub.Certificates),
				"aliased_fields": collapsed,
			},
		}, nil
	})

	// ===== Phase 2: Scoring =====
	setStatus(model.RunStatusScoring)

	trackPhase("2_score", func() (*model.PhaseResult, error) {
		verified := 0
		for i, cert := range sub.Certificates {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, eris.Wrapf(ctxErr, "pipeline: scoring aborted at certificate %d", i)
			}
			p.scoreCertificate(ctx, cert)
			if cert.Summary != nil && cert.Summary.InstitutionVerified {
				verified++
			}
		}
		return &model.PhaseResult{
			Metadata: map[string]any{
				"scored":   len(sub.Certificates),
				"verified": verified,
			},
		}, nil
	})

	// ===== Phase 3: Consistency =====
	setStatus(model.RunStatusConsistency)

	trackPhase("3_consistency", func() (*model.PhaseResult, error) {
		if len(sub.Certificates) < 2 {
			result.Consistency = model.ConsistencyReport{
				NameConsistency:       100,
				FatherNameConsistency: 100,
				RiskLevel:             model.RiskLow,
			}
			return &model.PhaseResult{Status: model.PhaseStatusSkipped}, nil
		}

		result.Consistency = checkConsistency(sub.Certificates)
		if result.Consistency.RiskLevel == model.RiskHigh {
			applyConsistencyPenalty(sub.Certificates)
		}
		return &model.PhaseResult{
			Metadata: map[string]any{
				"name_consistency":   result.Consistency.NameConsistency,
				"father_consistency": result.Consistency.FatherNameConsistency,
				"risk":               string(result.Consistency.RiskLevel),
			},
		}, nil
	})

	result.FinalRisk = finalRisk(result)

	// ===== Phase 4: Report =====
	trackPhase("4_report", func() (*model.PhaseResult, error) {
		for _, cert := range sub.Certificates {
			result.Mapped = append(result.Mapped, mapRecord(cert))
		}
		inserted, insertErr := p.store.InsertRecords(ctx, run.ID, result.Mapped)
		if insertErr != nil {
			return nil, insertErr
		}
		return &model.PhaseResult{
			Metadata: map[string]any{"records": inserted},
		}, nil
	})

	if err := p.store.UpdateRunResult(ctx, run.ID, result); err != nil {
		log.Warn("pipeline: failed to persist result", zap.Error(err))
	}
	setStatus(model.RunStatusComplete)

	log.Info("pipeline: verification complete",
		zap.String("run_id", run.ID),
		zap.String("final_risk", string(result.FinalRisk)),
	)
	return result, nil
}

// finalRisk is the submission verdict, and it reflects only the
// cross-certificate consistency outcome. Per-certificate risk stays on the
// certificate: one registry miss in an internally consistent batch does not
// taint the batch.
func finalRisk(result *model.SubmissionResult) model.RiskLevel {
	if result.Consistency.RiskLevel == model.RiskHigh {
		return model.RiskHigh
	}
	return model.RiskLow
}

// lookupInstitution resolves the institution against the approved registry,
// consulting the verification cache first. Cache failures degrade to a fresh
// lookup.
func (p *Pipeline) lookupInstitution(ctx context.Context, name string) model.VerificationOutcome {
	key := textnorm.Normalize(name)
	if p.store != nil && key != "" {
		if cached, err := p.store.GetCachedVerification(ctx, key); err != nil {
			zap.L().Debug("pipeline: verification cache read failed", zap.Error(err))
		} else if cached != nil {
			zap.L().Debug("pipeline: verification cache hit", zap.String("institution", key))
			return *cached
		}
	}

	outcome := match.Match(name, p.registry)
	if p.store != nil && key != "" {
		if err := p.store.SetCachedVerification(ctx, key, &outcome, p.cacheTTL); err != nil {
			zap.L().Debug("pipeline: verification cache write failed", zap.Error(err))
		}
	}
	return outcome
}

// referenceLogoFor resolves the trusted reference logo for a certificate's
// institution. Per-institution logos live under the reference directory named
// by slug; a configured fallback covers the rest.
func (p *Pipeline) referenceLogoFor(cert *model.ExtractedCertificate) string {
	dir := p.cfg.Visual.ReferenceDir
	if dir != "" {
		slug := logoSlug(cert.InstitutionName())
		if slug != "" {
			for _, ext := range []string{".png", ".jpg", ".jpeg"} {
				candidate := filepath.Join(dir, slug+ext)
				if _, err := os.Stat(candidate); err == nil {
					return candidate
				}
			}
		}
	}
	return p.cfg.Visual.ReferenceLogo
}

func logoSlug(name string) string {
	normalized := textnorm.Normalize(name)
	if normalized == "" {
		return ""
	}
	return strings.ReplaceAll(normalized, " ", "_")
}

// Describe returns a one-line human summary for CLI output.
func Describe(result *model.SubmissionResult) string {
	verified := 0
	for _, cert := range result.Certificates {
		if cert.Summary != nil && cert.Summary.InstitutionVerified {
			verified++
		}
	}
	return fmt.Sprintf("%d/%d institutions verified, final risk %s",
		verified, len(result.Certificates), result.FinalRisk)
}
