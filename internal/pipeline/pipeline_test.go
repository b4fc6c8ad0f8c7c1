package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credent-works/certverify-cli/internal/config"
	"github.com/credent-works/certverify-cli/internal/model"
	"github.com/credent-works/certverify-cli/internal/registry"
	"github.com/credent-works/certverify-cli/internal/store"
)

func newRunPipeline(t *testing.T, regRows ...[]string) (*Pipeline, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	cfg := &config.Config{}
	cfg.Registry.Authority = "AICTE"
	reg := registry.FromRows(regRows, "test-registry.csv")

	return New(cfg, st, reg, stubVerifier{result: skippedLogo}, NewCanonicalizer(nil)), st
}

func TestRun_CleanSubmission(t *testing.T) {
	p, st := newRunPipeline(t, []string{"ABC University"})
	ctx := context.Background()

	sub := model.Submission{
		Certificates: []*model.ExtractedCertificate{
			{
				StudentDetails:     model.Details{"student_name": "Asha Rao", "father_name": "Mohan Rao"},
				InstitutionDetails: model.Details{"institution_name": "ABC University"},
				SourceFile:         "degree.pdf",
			},
			{
				StudentDetails:     model.Details{"candidate name": "Asha Rao", "father's name": "Mohan Rao"},
				InstitutionDetails: model.Details{"college name": "ABC University"},
				SourceFile:         "sem6_marksheet.pdf",
			},
		},
	}

	result, err := p.Run(ctx, sub, "upload.zip")
	require.NoError(t, err)
	require.NotEmpty(t, result.RunID)

	assert.Equal(t, model.RiskLow, result.FinalRisk)
	assert.Equal(t, model.RiskLow, result.Consistency.RiskLevel)
	assert.Equal(t, 100, result.Consistency.NameConsistency)

	// Alias canonicalization happened before scoring.
	assert.True(t, result.Certificates[1].Summary.InstitutionVerified)

	require.Len(t, result.Mapped, 2)
	assert.Equal(t, model.DocumentDegree, result.Mapped[0].DocumentType)
	assert.Equal(t, model.DocumentMarksheet, result.Mapped[1].DocumentType)

	// Phases were tracked in order.
	require.Len(t, result.Phases, 4)
	assert.Equal(t, "1_ingest", result.Phases[0].Name)
	assert.Equal(t, "2_score", result.Phases[1].Name)
	assert.Equal(t, "3_consistency", result.Phases[2].Name)
	assert.Equal(t, "4_report", result.Phases[3].Name)

	// The run was persisted with its result.
	run, err := st.GetRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, model.RiskLow, run.Result.FinalRisk)
}

func TestRun_InconsistentIdentitiesDowngradeBatch(t *testing.T) {
	p, _ := newRunPipeline(t, []string{"ABC University"})
	ctx := context.Background()

	sub := model.Submission{
		Certificates: []*model.ExtractedCertificate{
			{
				StudentDetails:     model.Details{"student_name": "John Doe"},
				InstitutionDetails: model.Details{"institution_name": "ABC University"},
			},
			{
				StudentDetails:     model.Details{"student_name": "Totally Different Person"},
				InstitutionDetails: model.Details{"institution_name": "ABC University"},
			},
		},
	}

	result, err := p.Run(ctx, sub, "mixed.zip")
	require.NoError(t, err)

	assert.Equal(t, model.RiskHigh, result.FinalRisk)
	assert.Equal(t, model.RiskHigh, result.Consistency.RiskLevel)

	// Every certificate took the penalty even though both matched the
	// registry.
	for _, cert := range result.Certificates {
		assert.Equal(t, model.RiskHigh, cert.FraudChecks.RiskLevel)
		assert.InDelta(t, 0.75, cert.ConfidenceScore, 0.0001)
	}
}

func TestRun_SingleCertificateSkipsConsistency(t *testing.T) {
	p, _ := newRunPipeline(t, []string{"ABC University"})

	sub := model.Submission{
		Certificates: []*model.ExtractedCertificate{
			{InstitutionDetails: model.Details{"institution_name": "ABC University"}},
		},
	}

	result, err := p.Run(context.Background(), sub, "single.json")
	require.NoError(t, err)

	assert.Equal(t, 100, result.Consistency.NameConsistency)
	assert.Equal(t, model.PhaseStatusSkipped, result.Phases[2].Status)
	assert.Equal(t, model.RiskLow, result.FinalRisk)
}

func TestRun_EmptySubmission(t *testing.T) {
	p, st := newRunPipeline(t)

	result, err := p.Run(context.Background(), model.Submission{}, "empty.json")
	require.Error(t, err)
	require.NotNil(t, result)

	run, getErr := st.GetRun(context.Background(), result.RunID)
	require.NoError(t, getErr)
	assert.Equal(t, model.RunStatusFailed, run.Status)
}

func TestRun_PerCertRiskDoesNotTaintBatch(t *testing.T) {
	p, _ := newRunPipeline(t, []string{"ABC University"})

	sub := model.Submission{
		Certificates: []*model.ExtractedCertificate{
			{
				StudentDetails:     model.Details{"student_name": "Asha Rao"},
				InstitutionDetails: model.Details{"institution_name": "ABC University"},
			},
			{
				StudentDetails:     model.Details{"student_name": "Asha Rao"},
				InstitutionDetails: model.Details{"institution_name": "Nonexistent Institute of Technology"},
			},
		},
	}

	result, err := p.Run(context.Background(), sub, "mixed.json")
	require.NoError(t, err)

	// The registry miss stays on its certificate. The batch verdict tracks
	// consistency alone, and these identities agree.
	assert.Equal(t, model.RiskHigh, result.Certificates[1].FraudChecks.RiskLevel)
	assert.Equal(t, model.RiskLow, result.Consistency.RiskLevel)
	assert.Equal(t, model.RiskLow, result.FinalRisk)
}

func TestRun_VerificationCacheReused(t *testing.T) {
	p, st := newRunPipeline(t, []string{"ABC University"})
	ctx := context.Background()

	sub := model.Submission{
		Certificates: []*model.ExtractedCertificate{
			{InstitutionDetails: model.Details{"institution_name": "ABC University"}},
		},
	}

	_, err := p.Run(ctx, sub, "first.json")
	require.NoError(t, err)

	cached, err := st.GetCachedVerification(ctx, "abc university")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, model.StatusVerifiedExact, cached.Status)
}

func TestReferenceLogoFor(t *testing.T) {
	cfg := &config.Config{}
	cfg.Visual.ReferenceLogo = "/fallback/logo.png"
	p := &Pipeline{cfg: cfg}

	cert := &model.ExtractedCertificate{
		InstitutionDetails: model.Details{"institution_name": "ABC University"},
	}
	assert.Equal(t, "/fallback/logo.png", p.referenceLogoFor(cert))
}

func TestLogoSlug(t *testing.T) {
	assert.Equal(t, "abc_university", logoSlug("ABC University!"))
	assert.Equal(t, "", logoSlug("   "))
}
