package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credent-works/certverify-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// --- Runs ---

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "upload.zip", 3)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.Equal(t, 3, run.CertCount)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "upload.zip", got.Source)
	assert.Nil(t, got.Result)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "nonexistent")
	assert.Error(t, err)
}

func TestSQLite_UpdateRunStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "batch.json", 1)
	require.NoError(t, err)

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusScoring))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusScoring, got.Status)
}

func TestSQLite_UpdateRunStatus_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateRunStatus(context.Background(), "missing", model.RunStatusComplete)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_UpdateRunResult_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "a.json", 2)
	require.NoError(t, err)

	result := &model.SubmissionResult{
		RunID:     run.ID,
		FinalRisk: model.RiskHigh,
		Consistency: model.ConsistencyReport{
			NameConsistency:       42,
			FatherNameConsistency: 100,
			RiskLevel:             model.RiskHigh,
		},
	}
	require.NoError(t, st.UpdateRunResult(ctx, run.ID, result))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Result)
	assert.Equal(t, model.RiskHigh, got.Result.FinalRisk)
	assert.Equal(t, 42, got.Result.Consistency.NameConsistency)
}

func TestSQLite_ListRuns_FilterByStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	r1, err := st.CreateRun(ctx, "one.json", 1)
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "two.json", 1)
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, r1.ID, model.RunStatusComplete))

	complete, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, r1.ID, complete[0].ID)

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// --- Phases ---

func TestSQLite_PhaseLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "p.json", 1)
	require.NoError(t, err)

	phase, err := st.CreatePhase(ctx, run.ID, "2_score")
	require.NoError(t, err)
	assert.Equal(t, model.PhaseStatusRunning, phase.Status)

	err = st.CompletePhase(ctx, phase.ID, &model.PhaseResult{
		Name:     "2_score",
		Status:   model.PhaseStatusComplete,
		Duration: 120,
	})
	assert.NoError(t, err)
}

func TestSQLite_CompletePhase_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.CompletePhase(context.Background(), "missing", &model.PhaseResult{Status: model.PhaseStatusComplete})
	assert.Error(t, err)
}

// --- Verification cache ---

func TestSQLite_VerificationCache_SetAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	outcome := &model.VerificationOutcome{
		Verified:         true,
		Status:           model.StatusVerifiedFuzzy,
		MatchScore:       model.IntPtr(91),
		MatchedInstitute: "ABC UNIVERSITY",
	}
	require.NoError(t, st.SetCachedVerification(ctx, "abc university", outcome, time.Hour))

	got, err := st.GetCachedVerification(ctx, "abc university")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Verified)
	assert.Equal(t, model.StatusVerifiedFuzzy, got.Status)
	require.NotNil(t, got.MatchScore)
	assert.Equal(t, 91, *got.MatchScore)
}

func TestSQLite_VerificationCache_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetCachedVerification(context.Background(), "never seen")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_VerificationCache_Expired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	outcome := &model.VerificationOutcome{Verified: true, Status: model.StatusVerifiedExact}
	require.NoError(t, st.SetCachedVerification(ctx, "stale entry", outcome, -time.Hour))

	got, err := st.GetCachedVerification(ctx, "stale entry")
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := st.DeleteExpiredVerifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// --- Records ---

func TestSQLite_InsertRecords(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "r.json", 2)
	require.NoError(t, err)

	records := []model.CertificateRecord{
		{
			DocumentType:       model.DocumentDegree,
			StudentName:        "Asha Rao",
			InstitutionName:    "ABC University",
			VerificationStatus: model.RecordVerified,
			Verdict:            model.VerdictLegitimate,
		},
		{
			DocumentType:       model.DocumentMarksheet,
			StudentName:        "Asha Rao",
			InstitutionName:    "Unknown College",
			VerificationStatus: model.RecordFailed,
			Verdict:            model.VerdictSuspicious,
		},
	}

	n, err := st.InsertRecords(ctx, run.ID, records)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = st.InsertRecords(ctx, run.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
