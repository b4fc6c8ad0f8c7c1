package store

import (
	"context"
	"time"

	"github.com/credent-works/certverify-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Source string          `json:"source,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the verification pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, source string, certCount int) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, result *model.SubmissionResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error

	// Records
	InsertRecords(ctx context.Context, runID string, records []model.CertificateRecord) (int, error)

	// Verification cache. Keyed by the normalized institution name; a cached
	// outcome short-circuits the registry lookup until the TTL lapses.
	GetCachedVerification(ctx context.Context, normalizedName string) (*model.VerificationOutcome, error)
	SetCachedVerification(ctx context.Context, normalizedName string, outcome *model.VerificationOutcome, ttl time.Duration) error
	DeleteExpiredVerifications(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
