package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/opencarbon/soilstock/internal/domain"
)

// DepthResult is one run's persisted outcome at one standard depth: the
// selection report, the per-record predictions of the chosen model, and
// the serialized model artifact (nil when the depth had insufficient
// data).
type DepthResult struct {
	RunID         uuid.UUID
	Selection     domain.SelectionResult
	Predictions   []domain.RecordPrediction
	ModelArtifact []byte
}

// RunStore defines the interface for estimation run persistence.
type RunStore interface {
	// Create saves a new run.
	Create(ctx context.Context, run *domain.Run) error

	// Update saves the run's status, depth selections, profile and error.
	// Returns ErrRunNotFound if the run does not exist.
	Update(ctx context.Context, run *domain.Run) error

	// GetByID retrieves a run with its depth selections and profile.
	// Returns ErrRunNotFound if the run does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)

	// List retrieves runs newest first, paginated.
	List(ctx context.Context, limit, offset int) ([]*domain.Run, error)

	// SaveDepthResult persists one depth's outcome for a run.
	SaveDepthResult(ctx context.Context, result *DepthResult) error

	// GetDepthResult retrieves a run's outcome at the standard depth
	// identified by its midpoint. Returns ErrDepthResultNotFound if the
	// run has no result at that depth.
	GetDepthResult(ctx context.Context, runID uuid.UUID, midpointCm float64) (*DepthResult, error)

	// WithTx returns a RunStore bound to the given transaction.
	WithTx(tx *sql.Tx) RunStore
}
