package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/opencarbon/soilstock/internal/domain"
)

// SampleStore defines the interface for raw sample persistence.
type SampleStore interface {
	// CreateBatch saves new samples in one statement. Samples are
	// validated before insert; an invalid sample fails the whole batch.
	CreateBatch(ctx context.Context, samples []*domain.Sample) error

	// GetByID retrieves a sample by its unique ID.
	// Returns ErrSampleNotFound if the sample does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Sample, error)

	// List retrieves samples ordered by core and depth, paginated.
	List(ctx context.Context, limit, offset int) ([]*domain.Sample, error)

	// ListAll retrieves the full sample table in core and depth order.
	// This is the pipeline's input snapshot.
	ListAll(ctx context.Context) ([]*domain.Sample, error)

	// Count returns the number of stored samples.
	Count(ctx context.Context) (int, error)

	// WithTx returns a SampleStore bound to the given transaction.
	WithTx(tx *sql.Tx) SampleStore
}
