package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/opencarbon/soilstock/internal/domain"
	"github.com/opencarbon/soilstock/internal/store"
)

// SampleServiceError wraps failures of sample service operations.
type SampleServiceError struct {
	Operation string
	Message   string
	Err       error
}

func (e *SampleServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sample service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("sample service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *SampleServiceError) Unwrap() error {
	return e.Err
}

// SampleService stores raw samples.
type SampleService struct {
	db      *sql.DB
	samples store.SampleStore
	logger  *slog.Logger
}

// NewSampleService creates a SampleService. A nil logger means
// slog.Default.
func NewSampleService(db *sql.DB, samples store.SampleStore, log *slog.Logger) *SampleService {
	if log == nil {
		log = slog.Default()
	}
	return &SampleService{
		db:      db,
		samples: samples,
		logger:  log.With(slog.String("component", "sample_service")),
	}
}

// Import stores validated samples in one transaction.
func (s *SampleService) Import(ctx context.Context, samples []*domain.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.samples.WithTx(tx).CreateBatch(ctx, samples)
	})
	if err != nil {
		return &SampleServiceError{Operation: "import", Message: "store batch", Err: err}
	}
	s.logger.Info("samples imported", slog.Int("count", len(samples)))
	return nil
}

// List retrieves stored samples in core and depth order, paginated.
func (s *SampleService) List(ctx context.Context, limit, offset int) ([]*domain.Sample, error) {
	samples, err := s.samples.List(ctx, limit, offset)
	if err != nil {
		return nil, &SampleServiceError{Operation: "list", Message: "load samples", Err: err}
	}
	return samples, nil
}

// Count returns the number of stored samples.
func (s *SampleService) Count(ctx context.Context) (int, error) {
	n, err := s.samples.Count(ctx)
	if err != nil {
		return 0, &SampleServiceError{Operation: "count", Message: "count samples", Err: err}
	}
	return n, nil
}
