// Package service provides the application-level services between the
// HTTP layer and the stores: sample ingestion and estimation runs.
package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/opencarbon/soilstock/internal/domain"
	"github.com/opencarbon/soilstock/internal/pipeline"
	"github.com/opencarbon/soilstock/internal/store"
)

// ErrNoSamples indicates a run was requested with an empty sample table.
var ErrNoSamples = errors.New("no samples stored")

// RunServiceError wraps failures of run service operations with context.
type RunServiceError struct {
	Operation string
	Message   string
	Err       error
}

func (e *RunServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("run service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("run service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *RunServiceError) Unwrap() error {
	return e.Err
}

// RunService executes estimation runs over the stored sample table and
// persists their results.
type RunService struct {
	db       *sql.DB
	samples  store.SampleStore
	runs     store.RunStore
	pipeline *pipeline.Service
	logger   *slog.Logger
}

// NewRunService creates a RunService. A nil logger means slog.Default.
func NewRunService(db *sql.DB, samples store.SampleStore, runs store.RunStore, p *pipeline.Service, log *slog.Logger) *RunService {
	if log == nil {
		log = slog.Default()
	}
	return &RunService{
		db:       db,
		samples:  samples,
		runs:     runs,
		pipeline: p,
		logger:   log.With(slog.String("component", "run_service")),
	}
}

// RunOptions are per-request overrides of the configured pipeline
// parameters. A nil field means the configured value.
type RunOptions struct {
	Seed *int64
}

// ExecuteRun loads the full sample table, runs the estimation pipeline
// on it, and persists the run with its per-depth results and serialized
// model artifacts in one transaction. A pipeline failure is persisted
// as a failed run before the error is returned.
func (s *RunService) ExecuteRun(ctx context.Context, opts RunOptions) (*domain.Run, error) {
	samples, err := s.samples.ListAll(ctx)
	if err != nil {
		return nil, &RunServiceError{Operation: "execute", Message: "load samples", Err: err}
	}
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	var result *pipeline.RunResult
	if opts.Seed != nil {
		result, err = s.pipeline.ExecuteSeeded(ctx, samples, *opts.Seed)
	} else {
		result, err = s.pipeline.Execute(ctx, samples)
	}
	if err != nil {
		s.recordFailure(ctx, err)
		return nil, &RunServiceError{Operation: "execute", Message: "pipeline", Err: err}
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		runs := s.runs.WithTx(tx)
		if err := runs.Create(ctx, result.Run); err != nil {
			return err
		}
		for _, outcome := range result.Outcomes {
			artifact, err := encodeModel(outcome)
			if err != nil {
				return err
			}
			if err := runs.SaveDepthResult(ctx, &store.DepthResult{
				RunID:         result.Run.ID,
				Selection:     outcome.Selection,
				Predictions:   outcome.Predictions,
				ModelArtifact: artifact,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, &RunServiceError{Operation: "execute", Message: "persist run", Err: err}
	}

	s.logger.Info("run persisted",
		slog.String("run_id", result.Run.ID.String()),
		slog.Int("depths", len(result.Outcomes)))
	return result.Run, nil
}

// recordFailure persists a failed run so the attempt is auditable. Best
// effort: a storage error here is only logged.
func (s *RunService) recordFailure(ctx context.Context, cause error) {
	run := domain.NewRun(0, nil)
	run.Status = domain.RunStatusFailed
	run.Error = cause.Error()
	if err := s.runs.Create(ctx, run); err != nil {
		s.logger.Error("failed to persist failed run",
			slog.String("error", err.Error()),
			slog.String("cause", cause.Error()))
	}
}

// GetRun retrieves a persisted run.
func (s *RunService) GetRun(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return nil, err
		}
		return nil, &RunServiceError{Operation: "get", Message: "load run", Err: err}
	}
	return run, nil
}

// ListRuns retrieves persisted runs newest first.
func (s *RunService) ListRuns(ctx context.Context, limit, offset int) ([]*domain.Run, error) {
	runs, err := s.runs.List(ctx, limit, offset)
	if err != nil {
		return nil, &RunServiceError{Operation: "list", Message: "load runs", Err: err}
	}
	return runs, nil
}

// GetDepthResult retrieves one depth's persisted outcome for a run.
func (s *RunService) GetDepthResult(ctx context.Context, runID uuid.UUID, midpointCm float64) (*store.DepthResult, error) {
	result, err := s.runs.GetDepthResult(ctx, runID, midpointCm)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, err
		}
		return nil, &RunServiceError{Operation: "get_depth", Message: "load depth result", Err: err}
	}
	return result, nil
}

// encodeModel serializes the outcome's chosen model with gob. An
// insufficient-data depth has no model and yields a nil artifact.
func encodeModel(outcome pipeline.DepthOutcome) ([]byte, error) {
	if outcome.Model == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(outcome.Model); err != nil {
		return nil, fmt.Errorf("encode model artifact: %w", err)
	}
	return buf.Bytes(), nil
}
