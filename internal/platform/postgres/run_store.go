package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/opencarbon/soilstock/internal/domain"
	"github.com/opencarbon/soilstock/internal/platform/logger"
	"github.com/opencarbon/soilstock/internal/store"
)

// PostgresRunStore implements store.RunStore on PostgreSQL. Depth
// selections, profiles and predictions are stored as JSONB documents;
// the serialized model artifact is an opaque bytea.
type PostgresRunStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresRunStore creates a run store over the given connection or
// transaction. A nil logger means slog.Default.
func NewPostgresRunStore(db store.DBTX, log *slog.Logger) *PostgresRunStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &PostgresRunStore{
		db:     db,
		logger: log.With(slog.String("component", "run_store")),
	}
}

var _ store.RunStore = (*PostgresRunStore)(nil)

// Create implements store.RunStore.Create.
func (s *PostgresRunStore) Create(ctx context.Context, run *domain.Run) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	depths, profile, covariates, err := marshalRun(run)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO runs (id, created_at, status, seed, covariates, depths, profile, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := s.db.ExecContext(ctx, query,
		run.ID, run.CreatedAt, run.Status, run.Seed, covariates, depths, profile, run.Error,
	); err != nil {
		return MapError(err)
	}

	log.Info("run created",
		slog.String("run_id", run.ID.String()),
		slog.String("status", string(run.Status)))
	return nil
}

// Update implements store.RunStore.Update.
func (s *PostgresRunStore) Update(ctx context.Context, run *domain.Run) error {
	depths, profile, covariates, err := marshalRun(run)
	if err != nil {
		return err
	}
	query := `
		UPDATE runs
		SET status = $2, covariates = $3, depths = $4, profile = $5, error = $6
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		run.ID, run.Status, covariates, depths, profile, run.Error,
	)
	if err != nil {
		return MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if affected == 0 {
		return store.ErrRunNotFound
	}
	return nil
}

// GetByID implements store.RunStore.GetByID.
func (s *PostgresRunStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `
		SELECT id, created_at, status, seed, covariates, depths, profile, error
		FROM runs
		WHERE id = $1
	`
	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrRunNotFound
		}
		return nil, MapError(err)
	}
	return run, nil
}

// List implements store.RunStore.List.
func (s *PostgresRunStore) List(ctx context.Context, limit, offset int) ([]*domain.Run, error) {
	query := `
		SELECT id, created_at, status, seed, covariates, depths, profile, error
		FROM runs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, MapError(err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return runs, nil
}

// SaveDepthResult implements store.RunStore.SaveDepthResult.
func (s *PostgresRunStore) SaveDepthResult(ctx context.Context, result *store.DepthResult) error {
	selection, err := json.Marshal(result.Selection)
	if err != nil {
		return store.NewStoreError("depth_result", "save", "marshal selection", err)
	}
	predictions, err := json.Marshal(result.Predictions)
	if err != nil {
		return store.NewStoreError("depth_result", "save", "marshal predictions", err)
	}

	query := `
		INSERT INTO run_depth_results (run_id, midpoint_cm, selection, predictions, model_artifact)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id, midpoint_cm)
		DO UPDATE SET selection = $3, predictions = $4, model_artifact = $5
	`
	if _, err := s.db.ExecContext(ctx, query,
		result.RunID, result.Selection.Depth.MidpointCm, selection, predictions, result.ModelArtifact,
	); err != nil {
		return MapError(err)
	}
	return nil
}

// GetDepthResult implements store.RunStore.GetDepthResult.
func (s *PostgresRunStore) GetDepthResult(ctx context.Context, runID uuid.UUID, midpointCm float64) (*store.DepthResult, error) {
	query := `
		SELECT run_id, selection, predictions, model_artifact
		FROM run_depth_results
		WHERE run_id = $1 AND midpoint_cm = $2
	`
	var (
		result      store.DepthResult
		selection   []byte
		predictions []byte
	)
	err := s.db.QueryRowContext(ctx, query, runID, midpointCm).Scan(
		&result.RunID, &selection, &predictions, &result.ModelArtifact,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrDepthResultNotFound
		}
		return nil, MapError(err)
	}
	if err := json.Unmarshal(selection, &result.Selection); err != nil {
		return nil, store.NewStoreError("depth_result", "get", "unmarshal selection", err)
	}
	if len(predictions) > 0 {
		if err := json.Unmarshal(predictions, &result.Predictions); err != nil {
			return nil, store.NewStoreError("depth_result", "get", "unmarshal predictions", err)
		}
	}
	return &result, nil
}

// WithTx implements store.RunStore.WithTx.
func (s *PostgresRunStore) WithTx(tx *sql.Tx) store.RunStore {
	return &PostgresRunStore{db: tx, logger: s.logger}
}

func marshalRun(run *domain.Run) (depths, profile, covariates []byte, err error) {
	if depths, err = json.Marshal(run.Depths); err != nil {
		return nil, nil, nil, store.NewStoreError("run", "marshal", "depths", err)
	}
	if run.Profile != nil {
		if profile, err = json.Marshal(run.Profile); err != nil {
			return nil, nil, nil, store.NewStoreError("run", "marshal", "profile", err)
		}
	}
	if covariates, err = json.Marshal(run.Covariates); err != nil {
		return nil, nil, nil, store.NewStoreError("run", "marshal", "covariates", err)
	}
	return depths, profile, covariates, nil
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var (
		run        domain.Run
		depths     []byte
		profile    []byte
		covariates []byte
	)
	err := row.Scan(&run.ID, &run.CreatedAt, &run.Status, &run.Seed, &covariates, &depths, &profile, &run.Error)
	if err != nil {
		return nil, err
	}
	if len(covariates) > 0 {
		if err := json.Unmarshal(covariates, &run.Covariates); err != nil {
			return nil, store.NewStoreError("run", "scan", "unmarshal covariates", err)
		}
	}
	if len(depths) > 0 {
		if err := json.Unmarshal(depths, &run.Depths); err != nil {
			return nil, store.NewStoreError("run", "scan", "unmarshal depths", err)
		}
	}
	if len(profile) > 0 {
		var p domain.ProfileStock
		if err := json.Unmarshal(profile, &p); err != nil {
			return nil, store.NewStoreError("run", "scan", "unmarshal profile", err)
		}
		run.Profile = &p
	}
	return &run, nil
}
