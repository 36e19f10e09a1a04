package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/opencarbon/soilstock/internal/domain"
	"github.com/opencarbon/soilstock/internal/platform/logger"
	"github.com/opencarbon/soilstock/internal/store"
)

// PostgresSampleStore implements store.SampleStore on PostgreSQL.
type PostgresSampleStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSampleStore creates a sample store over the given
// connection or transaction. A nil logger means slog.Default.
func NewPostgresSampleStore(db store.DBTX, log *slog.Logger) *PostgresSampleStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &PostgresSampleStore{
		db:     db,
		logger: log.With(slog.String("component", "sample_store")),
	}
}

var _ store.SampleStore = (*PostgresSampleStore)(nil)

const sampleColumns = `id, core_id, domain, depth_top_cm, depth_bottom_cm,
	soc_g_per_kg, bulk_density_g_cm3, stock_t_ha, covariates, latitude, longitude`

// CreateBatch implements store.SampleStore.CreateBatch.
func (s *PostgresSampleStore) CreateBatch(ctx context.Context, samples []*domain.Sample) error {
	log := logger.FromContextOrDefault(ctx, s.logger)
	if len(samples) == 0 {
		return nil
	}

	for _, sample := range samples {
		if err := sample.Validate(); err != nil {
			return fmt.Errorf("%w: sample %s: %v", store.ErrInvalidEntity, sample.ID, err)
		}
	}

	query := `
		INSERT INTO samples (` + sampleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return MapError(err)
	}
	defer func() { _ = stmt.Close() }()

	for _, sample := range samples {
		covariates, err := json.Marshal(sample.Covariates)
		if err != nil {
			return store.NewStoreError("sample", "create", "marshal covariates", err)
		}
		if _, err := stmt.ExecContext(ctx,
			sample.ID,
			sample.CoreID,
			sample.Domain,
			sample.DepthTopCm,
			sample.DepthBottomCm,
			sample.SOCGPerKg,
			sample.BulkDensityGCm3,
			sample.StockTHa,
			covariates,
			sample.Location.Latitude,
			sample.Location.Longitude,
		); err != nil {
			return MapError(err)
		}
	}

	log.Info("samples stored", slog.Int("count", len(samples)))
	return nil
}

// GetByID implements store.SampleStore.GetByID.
func (s *PostgresSampleStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Sample, error) {
	query := `SELECT ` + sampleColumns + ` FROM samples WHERE id = $1`
	sample, err := scanSample(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrSampleNotFound
		}
		return nil, MapError(err)
	}
	return sample, nil
}

// List implements store.SampleStore.List.
func (s *PostgresSampleStore) List(ctx context.Context, limit, offset int) ([]*domain.Sample, error) {
	query := `
		SELECT ` + sampleColumns + `
		FROM samples
		ORDER BY core_id, depth_top_cm
		LIMIT $1 OFFSET $2
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()
	return collectSamples(rows)
}

// ListAll implements store.SampleStore.ListAll.
func (s *PostgresSampleStore) ListAll(ctx context.Context) ([]*domain.Sample, error) {
	query := `SELECT ` + sampleColumns + ` FROM samples ORDER BY core_id, depth_top_cm`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()
	return collectSamples(rows)
}

// Count implements store.SampleStore.Count.
func (s *PostgresSampleStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM samples`).Scan(&n); err != nil {
		return 0, MapError(err)
	}
	return n, nil
}

// WithTx implements store.SampleStore.WithTx.
func (s *PostgresSampleStore) WithTx(tx *sql.Tx) store.SampleStore {
	return &PostgresSampleStore{db: tx, logger: s.logger}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSample(row rowScanner) (*domain.Sample, error) {
	var (
		sample     domain.Sample
		covariates []byte
	)
	err := row.Scan(
		&sample.ID,
		&sample.CoreID,
		&sample.Domain,
		&sample.DepthTopCm,
		&sample.DepthBottomCm,
		&sample.SOCGPerKg,
		&sample.BulkDensityGCm3,
		&sample.StockTHa,
		&covariates,
		&sample.Location.Latitude,
		&sample.Location.Longitude,
	)
	if err != nil {
		return nil, err
	}
	if len(covariates) > 0 {
		if err := json.Unmarshal(covariates, &sample.Covariates); err != nil {
			return nil, store.NewStoreError("sample", "scan", "unmarshal covariates", err)
		}
	}
	return &sample, nil
}

func collectSamples(rows *sql.Rows) ([]*domain.Sample, error) {
	var samples []*domain.Sample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, MapError(err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return samples, nil
}
