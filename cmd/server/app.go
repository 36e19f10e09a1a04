package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// Registers the pgx database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/opencarbon/soilstock/internal/config"
	"github.com/opencarbon/soilstock/internal/observability"
	"github.com/opencarbon/soilstock/internal/pipeline"
	"github.com/opencarbon/soilstock/internal/platform/logger"
	"github.com/opencarbon/soilstock/internal/platform/postgres"
	"github.com/opencarbon/soilstock/internal/service"
)

// application holds the assembled dependencies of the server process.
type application struct {
	config   *config.Config
	logger   *slog.Logger
	db       *sql.DB
	registry *prometheus.Registry

	sampleService *service.SampleService
	runService    *service.RunService
}

// initializeApp loads configuration, sets up logging, connects to the
// database, applies migrations, and wires the stores, pipeline, and
// services together.
func initializeApp() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("backend", cfg.Pipeline.Backend))

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), time.Minute)
	defer cancelMigrate()
	if err := postgres.Migrate(migrateCtx, db); err != nil {
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics, err := observability.NewPipelineMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	estimator, err := pipeline.NewService(cfg.Pipeline,
		pipeline.WithLogger(log),
		pipeline.WithMetrics(metrics))
	if err != nil {
		return nil, fmt.Errorf("failed to build estimation pipeline: %w", err)
	}

	sampleStore := postgres.NewPostgresSampleStore(db, log)
	runStore := postgres.NewPostgresRunStore(db, log)

	return &application{
		config:        cfg,
		logger:        log,
		db:            db,
		registry:      registry,
		sampleService: service.NewSampleService(db, sampleStore, log),
		runService:    service.NewRunService(db, sampleStore, runStore, estimator, log),
	}, nil
}

// cleanup releases resources held by the application.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database", slog.String("error", err.Error()))
		}
	}
}
