// Package pipeline orchestrates one estimation run end to end:
// validation, harmonization across cores, per-depth domain weighting,
// strategy training and selection, and profile aggregation. Cores and
// depths are independent units of work processed by a bounded worker
// pool; results are collected into indexed slots and emitted in depth
// order, so output never depends on scheduling.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/opencarbon/soilstock/internal/config"
	"github.com/opencarbon/soilstock/internal/domain"
	"github.com/opencarbon/soilstock/internal/harmonize"
	"github.com/opencarbon/soilstock/internal/observability"
	"github.com/opencarbon/soilstock/internal/regress"
	"github.com/opencarbon/soilstock/internal/stock"
	"github.com/opencarbon/soilstock/internal/strategy"
	"github.com/opencarbon/soilstock/internal/transfer"
)

// PipelineError wraps failures of pipeline operations with context
// about what was being attempted.
type PipelineError struct {
	Operation string
	Message   string
	Err       error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pipeline %s: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("pipeline %s: %s", e.Operation, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// DepthOutcome is one depth's full result: the selection, the chosen
// model (nil when the depth had insufficient data) and the per-record
// predictions for the target-domain records at that depth.
type DepthOutcome struct {
	Selection        domain.SelectionResult
	Model            *strategy.TrainedModel
	Predictions      []domain.RecordPrediction
	MeanPredictedTHa float64
	RecordCount      int
}

// RunResult is the output of one pipeline execution.
type RunResult struct {
	Run        *domain.Run
	Outcomes   []DepthOutcome
	Harmonized []*domain.HarmonizedRecord
	Rejected   int
}

// Service runs the estimation pipeline. Immutable after construction
// and safe for concurrent runs.
type Service struct {
	cfg        config.PipelineConfig
	depths     []domain.StandardDepth
	harmonizer *harmonize.Harmonizer
	weighter   *transfer.Weighter
	trainer    *strategy.Trainer
	selector   *strategy.Selector
	aggregator *stock.Aggregator
	metrics    *observability.PipelineMetrics
	logger     *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithMetrics attaches pipeline metrics recording.
func WithMetrics(m *observability.PipelineMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger used by the service and its components.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.logger = log }
}

// NewService wires the pipeline components from configuration.
func NewService(cfg config.PipelineConfig, opts ...Option) (*Service, error) {
	s := &Service{
		cfg:    cfg,
		depths: cfg.StandardDepths(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "pipeline"))

	if err := domain.ValidateStandardDepths(s.depths); err != nil {
		return nil, &PipelineError{Operation: "configure", Message: "invalid standard depths", Err: err}
	}

	var factory regress.Factory
	switch cfg.Backend {
	case "", "forest":
		factory = regress.ForestFactory(cfg.ForestTrees)
	case "knn":
		factory = regress.KNNFactory(cfg.KNeighbors)
	default:
		return nil, &PipelineError{Operation: "configure", Message: fmt.Sprintf("unknown backend %q", cfg.Backend)}
	}

	harmonizer, err := harmonize.New(s.depths, harmonize.WithLogger(s.logger))
	if err != nil {
		return nil, &PipelineError{Operation: "configure", Message: "harmonizer", Err: err}
	}
	s.harmonizer = harmonizer

	weighterOpts := []transfer.Option{transfer.WithLogger(s.logger)}
	if cfg.KernelBandwidth > 0 {
		weighterOpts = append(weighterOpts, transfer.WithBandwidth(cfg.KernelBandwidth))
	}
	s.weighter = transfer.New(cfg.MinTargetWeighting, weighterOpts...)

	trainer, err := strategy.NewTrainer(strategy.Config{
		HoldoutFraction:    cfg.HoldoutFraction,
		MinTargetLocalOnly: cfg.MinTargetLocalOnly,
		MinSourceTransfer:  cfg.MinSourceTransfer,
		MinTargetFineTune:  cfg.MinTargetFineTune,
		MinTargetEnsemble:  cfg.MinTargetEnsemble,
	}, factory, strategy.WithLogger(s.logger))
	if err != nil {
		return nil, &PipelineError{Operation: "configure", Message: "trainer", Err: err}
	}
	s.trainer = trainer
	s.selector = strategy.NewSelector(s.logger)
	s.aggregator = stock.New(stock.WithLogger(s.logger))
	return s, nil
}

// Depths returns the configured standard depths in order.
func (s *Service) Depths() []domain.StandardDepth {
	return append([]domain.StandardDepth(nil), s.depths...)
}

// Execute runs the full pipeline over the raw sample table. Invalid
// samples and malformed cores are rejected with a logged reason and the
// run proceeds on the remainder; per-depth data shortfalls become
// insufficient-data selections, never errors. The run fails only on
// cancellation or an internal fault.
func (s *Service) Execute(ctx context.Context, samples []*domain.Sample) (*RunResult, error) {
	return s.ExecuteSeeded(ctx, samples, s.cfg.Seed)
}

// ExecuteSeeded runs the pipeline with an explicit run seed instead of
// the configured one. Everything else follows Execute.
func (s *Service) ExecuteSeeded(ctx context.Context, samples []*domain.Sample, seed int64) (*RunResult, error) {
	start := time.Now()
	s.metrics.RecordRunStart()

	run := domain.NewRun(seed, nil)
	logger := s.logger.With(slog.String("run_id", run.ID.String()))
	logger.Info("estimation run started",
		slog.Int("samples", len(samples)),
		slog.Int64("seed", seed))

	if err := ctx.Err(); err != nil {
		s.metrics.RecordRunEnd(domain.RunStatusFailed, time.Since(start))
		return nil, &PipelineError{Operation: "run", Message: "run cancelled", Err: err}
	}

	valid, rejected := s.screen(samples, logger)
	s.metrics.RecordRejectedSamples(rejected)

	harmonized, err := s.harmonizeAll(ctx, valid, logger)
	if err != nil {
		s.metrics.RecordRunEnd(domain.RunStatusFailed, time.Since(start))
		return nil, err
	}
	s.metrics.RecordHarmonized(harmonized)

	registry := domain.NewCovariateRegistry(valid)
	covariates := registry.Filter(s.cfg.CovariateCompleteness)
	run.Covariates = covariates
	logger.Info("covariates filtered",
		slog.Int("observed", registry.Len()),
		slog.Int("kept", len(covariates)))

	outcomes, err := s.processDepths(ctx, harmonized, covariates, seed, logger)
	if err != nil {
		s.metrics.RecordRunEnd(domain.RunStatusFailed, time.Since(start))
		return nil, err
	}

	estimates := make([]stock.DepthEstimate, len(outcomes))
	run.Depths = make([]domain.SelectionResult, len(outcomes))
	for i, out := range outcomes {
		run.Depths[i] = out.Selection
		estimates[i] = stock.DepthEstimate{
			Depth:            out.Selection.Depth,
			Selection:        out.Selection,
			MeanPredictedTHa: out.MeanPredictedTHa,
			PredictionCount:  len(out.Predictions),
		}
	}
	profile := s.aggregator.Aggregate(s.depths, estimates)
	run.Profile = &profile
	run.Status = domain.RunStatusCompleted

	s.metrics.RecordRunEnd(domain.RunStatusCompleted, time.Since(start))
	logger.Info("estimation run completed",
		slog.Duration("elapsed", time.Since(start)),
		slog.Float64("total_t_ha", profile.TotalTHa),
		slog.Bool("complete_profile", profile.Complete()))

	return &RunResult{
		Run:        run,
		Outcomes:   outcomes,
		Harmonized: harmonized,
		Rejected:   rejected,
	}, nil
}

// screen validates raw samples, dropping invalid ones with a logged
// reason.
func (s *Service) screen(samples []*domain.Sample, logger *slog.Logger) (valid []*domain.Sample, rejected int) {
	valid = make([]*domain.Sample, 0, len(samples))
	for _, sample := range samples {
		if sample == nil {
			rejected++
			continue
		}
		if err := sample.Validate(); err != nil {
			rejected++
			logger.Warn("sample rejected",
				slog.String("core_id", sample.CoreID),
				slog.String("reason", err.Error()))
			continue
		}
		valid = append(valid, sample)
	}
	return valid, rejected
}

// harmonizeAll runs the harmonizer once per core on a bounded worker
// pool. Cores that fail harmonization are dropped with a logged reason;
// output is flattened in sorted core order.
func (s *Service) harmonizeAll(ctx context.Context, samples []*domain.Sample, logger *slog.Logger) ([]*domain.HarmonizedRecord, error) {
	byCore := make(map[string][]*domain.Sample)
	for _, sample := range samples {
		byCore[sample.CoreID] = append(byCore[sample.CoreID], sample)
	}
	coreIDs := make([]string, 0, len(byCore))
	for id := range byCore {
		coreIDs = append(coreIDs, id)
	}
	sort.Strings(coreIDs)

	results := make([][]*domain.HarmonizedRecord, len(coreIDs))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < s.workerCount(len(coreIDs)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				coreID := coreIDs[i]
				records, err := s.harmonizer.HarmonizeCore(coreID, byCore[coreID])
				if err != nil {
					logger.Warn("core rejected during harmonization",
						slog.String("core_id", coreID),
						slog.String("reason", err.Error()))
					continue
				}
				results[i] = records
			}
		}()
	}

	for i := range coreIDs {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, &PipelineError{Operation: "harmonize", Message: "run cancelled", Err: ctx.Err()}
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	var flat []*domain.HarmonizedRecord
	for _, records := range results {
		flat = append(flat, records...)
	}
	return flat, nil
}

// processDepths runs weighting, training and selection for every
// standard depth on a bounded worker pool. Each depth writes its own
// indexed slot, so the output order is always depth order.
func (s *Service) processDepths(ctx context.Context, harmonized []*domain.HarmonizedRecord, covariates []string, seed int64, logger *slog.Logger) ([]DepthOutcome, error) {
	byDepth := make(map[float64][]*domain.HarmonizedRecord)
	for _, rec := range harmonized {
		byDepth[rec.Depth.MidpointCm] = append(byDepth[rec.Depth.MidpointCm], rec)
	}

	outcomes := make([]DepthOutcome, len(s.depths))
	errs := make([]error, len(s.depths))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < s.workerCount(len(s.depths)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				// Per-depth seeds derive from the run seed and the depth
				// index, so runs reproduce regardless of scheduling.
				outcomes[i], errs[i] = s.processDepth(s.depths[i], byDepth[s.depths[i].MidpointCm], covariates, seed+int64(i), logger)
			}
		}()
	}

	for i := range s.depths {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, &PipelineError{Operation: "train", Message: "run cancelled", Err: ctx.Err()}
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return outcomes, nil
}

func (s *Service) processDepth(depth domain.StandardDepth, records []*domain.HarmonizedRecord, covariates []string, seed int64, logger *slog.Logger) (DepthOutcome, error) {
	start := time.Now()

	weights, err := s.weighter.Weigh(records, domain.DomainLocal, covariates)
	if err != nil {
		return DepthOutcome{}, &PipelineError{Operation: "weigh", Message: fmt.Sprintf("depth %.1f cm", depth.MidpointCm), Err: err}
	}
	var weightingFlag string
	if weights.Skipped {
		weightingFlag = weights.Reason
	}

	trained, err := s.trainer.Train(strategy.DepthData{
		Depth:      depth,
		Covariates: covariates,
		Records:    records,
		TargetTag:  domain.DomainLocal,
		Weights:    weights,
	}, seed)
	if err != nil {
		return DepthOutcome{}, &PipelineError{Operation: "train", Message: fmt.Sprintf("depth %.1f cm", depth.MidpointCm), Err: err}
	}

	selection, model := s.selector.Select(trained, weightingFlag)
	outcome := DepthOutcome{
		Selection:   selection,
		Model:       model,
		RecordCount: len(records),
	}

	if model != nil {
		predictions, mean, err := predictTargets(model, records, covariates)
		if err != nil {
			return DepthOutcome{}, &PipelineError{Operation: "predict", Message: fmt.Sprintf("depth %.1f cm", depth.MidpointCm), Err: err}
		}
		outcome.Predictions = predictions
		outcome.MeanPredictedTHa = mean
	}

	s.metrics.RecordSelection(selection, time.Since(start))
	logger.Debug("depth processed",
		slog.Float64("depth_cm", depth.MidpointCm),
		slog.String("status", string(selection.Status)),
		slog.Duration("elapsed", time.Since(start)))
	return outcome, nil
}

// predictTargets scores the complete-covariate target-domain records
// with the chosen model and reports residuals against observed stocks.
func predictTargets(model *strategy.TrainedModel, records []*domain.HarmonizedRecord, covariates []string) ([]domain.RecordPrediction, float64, error) {
	targets := make([]*domain.HarmonizedRecord, 0, len(records))
	for _, rec := range records {
		if rec.Domain != domain.DomainLocal {
			continue
		}
		if _, ok := rec.CovariateVector(covariates); !ok {
			continue
		}
		targets = append(targets, rec)
	}
	if len(targets) == 0 {
		return nil, 0, nil
	}

	predicted, err := model.Predict(targets)
	if err != nil {
		return nil, 0, err
	}
	predictions := make([]domain.RecordPrediction, len(targets))
	var sum float64
	for i, rec := range targets {
		predictions[i] = domain.RecordPrediction{
			RecordID:  rec.ID,
			Predicted: predicted[i],
			Residual:  predicted[i] - rec.StockTHa,
		}
		sum += predicted[i]
	}
	return predictions, sum / float64(len(targets)), nil
}

func (s *Service) workerCount(pending int) int {
	n := s.cfg.WorkerCount
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if pending > 0 && n > pending {
		n = pending
	}
	if n < 1 {
		n = 1
	}
	return n
}
