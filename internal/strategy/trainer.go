// Package strategy trains the candidate transfer strategies for each
// standard depth and selects the best performer. The five strategies are
// a closed set (see domain.StrategyKind); each is an independent
// best-effort attempt gated by its own minimum sample counts, and all
// attempted strategies are scored on the same deterministic
// target-domain holdout so their metrics are comparable.
package strategy

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/opencarbon/soilstock/internal/domain"
	"github.com/opencarbon/soilstock/internal/regress"
	"github.com/opencarbon/soilstock/internal/transfer"
)

var (
	// ErrNilFactory is returned by NewTrainer when no regressor factory
	// is supplied.
	ErrNilFactory = errors.New("nil regressor factory")

	// ErrInvalidHoldoutFraction is returned by NewTrainer when the
	// holdout fraction is outside (0, 1).
	ErrInvalidHoldoutFraction = errors.New("holdout fraction must be in (0, 1)")
)

// Config carries the trainer's tunables. All minimums gate whether a
// strategy is attempted at all; an unmet minimum yields a skip entry,
// never an error.
type Config struct {
	HoldoutFraction    float64
	MinTargetLocalOnly int
	MinSourceTransfer  int
	MinTargetFineTune  int
	MinTargetEnsemble  int
}

// DepthData is the immutable per-depth training input: the harmonized
// records at one standard depth, the covariate names surviving the
// completeness filter, and the domain weights computed for the run.
type DepthData struct {
	Depth      domain.StandardDepth
	Covariates []string
	Records    []*domain.HarmonizedRecord

	// TargetTag designates the evaluation domain. Empty means local.
	TargetTag domain.DomainTag

	// Weights is the domain weighting result for the run. Nil or a
	// skipped result degrades weighted transfer to uniform weights.
	Weights *transfer.Result
}

// TrainedModel is one fitted candidate: the strategy, its holdout
// report, and the predictor. Fields are exported so a chosen model
// serializes as a run artifact via encoding/gob.
type TrainedModel struct {
	Depth      domain.StandardDepth
	Kind       domain.StrategyKind
	Report     domain.StrategyReport
	Covariates []string
	TargetTag  domain.DomainTag

	// Model predicts over the strategy's feature layout: the covariate
	// vector, plus a source-model prediction (two-stage) or a binary
	// domain indicator (ensemble) appended as the final feature.
	Model regress.Predictor

	// SourceModel is the first-stage predictor of two-stage fine-tune,
	// nil for every other kind.
	SourceModel regress.Predictor
}

// Predict scores harmonized records with the fitted model, handling the
// per-kind feature augmentation. Records missing any model covariate
// produce a validation error.
func (m *TrainedModel) Predict(records []*domain.HarmonizedRecord) ([]float64, error) {
	base := make([][]float64, len(records))
	for i, rec := range records {
		vec, ok := rec.CovariateVector(m.Covariates)
		if !ok {
			return nil, fmt.Errorf("%w: record %s missing model covariates", domain.ErrValidation, rec.ID)
		}
		base[i] = vec
	}

	switch m.Kind {
	case domain.StrategyTwoStageFineTune:
		if m.SourceModel == nil {
			return nil, fmt.Errorf("%w: two-stage model without source stage", domain.ErrInvalidStrategy)
		}
		stage := m.SourceModel.Predict(base)
		for i := range base {
			base[i] = append(base[i], stage[i])
		}
	case domain.StrategyEnsemble:
		for i, rec := range records {
			indicator := 0.0
			if rec.Domain == m.TargetTag {
				indicator = 1.0
			}
			base[i] = append(base[i], indicator)
		}
	}
	return m.Model.Predict(base), nil
}

// DepthResult is the full training outcome for one depth: the fitted
// candidates in fixed declaration order plus the skipped strategies
// with reasons.
type DepthResult struct {
	Depth        domain.StandardDepth
	Models       []*TrainedModel
	Skipped      []domain.SkippedStrategy
	TargetCount  int
	SourceCount  int
	HoldoutCount int
}

// ModelFor returns the trained model of the given kind, or nil if the
// strategy was skipped.
func (r *DepthResult) ModelFor(kind domain.StrategyKind) *TrainedModel {
	for _, m := range r.Models {
		if m.Kind == kind {
			return m
		}
	}
	return nil
}

// Trainer fits the candidate strategies for a depth. Immutable after
// construction and safe for concurrent use across depths.
type Trainer struct {
	cfg     Config
	factory regress.Factory
	logger  *slog.Logger
}

// Option customizes a Trainer.
type Option func(*Trainer)

// WithLogger sets the logger used for diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(t *Trainer) { t.logger = log }
}

// NewTrainer creates a Trainer over the given regressor factory.
func NewTrainer(cfg Config, factory regress.Factory, opts ...Option) (*Trainer, error) {
	if factory == nil {
		return nil, ErrNilFactory
	}
	if cfg.HoldoutFraction <= 0 || cfg.HoldoutFraction >= 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHoldoutFraction, cfg.HoldoutFraction)
	}
	t := &Trainer{
		cfg:     cfg,
		factory: factory,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(slog.String("component", "strategy_trainer"))
	return t, nil
}

// depthSet is the prepared training material for one Train call:
// complete-covariate records partitioned by domain with cached feature
// rows, and the shared target holdout.
type depthSet struct {
	target     []*domain.HarmonizedRecord
	source     []*domain.HarmonizedRecord
	targetX    [][]float64
	targetY    []float64
	sourceX    [][]float64
	sourceY    []float64
	trainIdx   []int
	holdoutIdx []int
}

func (d *depthSet) holdoutFeatures() [][]float64 {
	out := make([][]float64, len(d.holdoutIdx))
	for i, idx := range d.holdoutIdx {
		out[i] = d.targetX[idx]
	}
	return out
}

func (d *depthSet) holdoutObserved() []float64 {
	out := make([]float64, len(d.holdoutIdx))
	for i, idx := range d.holdoutIdx {
		out[i] = d.targetY[idx]
	}
	return out
}

// Train fits up to five candidate strategies for one depth. The seed
// fully determines the holdout split and every stochastic backend, so
// identical inputs yield identical models and metrics. Unmet minimums
// and degenerate data produce skip entries, never errors.
func (t *Trainer) Train(data DepthData, seed int64) (*DepthResult, error) {
	targetTag := data.TargetTag
	if targetTag == "" {
		targetTag = domain.DomainLocal
	}
	if !targetTag.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidDomainTag, targetTag)
	}

	set := &depthSet{}
	for _, rec := range data.Records {
		vec, ok := rec.CovariateVector(data.Covariates)
		if !ok || len(data.Covariates) == 0 {
			continue
		}
		if rec.Domain == targetTag {
			set.target = append(set.target, rec)
			set.targetX = append(set.targetX, vec)
			set.targetY = append(set.targetY, rec.StockTHa)
		} else {
			set.source = append(set.source, rec)
			set.sourceX = append(set.sourceX, vec)
			set.sourceY = append(set.sourceY, rec.StockTHa)
		}
	}

	result := &DepthResult{
		Depth:       data.Depth,
		TargetCount: len(set.target),
		SourceCount: len(set.source),
	}

	if len(data.Covariates) == 0 {
		for _, kind := range domain.AllStrategies() {
			result.Skipped = append(result.Skipped, domain.SkippedStrategy{
				Kind:   kind,
				Reason: "no covariates available",
			})
		}
		return result, nil
	}

	if len(set.target) >= 2 {
		rng := rand.New(rand.NewSource(seed))
		set.trainIdx, set.holdoutIdx = regress.HoldoutSplit(len(set.target), t.cfg.HoldoutFraction, rng)
	}
	result.HoldoutCount = len(set.holdoutIdx)

	for i, kind := range domain.AllStrategies() {
		// Every strategy gets its own derived seed so attempting or
		// skipping one never perturbs another.
		strategySeed := seed + int64(i) + 1
		model, skip := t.attempt(kind, data, set, targetTag, strategySeed)
		switch {
		case model != nil:
			result.Models = append(result.Models, model)
		case skip != nil:
			result.Skipped = append(result.Skipped, *skip)
		}
	}

	t.logger.Debug("depth training complete",
		slog.Float64("depth_cm", data.Depth.MidpointCm),
		slog.Int("target_records", result.TargetCount),
		slog.Int("source_records", result.SourceCount),
		slog.Int("trained", len(result.Models)),
		slog.Int("skipped", len(result.Skipped)))
	return result, nil
}

func (t *Trainer) attempt(kind domain.StrategyKind, data DepthData, set *depthSet, targetTag domain.DomainTag, seed int64) (*TrainedModel, *domain.SkippedStrategy) {
	skip := func(reason string) (*TrainedModel, *domain.SkippedStrategy) {
		return nil, &domain.SkippedStrategy{Kind: kind, Reason: reason}
	}

	// Gate on the strategy's minimums before anything else, so skip
	// reasons name the binding constraint.
	switch kind {
	case domain.StrategyLocalOnly:
		if len(set.target) < t.cfg.MinTargetLocalOnly {
			return skip(fmt.Sprintf("requires at least %d target records, have %d", t.cfg.MinTargetLocalOnly, len(set.target)))
		}
	case domain.StrategyNaiveTransfer, domain.StrategyWeightedTransfer:
		if len(set.source) < t.cfg.MinSourceTransfer {
			return skip(fmt.Sprintf("requires at least %d source records, have %d", t.cfg.MinSourceTransfer, len(set.source)))
		}
	case domain.StrategyTwoStageFineTune:
		if len(set.source) < t.cfg.MinSourceTransfer {
			return skip(fmt.Sprintf("requires at least %d source records, have %d", t.cfg.MinSourceTransfer, len(set.source)))
		}
		if len(set.target) < t.cfg.MinTargetFineTune {
			return skip(fmt.Sprintf("requires at least %d target records for fine-tuning, have %d", t.cfg.MinTargetFineTune, len(set.target)))
		}
	case domain.StrategyEnsemble:
		if len(set.target) < t.cfg.MinTargetEnsemble {
			return skip(fmt.Sprintf("requires at least %d target records, have %d", t.cfg.MinTargetEnsemble, len(set.target)))
		}
		if len(set.source) == 0 {
			return skip("requires at least 1 source record, have 0")
		}
	default:
		return skip("unknown strategy")
	}

	if len(set.holdoutIdx) == 0 {
		return skip("no target holdout available for evaluation")
	}

	var (
		model *TrainedModel
		err   error
	)
	switch kind {
	case domain.StrategyLocalOnly:
		model, err = t.trainLocalOnly(set, seed)
	case domain.StrategyNaiveTransfer:
		model, err = t.trainNaive(set, seed)
	case domain.StrategyWeightedTransfer:
		model, err = t.trainWeighted(data, set, seed)
	case domain.StrategyTwoStageFineTune:
		model, err = t.trainTwoStage(set, seed)
	case domain.StrategyEnsemble:
		model, err = t.trainEnsemble(set, seed)
	}
	if err != nil {
		t.logger.Warn("strategy training failed",
			slog.String("strategy", string(kind)),
			slog.Float64("depth_cm", data.Depth.MidpointCm),
			slog.String("error", err.Error()))
		return skip(fmt.Sprintf("training failed: %v", err))
	}

	model.Depth = data.Depth
	model.Kind = kind
	model.Covariates = append([]string(nil), data.Covariates...)
	model.TargetTag = targetTag
	model.Report.Kind = kind
	model.Report.HoldoutCount = len(set.holdoutIdx)
	return model, nil
}

func (t *Trainer) trainLocalOnly(set *depthSet, seed int64) (*TrainedModel, error) {
	features := make([][]float64, len(set.trainIdx))
	targets := make([]float64, len(set.trainIdx))
	for i, idx := range set.trainIdx {
		features[i] = set.targetX[idx]
		targets[i] = set.targetY[idx]
	}
	predictor, err := t.factory(seed).Fit(features, targets, nil)
	if err != nil {
		return nil, err
	}
	return &TrainedModel{
		Model: predictor,
		Report: domain.StrategyReport{
			Metrics:    evaluate(predictor, set.holdoutFeatures(), set.holdoutObserved()),
			TrainCount: len(features),
		},
	}, nil
}

func (t *Trainer) trainNaive(set *depthSet, seed int64) (*TrainedModel, error) {
	predictor, err := t.factory(seed).Fit(set.sourceX, set.sourceY, nil)
	if err != nil {
		return nil, err
	}
	return &TrainedModel{
		Model: predictor,
		Report: domain.StrategyReport{
			Metrics:    evaluate(predictor, set.holdoutFeatures(), set.holdoutObserved()),
			TrainCount: len(set.sourceX),
		},
	}, nil
}

func (t *Trainer) trainWeighted(data DepthData, set *depthSet, seed int64) (*TrainedModel, error) {
	weights := make([]float64, len(set.source))
	for i, rec := range set.source {
		weights[i] = 1
		if data.Weights != nil {
			weights[i] = data.Weights.WeightFor(rec.ID)
		}
	}
	predictor, err := t.factory(seed).Fit(set.sourceX, set.sourceY, weights)
	if err != nil {
		return nil, err
	}
	return &TrainedModel{
		Model: predictor,
		Report: domain.StrategyReport{
			Metrics:    evaluate(predictor, set.holdoutFeatures(), set.holdoutObserved()),
			TrainCount: len(set.sourceX),
		},
	}, nil
}

func (t *Trainer) trainTwoStage(set *depthSet, seed int64) (*TrainedModel, error) {
	sourceModel, err := t.factory(seed).Fit(set.sourceX, set.sourceY, nil)
	if err != nil {
		return nil, err
	}

	features := make([][]float64, len(set.trainIdx))
	targets := make([]float64, len(set.trainIdx))
	for i, idx := range set.trainIdx {
		features[i] = set.targetX[idx]
		targets[i] = set.targetY[idx]
	}
	stage := sourceModel.Predict(features)
	augmented := make([][]float64, len(features))
	for i, row := range features {
		augmented[i] = append(append([]float64(nil), row...), stage[i])
	}
	final, err := t.factory(seed + 1).Fit(augmented, targets, nil)
	if err != nil {
		return nil, err
	}

	holdFeatures := set.holdoutFeatures()
	holdStage := sourceModel.Predict(holdFeatures)
	holdAugmented := make([][]float64, len(holdFeatures))
	for i, row := range holdFeatures {
		holdAugmented[i] = append(append([]float64(nil), row...), holdStage[i])
	}

	return &TrainedModel{
		Model:       final,
		SourceModel: sourceModel,
		Report: domain.StrategyReport{
			Metrics:    evaluate(final, holdAugmented, set.holdoutObserved()),
			TrainCount: len(augmented),
		},
	}, nil
}

func (t *Trainer) trainEnsemble(set *depthSet, seed int64) (*TrainedModel, error) {
	// The training union takes every source record and the target train
	// split, so both domains are guaranteed to appear.
	rows := make([][]float64, 0, len(set.sourceX)+len(set.trainIdx))
	targets := make([]float64, 0, len(set.sourceX)+len(set.trainIdx))
	for i, row := range set.sourceX {
		rows = append(rows, append(append([]float64(nil), row...), 0))
		targets = append(targets, set.sourceY[i])
	}
	for _, idx := range set.trainIdx {
		rows = append(rows, append(append([]float64(nil), set.targetX[idx]...), 1))
		targets = append(targets, set.targetY[idx])
	}
	predictor, err := t.factory(seed).Fit(rows, targets, nil)
	if err != nil {
		return nil, err
	}

	holdFeatures := set.holdoutFeatures()
	holdAugmented := make([][]float64, len(holdFeatures))
	for i, row := range holdFeatures {
		holdAugmented[i] = append(append([]float64(nil), row...), 1)
	}

	return &TrainedModel{
		Model: predictor,
		Report: domain.StrategyReport{
			Metrics:    evaluate(predictor, holdAugmented, set.holdoutObserved()),
			TrainCount: len(rows),
		},
	}, nil
}

func evaluate(p regress.Predictor, features [][]float64, observed []float64) domain.StrategyMetrics {
	predicted := p.Predict(features)
	return domain.StrategyMetrics{
		R2:   regress.R2(predicted, observed),
		RMSE: regress.RMSE(predicted, observed),
	}
}
