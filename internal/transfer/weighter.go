// Package transfer quantifies the similarity between the source and
// target sample populations. The DomainWeighter attaches an importance
// weight to every source-domain record, inversely related to the
// Mahalanobis distance of its covariate vector from the target domain's
// covariate distribution, under an exponential kernel whose bandwidth
// self-calibrates to the median distance of the run.
package transfer

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/opencarbon/soilstock/internal/domain"
)

// Reasons a run's weighting degraded to uniform weights. These surface
// as warning flags in depth reports; they are never errors.
const (
	ReasonInsufficientTarget = "weighting skipped: insufficient target data"
	ReasonSingularCovariance = "weighting skipped: singular covariance"
	ReasonNoCovariates       = "weighting skipped: no covariates"
)

// Ridge fraction of the mean diagonal added to the covariance matrix to
// guard invertibility.
const ridgeFraction = 1e-6

// Result is the outcome of one weighting pass: one weight per
// source-domain record keyed by record ID. Weights are non-negative and
// sum to the source record count. Skipped means the pass degraded to
// uniform weights; Reason says why.
type Result struct {
	Weights        map[uuid.UUID]float64
	Skipped        bool
	Reason         string
	MedianDistance float64
	Bandwidth      float64
}

// WeightFor returns the weight for a record, defaulting to 1 for IDs the
// pass did not cover.
func (r *Result) WeightFor(id uuid.UUID) float64 {
	if w, ok := r.Weights[id]; ok {
		return w
	}
	return 1
}

// Weighter computes domain-similarity weights. Immutable after
// construction and safe for concurrent use across depths.
type Weighter struct {
	minTarget int
	bandwidth float64
	logger    *slog.Logger
}

// Option customizes a Weighter.
type Option func(*Weighter)

// WithBandwidth overrides the self-calibrating kernel bandwidth.
func WithBandwidth(b float64) Option {
	return func(w *Weighter) { w.bandwidth = b }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(w *Weighter) { w.logger = log }
}

// New creates a Weighter. minTarget is the minimum number of
// complete-covariate target records below which weighting is skipped.
func New(minTarget int, opts ...Option) *Weighter {
	w := &Weighter{
		minTarget: minTarget,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(slog.String("component", "domain_weighter"))
	return w
}

// Weigh returns one weight per non-target record in records, relative to
// the target domain's distribution over the given covariates. Degenerate
// inputs (too few target records, singular covariance, no covariates)
// fall back to uniform weight 1 for every source record, flagged with a
// reason.
func (w *Weighter) Weigh(
	records []*domain.HarmonizedRecord,
	target domain.DomainTag,
	covariates []string,
) (*Result, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidDomainTag, target)
	}

	var targetVecs [][]float64
	var source []*domain.HarmonizedRecord
	for _, rec := range records {
		if rec.Domain == target {
			if vec, ok := rec.CovariateVector(covariates); ok {
				targetVecs = append(targetVecs, vec)
			}
			continue
		}
		source = append(source, rec)
	}

	if len(covariates) == 0 {
		return w.uniform(source, ReasonNoCovariates), nil
	}
	if len(targetVecs) < w.minTarget {
		w.logger.Warn("insufficient target data for domain weighting",
			slog.Int("target_complete", len(targetVecs)),
			slog.Int("min_required", w.minTarget))
		return w.uniform(source, ReasonInsufficientTarget), nil
	}

	dim := len(covariates)
	data := mat.NewDense(len(targetVecs), dim, nil)
	for i, vec := range targetVecs {
		data.SetRow(i, vec)
	}

	mean := make([]float64, dim)
	for j := 0; j < dim; j++ {
		mean[j] = stat.Mean(mat.Col(nil, j, data), nil)
	}

	cov := mat.NewSymDense(dim, nil)
	stat.CovarianceMatrix(cov, data, nil)

	// Ridge regularization scaled to the covariance magnitude.
	var trace float64
	for j := 0; j < dim; j++ {
		trace += cov.At(j, j)
	}
	ridge := ridgeFraction * trace / float64(dim)
	if ridge <= 0 {
		ridge = ridgeFraction
	}
	for j := 0; j < dim; j++ {
		cov.SetSym(j, j, cov.At(j, j)+ridge)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		w.logger.Warn("singular covariance matrix, skipping domain weighting",
			slog.Int("covariates", dim))
		return w.uniform(source, ReasonSingularCovariance), nil
	}

	meanVec := mat.NewVecDense(dim, mean)
	type scored struct {
		id   uuid.UUID
		dist float64
	}
	var complete []scored
	var incomplete []uuid.UUID
	for _, rec := range source {
		vec, ok := rec.CovariateVector(covariates)
		if !ok {
			incomplete = append(incomplete, rec.ID)
			continue
		}
		d := stat.Mahalanobis(mat.NewVecDense(dim, vec), meanVec, &chol)
		complete = append(complete, scored{id: rec.ID, dist: d})
	}

	res := &Result{Weights: make(map[uuid.UUID]float64, len(source))}
	for _, id := range incomplete {
		res.Weights[id] = 1
	}
	if len(complete) == 0 {
		return res, nil
	}

	dists := make([]float64, len(complete))
	for i, s := range complete {
		dists[i] = s.dist
	}
	res.MedianDistance = median(dists)

	scale := w.bandwidth
	if scale <= 0 {
		scale = res.MedianDistance
	}
	res.Bandwidth = scale

	if scale <= 0 {
		// Every source record sits on the target mean; weights are uniform.
		for _, s := range complete {
			res.Weights[s.id] = 1
		}
		return res, nil
	}

	// Exponential kernel, then renormalize so weights sum to the number
	// of kernel-weighted source records (effective-sample-size
	// preserving).
	var total float64
	raw := make([]float64, len(complete))
	for i, s := range complete {
		raw[i] = kernel(s.dist, scale)
		total += raw[i]
	}
	norm := float64(len(complete)) / total
	for i, s := range complete {
		res.Weights[s.id] = raw[i] * norm
	}
	return res, nil
}

// uniform builds the fallback result: weight 1 for every source record.
func (w *Weighter) uniform(source []*domain.HarmonizedRecord, reason string) *Result {
	res := &Result{
		Weights: make(map[uuid.UUID]float64, len(source)),
		Skipped: true,
		Reason:  reason,
	}
	for _, rec := range source {
		res.Weights[rec.ID] = 1
	}
	return res
}

func kernel(dist, scale float64) float64 {
	return math.Exp(-dist / scale)
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}
