// Package stock combines per-depth predictions into a total-profile
// carbon stock with a conservative lower bound.
package stock

import (
	"log/slog"
	"math"

	"github.com/opencarbon/soilstock/internal/domain"
)

// defaultZ is the one-sided 95% normal quantile used for the
// conservative bound.
const defaultZ = 1.645

// DepthEstimate is one depth's contribution to the profile: its
// selection outcome plus the mean predicted layer stock over the
// target-domain records at that depth. Layer stocks are already
// expressed per layer thickness in t/ha, so summing them across depths
// is the thickness-weighted profile total.
type DepthEstimate struct {
	Depth            domain.StandardDepth
	Selection        domain.SelectionResult
	MeanPredictedTHa float64
	PredictionCount  int
}

// Aggregator folds per-depth estimates into a ProfileStock. Immutable
// after construction.
type Aggregator struct {
	z      float64
	logger *slog.Logger
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithConfidenceZ overrides the normal quantile of the conservative
// bound. Zero or negative keeps the default.
func WithConfidenceZ(z float64) Option {
	return func(a *Aggregator) {
		if z > 0 {
			a.z = z
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = log }
}

// New creates an Aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		z:      defaultZ,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(slog.String("component", "stock_aggregator"))
	return a
}

// Aggregate sums the contributing depths' mean predicted layer stocks
// into the profile total and derives the conservative bound by
// combining each contributing depth's holdout RMSE in quadrature.
// Depths without a usable estimate are excluded from both figures and
// flagged in the coverage list, which always covers every configured
// depth in order.
func (a *Aggregator) Aggregate(depths []domain.StandardDepth, estimates []DepthEstimate) domain.ProfileStock {
	byMidpoint := make(map[float64]DepthEstimate, len(estimates))
	for _, est := range estimates {
		byMidpoint[est.Depth.MidpointCm] = est
	}

	var (
		total    float64
		variance float64
		coverage = make([]domain.DepthCoverage, len(depths))
	)
	for i, depth := range depths {
		coverage[i] = domain.DepthCoverage{Depth: depth}

		est, ok := byMidpoint[depth.MidpointCm]
		switch {
		case !ok:
			coverage[i].Reason = "no depth result"
		case est.Selection.Status != domain.DepthSelected || est.Selection.Chosen == nil:
			coverage[i].Reason = "insufficient data"
		case est.PredictionCount == 0:
			coverage[i].Reason = "no target predictions"
		default:
			coverage[i].Contributed = true
			total += est.MeanPredictedTHa
			rmse := est.Selection.Chosen.Metrics.RMSE
			variance += rmse * rmse
		}
	}

	conservative := total - a.z*math.Sqrt(variance)
	if conservative < 0 {
		conservative = 0
	}

	profile := domain.ProfileStock{
		TotalTHa:        total,
		ConservativeTHa: conservative,
		Coverage:        coverage,
	}
	a.logger.Info("profile stock aggregated",
		slog.Float64("total_t_ha", profile.TotalTHa),
		slog.Float64("conservative_t_ha", profile.ConservativeTHa),
		slog.Bool("complete", profile.Complete()))
	return profile
}
