// Package harmonize converts arbitrary-depth soil measurements into
// standard-depth estimates, preserving the total carbon mass implied by
// the raw measurements over the portion of the profile they cover.
//
// The method fits a monotone shape-preserving cubic (Fritsch-Butland)
// through the cumulative carbon mass observed at raw interval
// boundaries. Because the fit interpolates the observed cumulative mass
// exactly, the mass recovered over any raw interval equals that
// interval's measured stock. Standard-layer stocks are differences of
// the fitted cumulative mass at the layer boundaries; concentrations are
// recovered through a locally interpolated bulk density.
package harmonize

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/interp"

	"github.com/opencarbon/soilstock/internal/domain"
)

// Boundary tolerance in centimetres when deciding whether a standard
// layer is covered by the measured depth range.
const depthEps = 1e-6

// Package errors. Both are schema violations: the affected core is
// excluded from the run, never a whole-run abort.
var (
	// ErrOverlappingIntervals is returned when a core's raw intervals overlap.
	ErrOverlappingIntervals = errors.New("overlapping depth intervals")

	// ErrMixedCores is returned when the samples passed for one core
	// carry more than one core ID.
	ErrMixedCores = errors.New("samples from multiple cores")
)

// Harmonizer produces HarmonizedRecords at a fixed standard depth list.
// It is immutable after construction and safe for concurrent use across
// cores.
type Harmonizer struct {
	depths      []domain.StandardDepth
	extrapolate bool
	logger      *slog.Logger
}

// Option customizes a Harmonizer.
type Option func(*Harmonizer)

// WithExtrapolation allows records for standard layers beyond the
// measured depth range. Off by default: uncovered layers are reported as
// missing, not extrapolated.
func WithExtrapolation() Option {
	return func(h *Harmonizer) { h.extrapolate = true }
}

// WithLogger sets the logger used for per-core diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(h *Harmonizer) { h.logger = log }
}

// New creates a Harmonizer for the given ordered standard depths.
func New(depths []domain.StandardDepth, opts ...Option) (*Harmonizer, error) {
	if err := domain.ValidateStandardDepths(depths); err != nil {
		return nil, err
	}
	h := &Harmonizer{
		depths: append([]domain.StandardDepth(nil), depths...),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(slog.String("component", "harmonizer"))
	return h, nil
}

// HarmonizeCore converts one core's raw samples into at most one
// HarmonizedRecord per standard depth. Samples may arrive unsorted; they
// must belong to one core and must not overlap. A core with fewer than
// two intervals degrades to proportional or nearest-depth assignment
// with a lowered confidence flag rather than failing.
func (h *Harmonizer) HarmonizeCore(coreID string, samples []*domain.Sample) ([]*domain.HarmonizedRecord, error) {
	if len(samples) == 0 {
		return nil, nil
	}

	sorted := append([]*domain.Sample(nil), samples...)
	sort.Slice(sorted, func(a, b int) bool {
		return sorted[a].DepthTopCm < sorted[b].DepthTopCm
	})
	for i, s := range sorted {
		if s.CoreID != coreID {
			return nil, fmt.Errorf("core %s: %w", coreID, ErrMixedCores)
		}
		if i > 0 && s.DepthTopCm < sorted[i-1].DepthBottomCm-depthEps {
			return nil, fmt.Errorf("core %s: %w", coreID, ErrOverlappingIntervals)
		}
	}

	if len(sorted) == 1 {
		return h.degraded(coreID, sorted[0]), nil
	}
	return h.spline(coreID, sorted)
}

// degraded handles the single-interval core: the measured mass is split
// proportionally across the standard layers the interval spans; if the
// interval overlaps no standard layer it is assigned whole to the
// closest standard depth.
func (h *Harmonizer) degraded(coreID string, s *domain.Sample) []*domain.HarmonizedRecord {
	var records []*domain.HarmonizedRecord
	for _, d := range h.depths {
		top := math.Max(d.TopCm, s.DepthTopCm)
		bottom := math.Min(d.BottomCm, s.DepthBottomCm)
		if bottom-top <= depthEps {
			continue
		}
		frac := (bottom - top) / s.ThicknessCm()
		stock := s.StockTHa * frac
		records = append(records, h.record(coreID, s, d, stock, s.BulkDensityGCm3, domain.ConfidenceProportional, []*domain.Sample{s}))
	}
	if len(records) > 0 {
		return records
	}

	// No overlap with any standard layer: direct assignment to the
	// closest standard depth.
	mid := (s.DepthTopCm + s.DepthBottomCm) / 2
	best := h.depths[0]
	for _, d := range h.depths[1:] {
		if math.Abs(d.MidpointCm-mid) < math.Abs(best.MidpointCm-mid) {
			best = d
		}
	}
	h.logger.Debug("single interval outside standard layers, assigning to closest depth",
		slog.String("core_id", coreID),
		slog.Float64("midpoint_cm", best.MidpointCm))
	return []*domain.HarmonizedRecord{
		h.record(coreID, s, best, s.StockTHa, s.BulkDensityGCm3, domain.ConfidenceNearest, []*domain.Sample{s}),
	}
}

// spline handles cores with two or more intervals using the
// mass-preserving monotone cubic over cumulative mass versus depth.
func (h *Harmonizer) spline(coreID string, sorted []*domain.Sample) ([]*domain.HarmonizedRecord, error) {
	xs, ys := cumulativeMass(sorted)

	var cum interp.FritschButland
	if err := cum.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("core %s: fitting cumulative mass spline: %w", coreID, err)
	}

	bdXs, bdYs := bulkDensityPoints(sorted)
	var bd interp.PiecewiseLinear
	if err := bd.Fit(bdXs, bdYs); err != nil {
		return nil, fmt.Errorf("core %s: fitting bulk density profile: %w", coreID, err)
	}

	minDepth, maxDepth := xs[0], xs[len(xs)-1]
	evalCum := func(z float64) float64 {
		return cum.Predict(clamp(z, minDepth, maxDepth))
	}
	evalBD := func(z float64) float64 {
		return bd.Predict(clamp(z, bdXs[0], bdXs[len(bdXs)-1]))
	}

	var records []*domain.HarmonizedRecord
	for _, d := range h.depths {
		covered := d.TopCm >= minDepth-depthEps && d.BottomCm <= maxDepth+depthEps
		if !covered && !h.extrapolate {
			continue
		}
		stock := evalCum(d.BottomCm) - evalCum(d.TopCm)
		if stock < 0 {
			stock = 0
		}
		sources := overlappingSamples(sorted, d)
		if len(sources) == 0 {
			continue
		}
		records = append(records, h.record(coreID, sources[0], d, stock, evalBD(d.MidpointCm), domain.ConfidenceHarmonized, sources))
	}
	return records, nil
}

// record assembles one HarmonizedRecord, recovering concentration from
// the layer stock via the interpolated bulk density.
func (h *Harmonizer) record(
	coreID string,
	carrier *domain.Sample,
	d domain.StandardDepth,
	stockTHa, bulkDensity float64,
	confidence domain.HarmonizationConfidence,
	sources []*domain.Sample,
) *domain.HarmonizedRecord {
	soc := 0.0
	if bulkDensity > 0 {
		soc = stockTHa / (0.1 * bulkDensity * d.ThicknessCm())
	}
	rec := &domain.HarmonizedRecord{
		ID:              uuid.New(),
		CoreID:          coreID,
		Domain:          carrier.Domain,
		Depth:           d,
		SOCGPerKg:       soc,
		BulkDensityGCm3: bulkDensity,
		StockTHa:        stockTHa,
		Covariates:      carrier.Covariates,
		Location:        carrier.Location,
		Confidence:      confidence,
	}
	for _, s := range sources {
		rec.SourceSampleIDs = append(rec.SourceSampleIDs, s.ID)
	}
	return rec
}

// cumulativeMass builds the (depth, cumulative stock) boundary points of
// a sorted, non-overlapping interval list. Gaps between intervals hold
// cumulative mass constant: unmeasured spans contribute no mass, and the
// preservation guarantee applies only to the measured portion.
func cumulativeMass(sorted []*domain.Sample) (xs, ys []float64) {
	xs = append(xs, sorted[0].DepthTopCm)
	ys = append(ys, 0)
	total := 0.0
	for i, s := range sorted {
		if i > 0 && s.DepthTopCm > sorted[i-1].DepthBottomCm+depthEps {
			xs = append(xs, s.DepthTopCm)
			ys = append(ys, total)
		}
		total += s.StockTHa
		xs = append(xs, s.DepthBottomCm)
		ys = append(ys, total)
	}
	return xs, ys
}

// bulkDensityPoints maps interval midpoints to measured bulk densities
// for piecewise-linear interpolation across the profile.
func bulkDensityPoints(sorted []*domain.Sample) (xs, ys []float64) {
	for _, s := range sorted {
		xs = append(xs, (s.DepthTopCm+s.DepthBottomCm)/2)
		ys = append(ys, s.BulkDensityGCm3)
	}
	return xs, ys
}

// overlappingSamples returns the raw intervals contributing mass to a
// standard layer, ordered by depth. The first (shallowest overlapping)
// sample acts as the covariate carrier for the record.
func overlappingSamples(sorted []*domain.Sample, d domain.StandardDepth) []*domain.Sample {
	var out []*domain.Sample
	for _, s := range sorted {
		if math.Min(s.DepthBottomCm, d.BottomCm)-math.Max(s.DepthTopCm, d.TopCm) > depthEps {
			out = append(out, s)
		}
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
