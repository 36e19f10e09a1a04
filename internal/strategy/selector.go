package strategy

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/opencarbon/soilstock/internal/domain"
)

// selectionEpsilon is the tolerance within which two holdout scores are
// considered tied.
const selectionEpsilon = 1e-6

// Selector picks one trained strategy per depth. Selection is by
// highest holdout R2; scores tied within epsilon break on lowest RMSE,
// and a remaining tie breaks on the fixed strategy priority order so
// the choice is deterministic.
type Selector struct {
	logger *slog.Logger
}

// NewSelector creates a Selector. A nil logger means slog.Default.
func NewSelector(log *slog.Logger) *Selector {
	if log == nil {
		log = slog.Default()
	}
	return &Selector{logger: log.With(slog.String("component", "model_selector"))}
}

// Select compares the depth's trained candidates and returns the
// selection outcome plus the chosen model. A depth with no candidates
// is marked insufficient data with a nil model; that is a per-depth
// outcome, not an error. weightingFlag, when non-empty, is carried onto
// the result so depth reports surface degraded domain weighting.
func (s *Selector) Select(result *DepthResult, weightingFlag string) (domain.SelectionResult, *TrainedModel) {
	out := domain.SelectionResult{
		Depth:         result.Depth,
		Candidates:    make([]domain.StrategyReport, 0, len(result.Models)),
		Skipped:       result.Skipped,
		WeightingFlag: weightingFlag,
	}
	for _, m := range result.Models {
		out.Candidates = append(out.Candidates, m.Report)
	}

	if len(result.Models) == 0 {
		out.Status = domain.DepthInsufficientData
		out.Rationale = "no strategy met its minimum sample requirements"
		s.logger.Info("depth excluded from aggregation",
			slog.Float64("depth_cm", result.Depth.MidpointCm),
			slog.Int("skipped", len(result.Skipped)))
		return out, nil
	}

	best := result.Models[0]
	for _, candidate := range result.Models[1:] {
		if preferred(candidate, best) {
			best = candidate
		}
	}

	report := best.Report
	out.Status = domain.DepthSelected
	out.Chosen = &report
	out.Rationale = rationale(best, result.Models)

	s.logger.Info("strategy selected",
		slog.Float64("depth_cm", result.Depth.MidpointCm),
		slog.String("strategy", string(best.Kind)),
		slog.Float64("r2", report.Metrics.R2),
		slog.Float64("rmse", report.Metrics.RMSE))
	return out, best
}

// preferred reports whether a beats b under the selection criteria.
func preferred(a, b *TrainedModel) bool {
	ar, br := a.Report.Metrics, b.Report.Metrics
	if math.Abs(ar.R2-br.R2) > selectionEpsilon {
		return ar.R2 > br.R2
	}
	if math.Abs(ar.RMSE-br.RMSE) > selectionEpsilon {
		return ar.RMSE < br.RMSE
	}
	return a.Kind.SelectionPriority() < b.Kind.SelectionPriority()
}

func rationale(best *TrainedModel, models []*TrainedModel) string {
	m := best.Report.Metrics
	if len(models) == 1 {
		return fmt.Sprintf("%s was the only trained strategy (R2 %.4f, RMSE %.4f)", best.Kind, m.R2, m.RMSE)
	}
	for _, other := range models {
		if other == best {
			continue
		}
		if math.Abs(other.Report.Metrics.R2-m.R2) <= selectionEpsilon {
			return fmt.Sprintf("%s selected on tie-break: R2 %.4f tied within tolerance, chosen for RMSE %.4f and strategy priority over %d other candidates",
				best.Kind, m.R2, m.RMSE, len(models)-1)
		}
	}
	return fmt.Sprintf("%s selected: highest holdout R2 %.4f (RMSE %.4f) among %d candidates",
		best.Kind, m.R2, m.RMSE, len(models))
}
