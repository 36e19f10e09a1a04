package domain

// StrategyKind is the closed set of transfer strategies the trainer may
// attempt for a depth. Each variant carries its own training recipe;
// selection operates over this uniform enumeration rather than name-based
// dispatch.
type StrategyKind string

const (
	// StrategyLocalOnly trains and validates on target-domain records only.
	StrategyLocalOnly StrategyKind = "local_only"

	// StrategyNaiveTransfer trains on source-domain records and is
	// evaluated against the target-domain holdout.
	StrategyNaiveTransfer StrategyKind = "naive_transfer"

	// StrategyWeightedTransfer is naive transfer with each training
	// record weighted by its domain-similarity weight.
	StrategyWeightedTransfer StrategyKind = "weighted_transfer"

	// StrategyTwoStageFineTune trains a source model first, then trains a
	// target model on the original covariates plus the source model's
	// prediction as an extra feature.
	StrategyTwoStageFineTune StrategyKind = "two_stage_fine_tune"

	// StrategyEnsemble trains one model on the union of both domains with
	// an explicit binary domain-indicator covariate.
	StrategyEnsemble StrategyKind = "ensemble"
)

// AllStrategies lists the five variants in their fixed declaration order.
func AllStrategies() []StrategyKind {
	return []StrategyKind{
		StrategyLocalOnly,
		StrategyNaiveTransfer,
		StrategyWeightedTransfer,
		StrategyTwoStageFineTune,
		StrategyEnsemble,
	}
}

// Valid reports whether the kind is one of the five closed variants.
func (k StrategyKind) Valid() bool {
	switch k {
	case StrategyLocalOnly, StrategyNaiveTransfer, StrategyWeightedTransfer,
		StrategyTwoStageFineTune, StrategyEnsemble:
		return true
	}
	return false
}

// SelectionPriority returns the fixed tie-break rank of the strategy:
// lower is preferred. Used only when R2 and RMSE are both tied within
// tolerance, to keep selection deterministic.
func (k StrategyKind) SelectionPriority() int {
	switch k {
	case StrategyEnsemble:
		return 0
	case StrategyWeightedTransfer:
		return 1
	case StrategyTwoStageFineTune:
		return 2
	case StrategyNaiveTransfer:
		return 3
	case StrategyLocalOnly:
		return 4
	}
	return 5
}

// StrategyMetrics is the holdout performance of one trained strategy.
type StrategyMetrics struct {
	R2   float64 `json:"r2"`
	RMSE float64 `json:"rmse"`
}

// StrategyReport describes one trained candidate: what was trained, on
// how much data, and how it scored on the shared target-domain holdout.
type StrategyReport struct {
	Kind         StrategyKind    `json:"strategy"`
	Metrics      StrategyMetrics `json:"metrics"`
	TrainCount   int             `json:"train_count"`
	HoldoutCount int             `json:"holdout_count"`
}

// SkippedStrategy records a strategy that was not attempted for a depth
// and why. Skipping is a per-strategy outcome, never a run error.
type SkippedStrategy struct {
	Kind   StrategyKind `json:"strategy"`
	Reason string       `json:"reason"`
}

// DepthStatus is the outcome of one standard depth's model selection.
type DepthStatus string

const (
	// DepthSelected means at least one strategy trained and one was chosen.
	DepthSelected DepthStatus = "selected"

	// DepthInsufficientData means no strategy met its minimum sample
	// requirements; the depth is excluded from aggregation.
	DepthInsufficientData DepthStatus = "insufficient_data"
)

// SelectionResult is the per-depth output of model selection: the chosen
// strategy (if any), the full comparison table, the strategies that were
// skipped with reasons, and any weighting flag raised for the depth.
type SelectionResult struct {
	Depth         StandardDepth     `json:"depth"`
	Status        DepthStatus       `json:"status"`
	Chosen        *StrategyReport   `json:"chosen,omitempty"`
	Rationale     string            `json:"rationale,omitempty"`
	Candidates    []StrategyReport  `json:"candidates"`
	Skipped       []SkippedStrategy `json:"skipped,omitempty"`
	WeightingFlag string            `json:"weighting_flag,omitempty"`
}
