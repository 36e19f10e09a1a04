package regress

import (
	"encoding/gob"
	"errors"
)

func init() {
	// Fitted predictors travel through encoding/gob as run artifacts, so
	// both concrete types must be registered up front.
	gob.Register(&ForestPredictor{})
	gob.Register(&KNNPredictor{})
}

// Common training errors.
var (
	// ErrNoTrainingData is returned when Fit is called with no rows.
	ErrNoTrainingData = errors.New("no training data")

	// ErrDimensionMismatch is returned when feature rows, targets and
	// weights do not agree in length, or feature rows are ragged.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidWeights is returned when weights are negative or sum to zero.
	ErrInvalidWeights = errors.New("invalid weights")
)

// Predictor predicts a target value for each feature row. Implementations
// are immutable after Fit and safe for concurrent use.
type Predictor interface {
	Predict(features [][]float64) []float64
}

// Regressor fits a predictor to feature rows and targets. A nil weights
// slice means uniform weighting; otherwise weights must be non-negative,
// match the row count, and carry positive total mass.
type Regressor interface {
	Fit(features [][]float64, targets []float64, weights []float64) (Predictor, error)
}

// Factory builds a Regressor seeded for one depth's training pass, so
// every stochastic backend is reproducible per depth.
type Factory func(seed int64) Regressor

// checkTrainingSet validates the shared Fit preconditions and returns
// the feature dimensionality.
func checkTrainingSet(features [][]float64, targets, weights []float64) (int, error) {
	if len(features) == 0 {
		return 0, ErrNoTrainingData
	}
	if len(targets) != len(features) {
		return 0, ErrDimensionMismatch
	}
	dim := len(features[0])
	for _, row := range features {
		if len(row) != dim {
			return 0, ErrDimensionMismatch
		}
	}
	if weights != nil {
		if len(weights) != len(features) {
			return 0, ErrDimensionMismatch
		}
		total := 0.0
		for _, w := range weights {
			if w < 0 {
				return 0, ErrInvalidWeights
			}
			total += w
		}
		if total <= 0 {
			return 0, ErrInvalidWeights
		}
	}
	return dim, nil
}
