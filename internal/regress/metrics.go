package regress

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// RMSE returns the root-mean-square error between predictions and
// observed values. Panics are avoided: mismatched or empty input reports
// NaN, which callers treat as an unscorable result.
func RMSE(predicted, observed []float64) float64 {
	if len(predicted) == 0 || len(predicted) != len(observed) {
		return math.NaN()
	}
	var sum float64
	for i := range predicted {
		d := predicted[i] - observed[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(predicted)))
}

// R2 returns the coefficient of determination of predictions against
// observed values. A constant observed vector has no explainable
// variance; R2 is reported as 0 in that case rather than +/-Inf.
func R2(predicted, observed []float64) float64 {
	if len(predicted) == 0 || len(predicted) != len(observed) {
		return math.NaN()
	}
	mean := stat.Mean(observed, nil)
	var ssTot float64
	for _, v := range observed {
		d := v - mean
		ssTot += d * d
	}
	if ssTot == 0 {
		return 0
	}
	return stat.RSquaredFrom(predicted, observed, nil)
}
