package regress

import "sort"

// KNNRegressor predicts the weighted mean target of the k nearest
// training rows in covariate space. It generalizes the original
// system's nearest-neighbour reference lookup and needs no randomness:
// ties break on input order, so predictions are deterministic.
type KNNRegressor struct {
	// K is the neighbourhood size. Zero or negative means 5.
	K int
}

// NewKNNRegressor returns a k-nearest-neighbour regressor.
func NewKNNRegressor(k int) *KNNRegressor {
	return &KNNRegressor{K: k}
}

// KNNFactory returns a Factory producing knn regressors. The seed is
// accepted for interface compatibility and unused: knn is deterministic.
func KNNFactory(k int) Factory {
	return func(int64) Regressor {
		return NewKNNRegressor(k)
	}
}

// Fit implements Regressor by capturing the training set.
func (r *KNNRegressor) Fit(features [][]float64, targets []float64, weights []float64) (Predictor, error) {
	if _, err := checkTrainingSet(features, targets, weights); err != nil {
		return nil, err
	}
	k := r.K
	if k <= 0 {
		k = 5
	}
	if k > len(features) {
		k = len(features)
	}

	p := &KNNPredictor{
		TrainFeatures: make([][]float64, len(features)),
		TrainTargets:  append([]float64(nil), targets...),
		K:             k,
	}
	for i, row := range features {
		p.TrainFeatures[i] = append([]float64(nil), row...)
	}
	if weights != nil {
		p.TrainWeights = append([]float64(nil), weights...)
	}
	return p, nil
}

// KNNPredictor is the fitted lookup structure. Fields are exported so a
// fitted model serializes as an artifact.
type KNNPredictor struct {
	TrainFeatures [][]float64
	TrainTargets  []float64
	TrainWeights  []float64
	K             int
}

// Predict implements Predictor.
func (p *KNNPredictor) Predict(features [][]float64) []float64 {
	out := make([]float64, len(features))
	type neighbour struct {
		idx  int
		dist float64
	}
	for qi, query := range features {
		neighbours := make([]neighbour, len(p.TrainFeatures))
		for i, row := range p.TrainFeatures {
			var d float64
			for j := range row {
				diff := row[j] - query[j]
				d += diff * diff
			}
			neighbours[i] = neighbour{idx: i, dist: d}
		}
		sort.Slice(neighbours, func(a, b int) bool {
			if neighbours[a].dist != neighbours[b].dist {
				return neighbours[a].dist < neighbours[b].dist
			}
			return neighbours[a].idx < neighbours[b].idx
		})

		var sum, mass float64
		for _, nb := range neighbours[:p.K] {
			w := 1.0
			if p.TrainWeights != nil {
				w = p.TrainWeights[nb.idx]
			}
			sum += w * p.TrainTargets[nb.idx]
			mass += w
		}
		if mass == 0 {
			// All chosen neighbours carry zero weight; fall back to the
			// unweighted neighbourhood mean.
			for _, nb := range neighbours[:p.K] {
				sum += p.TrainTargets[nb.idx]
			}
			mass = float64(p.K)
		}
		out[qi] = sum / mass
	}
	return out
}
