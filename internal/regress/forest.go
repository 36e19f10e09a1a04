package regress

import (
	"math/rand"
	"sort"
)

// ForestRegressor is a bagged ensemble of variance-reducing regression
// trees. Record weights enter through the bootstrap: each tree resamples
// training rows with probability proportional to weight. Training is
// deterministic for a fixed seed and input order.
type ForestRegressor struct {
	// Trees is the ensemble size. Zero or negative means 100.
	Trees int

	// MinLeaf is the minimum rows per leaf. Zero or negative means 3.
	MinLeaf int

	// Seed drives bootstrap resampling and feature subsampling.
	Seed int64
}

// NewForestRegressor returns a forest with the given ensemble size and seed.
func NewForestRegressor(trees int, seed int64) *ForestRegressor {
	return &ForestRegressor{Trees: trees, Seed: seed}
}

// ForestFactory returns a Factory producing forests of the given size.
func ForestFactory(trees int) Factory {
	return func(seed int64) Regressor {
		return NewForestRegressor(trees, seed)
	}
}

// Fit implements Regressor.
func (f *ForestRegressor) Fit(features [][]float64, targets []float64, weights []float64) (Predictor, error) {
	dim, err := checkTrainingSet(features, targets, weights)
	if err != nil {
		return nil, err
	}

	trees := f.Trees
	if trees <= 0 {
		trees = 100
	}
	minLeaf := f.MinLeaf
	if minLeaf <= 0 {
		minLeaf = 3
	}
	mtry := (dim + 2) / 3
	if mtry < 1 {
		mtry = 1
	}

	n := len(features)
	rng := rand.New(rand.NewSource(f.Seed))
	sample := newBootstrapSampler(weights, n)

	forest := make([]*TreeNode, trees)
	idx := make([]int, n)
	for t := 0; t < trees; t++ {
		for i := range idx {
			idx[i] = sample(rng)
		}
		forest[t] = buildTree(features, targets, append([]int(nil), idx...), dim, mtry, minLeaf, rng)
	}

	return &ForestPredictor{Trees: forest}, nil
}

// newBootstrapSampler returns a draw function over [0, n) that is
// uniform for nil weights and weight-proportional otherwise.
func newBootstrapSampler(weights []float64, n int) func(*rand.Rand) int {
	if weights == nil {
		return func(rng *rand.Rand) int { return rng.Intn(n) }
	}
	cum := make([]float64, n)
	total := 0.0
	for i, w := range weights {
		total += w
		cum[i] = total
	}
	return func(rng *rand.Rand) int {
		u := rng.Float64() * total
		return sort.SearchFloat64s(cum, u)
	}
}

// TreeNode is one node of a regression tree: either an internal split
// on Feature < Threshold, or a leaf carrying the mean target. Fields are
// exported so fitted trees serialize as model artifacts.
type TreeNode struct {
	Feature   int
	Threshold float64
	Left      *TreeNode
	Right     *TreeNode
	Value     float64
	Leaf      bool
}

func buildTree(features [][]float64, targets []float64, idx []int, dim, mtry, minLeaf int, rng *rand.Rand) *TreeNode {
	node := &TreeNode{Value: meanAt(targets, idx)}
	if len(idx) < 2*minLeaf {
		node.Leaf = true
		return node
	}

	bestFeature, bestThreshold, bestScore := -1, 0.0, 0.0
	candidates := rng.Perm(dim)[:mtry]
	for _, feat := range candidates {
		thr, score, ok := bestSplit(features, targets, idx, feat, minLeaf)
		if ok && (bestFeature == -1 || score > bestScore) {
			bestFeature, bestThreshold, bestScore = feat, thr, score
		}
	}
	if bestFeature == -1 || bestScore <= 0 {
		node.Leaf = true
		return node
	}

	var left, right []int
	for _, i := range idx {
		if features[i][bestFeature] < bestThreshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < minLeaf || len(right) < minLeaf {
		node.Leaf = true
		return node
	}

	node.Feature = bestFeature
	node.Threshold = bestThreshold
	node.Left = buildTree(features, targets, left, dim, mtry, minLeaf, rng)
	node.Right = buildTree(features, targets, right, dim, mtry, minLeaf, rng)
	return node
}

// bestSplit scans the sorted values of one feature for the threshold
// that maximizes the reduction in summed squared error, honouring the
// minimum leaf size on both sides.
func bestSplit(features [][]float64, targets []float64, idx []int, feat, minLeaf int) (threshold, score float64, ok bool) {
	order := append([]int(nil), idx...)
	sort.Slice(order, func(a, b int) bool {
		return features[order[a]][feat] < features[order[b]][feat]
	})

	n := len(order)
	prefix := make([]float64, n+1)
	prefixSq := make([]float64, n+1)
	for i, id := range order {
		y := targets[id]
		prefix[i+1] = prefix[i] + y
		prefixSq[i+1] = prefixSq[i] + y*y
	}
	sse := func(lo, hi int) float64 {
		count := float64(hi - lo)
		sum := prefix[hi] - prefix[lo]
		sumSq := prefixSq[hi] - prefixSq[lo]
		return sumSq - sum*sum/count
	}
	total := sse(0, n)

	for k := minLeaf; k <= n-minLeaf; k++ {
		lo := features[order[k-1]][feat]
		hi := features[order[k]][feat]
		if lo == hi {
			continue
		}
		gain := total - sse(0, k) - sse(k, n)
		if !ok || gain > score {
			threshold = (lo + hi) / 2
			score = gain
			ok = true
		}
	}
	return threshold, score, ok
}

func meanAt(targets []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		sum += targets[i]
	}
	return sum / float64(len(idx))
}

// ForestPredictor is the immutable fitted ensemble.
type ForestPredictor struct {
	Trees []*TreeNode
}

// Predict implements Predictor.
func (p *ForestPredictor) Predict(features [][]float64) []float64 {
	out := make([]float64, len(features))
	for i, row := range features {
		var sum float64
		for _, tree := range p.Trees {
			sum += tree.predict(row)
		}
		out[i] = sum / float64(len(p.Trees))
	}
	return out
}

func (t *TreeNode) predict(row []float64) float64 {
	for !t.Leaf {
		if row[t.Feature] < t.Threshold {
			t = t.Left
		} else {
			t = t.Right
		}
	}
	return t.Value
}
