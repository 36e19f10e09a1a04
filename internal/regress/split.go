package regress

import (
	"math"
	"math/rand"
	"sort"
)

// HoldoutSplit partitions indices [0, n) into a training set and a
// holdout set of roughly the given fraction. The split is driven
// entirely by the supplied rng, so a fixed seed reproduces it exactly.
// With n < 2 everything lands in the training set and the holdout is
// empty; with n >= 2 both sides are guaranteed non-empty.
func HoldoutSplit(n int, fraction float64, rng *rand.Rand) (train, holdout []int) {
	if n <= 0 {
		return nil, nil
	}
	if n < 2 {
		return []int{0}, nil
	}

	holdSize := int(math.Round(float64(n) * fraction))
	if holdSize < 1 {
		holdSize = 1
	}
	if holdSize > n-1 {
		holdSize = n - 1
	}

	perm := rng.Perm(n)
	holdout = append(holdout, perm[:holdSize]...)
	train = append(train, perm[holdSize:]...)
	sort.Ints(holdout)
	sort.Ints(train)
	return train, holdout
}
