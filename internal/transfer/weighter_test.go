package transfer_test

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencarbon/soilstock/internal/domain"
	"github.com/opencarbon/soilstock/internal/transfer"
)

func record(tag domain.DomainTag, cov map[string]float64) *domain.HarmonizedRecord {
	return &domain.HarmonizedRecord{
		ID:         uuid.New(),
		CoreID:     "core",
		Domain:     tag,
		Depth:      domain.StandardDepth{MidpointCm: 7.5, TopCm: 0, BottomCm: 15},
		Covariates: cov,
	}
}

// population builds n records around the given covariate centre with a
// deterministic jitter.
func population(tag domain.DomainTag, n int, centreA, centreB float64, seed int64) []*domain.HarmonizedRecord {
	rng := rand.New(rand.NewSource(seed))
	out := make([]*domain.HarmonizedRecord, n)
	for i := range out {
		out[i] = record(tag, map[string]float64{
			"a": centreA + rng.NormFloat64(),
			"b": centreB + rng.NormFloat64(),
		})
	}
	return out
}

func TestWeighNormalization(t *testing.T) {
	t.Parallel()
	target := population(domain.DomainLocal, 30, 0, 0, 1)
	source := population(domain.DomainGlobal, 50, 1, 1, 2)
	records := append(append([]*domain.HarmonizedRecord{}, target...), source...)

	w := transfer.New(10)
	res, err := w.Weigh(records, domain.DomainLocal, []string{"a", "b"})
	require.NoError(t, err)

	require.False(t, res.Skipped)
	require.Len(t, res.Weights, len(source))

	var sum float64
	for _, rec := range source {
		weight := res.WeightFor(rec.ID)
		assert.GreaterOrEqual(t, weight, 0.0)
		sum += weight
	}
	assert.InDelta(t, float64(len(source)), sum, 1e-6,
		"weights must sum to the source record count")
	assert.Greater(t, res.MedianDistance, 0.0)
	assert.Greater(t, res.Bandwidth, 0.0)
}

func TestWeighDistantRecordsGetLowerWeights(t *testing.T) {
	t.Parallel()
	target := population(domain.DomainLocal, 40, 0, 0, 3)

	near := record(domain.DomainGlobal, map[string]float64{"a": 0.1, "b": 0.1})
	far := record(domain.DomainGlobal, map[string]float64{"a": 8, "b": 8})
	records := append(append([]*domain.HarmonizedRecord{}, target...), near, far)

	res, err := transfer.New(10).Weigh(records, domain.DomainLocal, []string{"a", "b"})
	require.NoError(t, err)
	require.False(t, res.Skipped)

	assert.Greater(t, res.WeightFor(near.ID), res.WeightFor(far.ID),
		"weights must correlate inversely with distance from the target distribution")
}

func TestWeighInsufficientTargetFallsBackToUniform(t *testing.T) {
	t.Parallel()
	// Five target records sit below the threshold of ten: every source
	// record must get weight exactly 1.
	target := population(domain.DomainLocal, 5, 0, 0, 4)
	source := population(domain.DomainGlobal, 20, 1, 1, 5)
	records := append(append([]*domain.HarmonizedRecord{}, target...), source...)

	res, err := transfer.New(10).Weigh(records, domain.DomainLocal, []string{"a", "b"})
	require.NoError(t, err)

	assert.True(t, res.Skipped)
	assert.Equal(t, transfer.ReasonInsufficientTarget, res.Reason)
	for _, rec := range source {
		assert.InDelta(t, 1.0, res.WeightFor(rec.ID), 1e-12)
	}
}

func TestWeighSingularCovarianceFallsBackToUniform(t *testing.T) {
	t.Parallel()
	// Constant covariates collapse the covariance matrix. Ridge
	// regularization may or may not rescue the factorization; either
	// way every source weight must come back well-defined.
	var records []*domain.HarmonizedRecord
	for i := 0; i < 15; i++ {
		records = append(records, record(domain.DomainLocal, map[string]float64{"a": 1, "b": 2}))
	}
	source := population(domain.DomainGlobal, 10, 1, 2, 6)
	records = append(records, source...)

	res, err := transfer.New(10).Weigh(records, domain.DomainLocal, []string{"a", "b"})
	require.NoError(t, err)

	if res.Skipped {
		assert.Equal(t, transfer.ReasonSingularCovariance, res.Reason)
		for _, rec := range source {
			assert.InDelta(t, 1.0, res.WeightFor(rec.ID), 1e-12)
		}
	} else {
		// Ridge regularization may rescue the factorization; weights
		// must still normalize to the source count.
		var sum float64
		for _, rec := range source {
			sum += res.WeightFor(rec.ID)
		}
		assert.InDelta(t, float64(len(source)), sum, 1e-6)
	}
}

func TestWeighIncompleteSourceCovariatesGetUnitWeight(t *testing.T) {
	t.Parallel()
	target := population(domain.DomainLocal, 30, 0, 0, 7)
	complete := population(domain.DomainGlobal, 10, 0.5, 0.5, 8)
	partial := record(domain.DomainGlobal, map[string]float64{"a": 0.5})
	records := append(append([]*domain.HarmonizedRecord{}, target...), complete...)
	records = append(records, partial)

	res, err := transfer.New(10).Weigh(records, domain.DomainLocal, []string{"a", "b"})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, res.WeightFor(partial.ID), 1e-12,
		"records missing covariates cannot be scored and keep unit weight")

	var sum float64
	for id := range res.Weights {
		sum += res.Weights[id]
	}
	assert.InDelta(t, float64(len(complete)+1), sum, 1e-6)
}

func TestWeighBandwidthOverride(t *testing.T) {
	t.Parallel()
	target := population(domain.DomainLocal, 30, 0, 0, 9)
	source := population(domain.DomainGlobal, 20, 2, 2, 10)
	records := append(append([]*domain.HarmonizedRecord{}, target...), source...)

	res, err := transfer.New(10, transfer.WithBandwidth(5.0)).
		Weigh(records, domain.DomainLocal, []string{"a", "b"})
	require.NoError(t, err)

	assert.False(t, res.Skipped)
	assert.InDelta(t, 5.0, res.Bandwidth, 1e-12)
}

func TestWeighInvalidTargetTag(t *testing.T) {
	t.Parallel()
	_, err := transfer.New(10).Weigh(nil, domain.DomainTag("elsewhere"), []string{"a"})
	assert.ErrorIs(t, err, domain.ErrInvalidDomainTag)
}
