package stock

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencarbon/soilstock/internal/domain"
)

func selectedEstimate(depth domain.StandardDepth, mean, rmse float64, n int) DepthEstimate {
	return DepthEstimate{
		Depth: depth,
		Selection: domain.SelectionResult{
			Depth:  depth,
			Status: domain.DepthSelected,
			Chosen: &domain.StrategyReport{
				Kind:    domain.StrategyLocalOnly,
				Metrics: domain.StrategyMetrics{R2: 0.8, RMSE: rmse},
			},
		},
		MeanPredictedTHa: mean,
		PredictionCount:  n,
	}
}

func TestAggregateFullProfile(t *testing.T) {
	t.Parallel()

	depths := domain.DefaultStandardDepths()
	estimates := []DepthEstimate{
		selectedEstimate(depths[0], 40, 3, 12),
		selectedEstimate(depths[1], 30, 4, 12),
		selectedEstimate(depths[2], 25, 2, 12),
		selectedEstimate(depths[3], 20, 5, 12),
	}

	profile := New().Aggregate(depths, estimates)

	assert.InDelta(t, 115, profile.TotalTHa, 1e-9)
	wantSpread := 1.645 * math.Sqrt(9+16+4+25)
	assert.InDelta(t, 115-wantSpread, profile.ConservativeTHa, 1e-9)
	assert.True(t, profile.Complete())
	require.Len(t, profile.Coverage, 4)
	for _, c := range profile.Coverage {
		assert.True(t, c.Contributed)
		assert.Empty(t, c.Reason)
	}
}

func TestAggregateExcludesInsufficientDepth(t *testing.T) {
	t.Parallel()

	depths := domain.DefaultStandardDepths()
	estimates := []DepthEstimate{
		selectedEstimate(depths[0], 40, 3, 12),
		{
			Depth: depths[1],
			Selection: domain.SelectionResult{
				Depth:  depths[1],
				Status: domain.DepthInsufficientData,
			},
		},
		selectedEstimate(depths[2], 25, 2, 12),
		selectedEstimate(depths[3], 20, 5, 12),
	}

	profile := New().Aggregate(depths, estimates)

	assert.InDelta(t, 85, profile.TotalTHa, 1e-9)
	assert.False(t, profile.Complete())
	require.Len(t, profile.Coverage, 4)
	assert.False(t, profile.Coverage[1].Contributed)
	assert.Equal(t, "insufficient data", profile.Coverage[1].Reason)
	// The excluded depth contributes no uncertainty either.
	wantSpread := 1.645 * math.Sqrt(9+4+25)
	assert.InDelta(t, 85-wantSpread, profile.ConservativeTHa, 1e-9)
}

func TestAggregateMissingDepthResult(t *testing.T) {
	t.Parallel()

	depths := domain.DefaultStandardDepths()
	profile := New().Aggregate(depths, []DepthEstimate{
		selectedEstimate(depths[0], 40, 3, 12),
	})

	assert.InDelta(t, 40, profile.TotalTHa, 1e-9)
	assert.False(t, profile.Complete())
	for _, c := range profile.Coverage[1:] {
		assert.False(t, c.Contributed)
		assert.Equal(t, "no depth result", c.Reason)
	}
}

func TestAggregateNoTargetPredictions(t *testing.T) {
	t.Parallel()

	depths := domain.DefaultStandardDepths()
	est := selectedEstimate(depths[0], 40, 3, 0)
	profile := New().Aggregate(depths[:1], []DepthEstimate{est})

	assert.Zero(t, profile.TotalTHa)
	assert.Equal(t, "no target predictions", profile.Coverage[0].Reason)
}

func TestAggregateConservativeFloorsAtZero(t *testing.T) {
	t.Parallel()

	depths := domain.DefaultStandardDepths()
	profile := New().Aggregate(depths[:1], []DepthEstimate{
		selectedEstimate(depths[0], 5, 50, 12),
	})

	assert.InDelta(t, 5, profile.TotalTHa, 1e-9)
	assert.Zero(t, profile.ConservativeTHa)
}

func TestAggregateConfidenceOverride(t *testing.T) {
	t.Parallel()

	depths := domain.DefaultStandardDepths()
	profile := New(WithConfidenceZ(1.0)).Aggregate(depths[:1], []DepthEstimate{
		selectedEstimate(depths[0], 40, 3, 12),
	})

	assert.InDelta(t, 37, profile.ConservativeTHa, 1e-9)
}
