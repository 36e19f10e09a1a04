package pipeline

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencarbon/soilstock/internal/config"
	"github.com/opencarbon/soilstock/internal/domain"
)

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		CovariateCompleteness: 0.5,
		HoldoutFraction:       0.3,
		Seed:                  42,
		MinTargetLocalOnly:    10,
		MinSourceTransfer:     30,
		MinTargetFineTune:     10,
		MinTargetEnsemble:     10,
		MinTargetWeighting:    10,
		WorkerCount:           4,
		Backend:               "knn",
		KNeighbors:            5,
	}
}

// synthCore builds one soil core sampled exactly on the standard layer
// boundaries, with SOC decaying by depth and driven by the core's
// covariates.
func synthCore(t *testing.T, coreID string, tag domain.DomainTag, rng *rand.Rand) []*domain.Sample {
	t.Helper()
	clay := 10 + rng.Float64()*40
	ph := 4.5 + rng.Float64()*3
	covariates := map[string]float64{"clay_pct": clay, "ph": ph}
	base := 0.4*clay + 2*ph + rng.NormFloat64()*0.5

	var samples []*domain.Sample
	for _, layer := range [][2]float64{{0, 15}, {15, 30}, {30, 50}, {50, 100}} {
		mid := (layer[0] + layer[1]) / 2
		soc := base * math.Exp(-mid/60)
		s, err := domain.NewSample(coreID, tag, layer[0], layer[1], soc, 1.3, covariates, domain.Location{})
		require.NoError(t, err)
		samples = append(samples, s)
	}
	return samples
}

func synthWorld(t *testing.T, targetCores, sourceCores int, seed int64) []*domain.Sample {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	var samples []*domain.Sample
	for i := 0; i < targetCores; i++ {
		samples = append(samples, synthCore(t, fmt.Sprintf("local-%03d", i), domain.DomainLocal, rng)...)
	}
	for i := 0; i < sourceCores; i++ {
		samples = append(samples, synthCore(t, fmt.Sprintf("global-%03d", i), domain.DomainGlobal, rng)...)
	}
	return samples
}

func TestExecuteFullRun(t *testing.T) {
	t.Parallel()

	svc, err := NewService(testPipelineConfig())
	require.NoError(t, err)

	samples := synthWorld(t, 40, 60, 7)
	result, err := svc.Execute(context.Background(), samples)
	require.NoError(t, err)

	run := result.Run
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.ElementsMatch(t, []string{"clay_pct", "ph"}, run.Covariates)
	require.Len(t, run.Depths, 4)
	require.NotNil(t, run.Profile)
	assert.True(t, run.Profile.Complete())
	assert.Positive(t, run.Profile.TotalTHa)
	assert.Less(t, run.Profile.ConservativeTHa, run.Profile.TotalTHa)

	for i, selection := range run.Depths {
		assert.Equal(t, svc.Depths()[i].MidpointCm, selection.Depth.MidpointCm, "depth order must be configuration order")
		assert.Equal(t, domain.DepthSelected, selection.Status)
		require.NotNil(t, selection.Chosen)
		assert.NotEmpty(t, selection.Rationale)

		outcome := result.Outcomes[i]
		require.NotNil(t, outcome.Model)
		assert.Len(t, outcome.Predictions, 40, "one prediction per target core")
		assert.Positive(t, outcome.MeanPredictedTHa)
	}
	assert.Zero(t, result.Rejected)
	assert.Len(t, result.Harmonized, 100*4)
}

func TestExecuteDeterministic(t *testing.T) {
	t.Parallel()

	cfg := testPipelineConfig()
	cfg.Backend = "forest"
	cfg.ForestTrees = 30

	run := func() *RunResult {
		svc, err := NewService(cfg)
		require.NoError(t, err)
		result, err := svc.Execute(context.Background(), synthWorld(t, 30, 40, 11))
		require.NoError(t, err)
		return result
	}

	first := run()
	second := run()

	require.Len(t, second.Run.Depths, len(first.Run.Depths))
	for i := range first.Run.Depths {
		a, b := first.Run.Depths[i], second.Run.Depths[i]
		require.NotNil(t, a.Chosen)
		require.NotNil(t, b.Chosen)
		assert.Equal(t, a.Chosen.Kind, b.Chosen.Kind)
		assert.Equal(t, a.Chosen.Metrics, b.Chosen.Metrics)
	}
	assert.Equal(t, first.Run.Profile.TotalTHa, second.Run.Profile.TotalTHa)
	assert.Equal(t, first.Run.Profile.ConservativeTHa, second.Run.Profile.ConservativeTHa)
}

func TestExecuteSparseTargetUsesTransfer(t *testing.T) {
	t.Parallel()

	svc, err := NewService(testPipelineConfig())
	require.NoError(t, err)

	// Three target cores cannot satisfy local-only, fine-tune or
	// ensemble minimums, and are below the weighting minimum too.
	samples := synthWorld(t, 3, 50, 13)
	result, err := svc.Execute(context.Background(), samples)
	require.NoError(t, err)

	for _, selection := range result.Run.Depths {
		assert.Equal(t, domain.DepthSelected, selection.Status)
		require.NotNil(t, selection.Chosen)
		assert.Contains(t,
			[]domain.StrategyKind{domain.StrategyNaiveTransfer, domain.StrategyWeightedTransfer},
			selection.Chosen.Kind)
		assert.Len(t, selection.Candidates, 2)
		assert.NotEmpty(t, selection.Skipped)
		assert.Equal(t, "weighting skipped: insufficient target data", selection.WeightingFlag)
	}
}

func TestExecuteNoSamples(t *testing.T) {
	t.Parallel()

	svc, err := NewService(testPipelineConfig())
	require.NoError(t, err)

	result, err := svc.Execute(context.Background(), nil)
	require.NoError(t, err)

	run := result.Run
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	require.Len(t, run.Depths, 4)
	for _, selection := range run.Depths {
		assert.Equal(t, domain.DepthInsufficientData, selection.Status)
		assert.Nil(t, selection.Chosen)
	}
	require.NotNil(t, run.Profile)
	assert.Zero(t, run.Profile.TotalTHa)
	assert.False(t, run.Profile.Complete())
	for _, c := range run.Profile.Coverage {
		assert.False(t, c.Contributed)
	}
}

func TestExecuteSeededOverridesRunSeed(t *testing.T) {
	t.Parallel()

	svc, err := NewService(testPipelineConfig())
	require.NoError(t, err)

	result, err := svc.ExecuteSeeded(context.Background(), nil, 1234)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), result.Run.Seed)

	result, err = svc.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, testPipelineConfig().Seed, result.Run.Seed)
}

func TestExecuteRejectsInvalidSamples(t *testing.T) {
	t.Parallel()

	svc, err := NewService(testPipelineConfig())
	require.NoError(t, err)

	samples := synthWorld(t, 20, 30, 17)
	// Inverted depth interval fails validation but must not abort the run.
	bad := *samples[0]
	bad.DepthTopCm, bad.DepthBottomCm = bad.DepthBottomCm, bad.DepthTopCm
	samples = append(samples, &bad, nil)

	result, err := svc.Execute(context.Background(), samples)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rejected)
	assert.Equal(t, domain.RunStatusCompleted, result.Run.Status)
}

func TestExecuteCancelled(t *testing.T) {
	t.Parallel()

	svc, err := NewService(testPipelineConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Execute(ctx, synthWorld(t, 10, 10, 19))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var pipeErr *PipelineError
	assert.ErrorAs(t, err, &pipeErr)
}

func TestNewServiceRejectsBadConfig(t *testing.T) {
	t.Parallel()

	cfg := testPipelineConfig()
	cfg.Backend = "svm"
	_, err := NewService(cfg)
	require.Error(t, err)

	cfg = testPipelineConfig()
	cfg.Depths = []config.DepthLayer{
		{TopCm: 0, BottomCm: 30},
		{TopCm: 15, BottomCm: 50},
	}
	_, err = NewService(cfg)
	require.Error(t, err)
}
