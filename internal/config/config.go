package config

import "github.com/opencarbon/soilstock/internal/domain"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Pipeline PipelineConfig `mapstructure:"pipeline" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// DepthLayer is one configured standard depth layer in centimetres. The
// midpoint identifying the layer is derived as the arithmetic centre
// unless given explicitly.
type DepthLayer struct {
	TopCm      float64 `mapstructure:"top_cm"      validate:"gte=0"`
	BottomCm   float64 `mapstructure:"bottom_cm"   validate:"gtfield=TopCm"`
	MidpointCm float64 `mapstructure:"midpoint_cm"`
}

// PipelineConfig contains every tunable the estimation pipeline consumes.
// All thresholds are opaque values to the core: no component interprets
// their external representation.
type PipelineConfig struct {
	// Depths is the ordered standard depth list. Empty means the
	// conventional 0-15/15-30/30-50/50-100 cm standard.
	Depths []DepthLayer `mapstructure:"depths" validate:"dive"`

	// CovariateCompleteness is the fraction of non-missing values
	// required to keep a covariate for modelling.
	CovariateCompleteness float64 `mapstructure:"covariate_completeness" validate:"gte=0,lte=1"`

	// HoldoutFraction of the evaluation domain withheld for scoring.
	HoldoutFraction float64 `mapstructure:"holdout_fraction" validate:"gt=0,lt=1"`

	// Seed drives every stochastic step; per-depth seeds are derived
	// from it so repeated runs are reproducible.
	Seed int64 `mapstructure:"seed"`

	// KernelBandwidth overrides the domain weighter's self-calibrating
	// (median distance) kernel scale. Zero means self-calibrating.
	KernelBandwidth float64 `mapstructure:"kernel_bandwidth" validate:"gte=0"`

	// Minimum sample counts gating each strategy.
	MinTargetLocalOnly int `mapstructure:"min_target_local_only" validate:"gte=2"`
	MinSourceTransfer  int `mapstructure:"min_source_transfer"   validate:"gte=2"`
	MinTargetFineTune  int `mapstructure:"min_target_fine_tune"  validate:"gte=2"`
	MinTargetEnsemble  int `mapstructure:"min_target_ensemble"   validate:"gte=2"`

	// MinTargetWeighting is the minimum count of complete-covariate
	// target records below which domain weighting is skipped.
	MinTargetWeighting int `mapstructure:"min_target_weighting" validate:"gte=2"`

	// WorkerCount bounds the per-depth parallelism. Zero means one
	// worker per CPU, capped at the depth count.
	WorkerCount int `mapstructure:"worker_count" validate:"gte=0"`

	// Backend selects the regressor implementation.
	Backend string `mapstructure:"backend" validate:"oneof=forest knn"`

	// ForestTrees is the ensemble size of the forest backend.
	ForestTrees int `mapstructure:"forest_trees" validate:"gte=1"`

	// KNeighbors is the neighbourhood size of the knn backend.
	KNeighbors int `mapstructure:"k_neighbors" validate:"gte=1"`
}

// StandardDepths converts the configured layers into domain standard
// depths, deriving midpoints where absent. An empty configuration yields
// the conventional default standard.
func (p PipelineConfig) StandardDepths() []domain.StandardDepth {
	if len(p.Depths) == 0 {
		return domain.DefaultStandardDepths()
	}
	depths := make([]domain.StandardDepth, len(p.Depths))
	for i, layer := range p.Depths {
		mid := layer.MidpointCm
		if mid == 0 {
			mid = (layer.TopCm + layer.BottomCm) / 2
		}
		depths[i] = domain.StandardDepth{
			MidpointCm: mid,
			TopCm:      layer.TopCm,
			BottomCm:   layer.BottomCm,
		}
	}
	return depths
}
