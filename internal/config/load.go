package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/opencarbon/soilstock/internal/domain"
)

// Load configuration from environment variables and optionally a config
// file in the working directory. Environment variables take precedence
// over values from config files. Returns a populated Config struct or an
// error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFromFile("")
}

// LoadFromFile is Load with an explicit config file path, used by tests
// and tooling to avoid depending on the working directory. An empty path
// falls back to looking for soilstock.yaml in the working directory.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("soilstock")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; the environment and defaults
		// carry the configuration.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Configure environment variables.
	v.SetEnvPrefix("SOILSTOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind critical environment variables.
	bindEnvs := []struct {
		key    string
		envVar string
	}{
		{"server.port", "SOILSTOCK_SERVER_PORT"},
		{"server.log_level", "SOILSTOCK_SERVER_LOG_LEVEL"},
		{"database.url", "SOILSTOCK_DATABASE_URL"},
		{"pipeline.seed", "SOILSTOCK_PIPELINE_SEED"},
		{"pipeline.backend", "SOILSTOCK_PIPELINE_BACKEND"},
		{"pipeline.worker_count", "SOILSTOCK_PIPELINE_WORKER_COUNT"},
	}
	for _, env := range bindEnvs {
		if err := v.BindEnv(env.key, env.envVar); err != nil {
			return nil, fmt.Errorf("error binding environment variable %s: %w", env.envVar, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks a Config against its struct tags and the cross-field
// invariants the tags cannot express (depth layer ordering).
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := domain.ValidateStandardDepths(cfg.Pipeline.StandardDepths()); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("pipeline.covariate_completeness", 0.5)
	v.SetDefault("pipeline.holdout_fraction", 0.3)
	v.SetDefault("pipeline.seed", 42)
	v.SetDefault("pipeline.kernel_bandwidth", 0.0)
	v.SetDefault("pipeline.min_target_local_only", 10)
	v.SetDefault("pipeline.min_source_transfer", 30)
	v.SetDefault("pipeline.min_target_fine_tune", 10)
	v.SetDefault("pipeline.min_target_ensemble", 10)
	v.SetDefault("pipeline.min_target_weighting", 10)
	v.SetDefault("pipeline.worker_count", 0)
	v.SetDefault("pipeline.backend", "forest")
	v.SetDefault("pipeline.forest_trees", 100)
	v.SetDefault("pipeline.k_neighbors", 5)
}
