// Package config defines the application's run-scoped configuration and
// its loading logic. Configuration is assembled from defaults, an
// optional YAML file, and SOILSTOCK_-prefixed environment variables
// (environment wins), then validated. A loaded Config is an immutable
// value passed into each component at construction; nothing in the
// pipeline reads configuration from globals.
package config
