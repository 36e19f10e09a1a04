// Package regress defines the supervised-regression capability the
// strategy trainer consumes, as an interface pair: a Regressor fits
// feature rows (optionally weighted) and returns a Predictor. The
// trainer depends only on these interfaces, keeping the pipeline
// portable across regression backends.
//
// Two backends are provided: a seeded bagged regression forest (the
// default) and a weighted k-nearest-neighbour regressor. Both are fully
// deterministic for a fixed seed and input order. The package also holds
// the deterministic holdout splitter and the R2/RMSE scoring helpers
// shared by every strategy.
package regress
