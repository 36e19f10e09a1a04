// Package domain defines the core entities of the soil carbon stock
// estimation pipeline: raw depth-interval samples, the fixed standard
// depths they are harmonized onto, harmonized per-depth records, the
// closed set of transfer strategies, per-depth selection results, and
// the profile-level stock aggregate.
//
// Entities are plain data with constructor validation. All numeric
// pipeline code operates on these types and never on raw table columns;
// covariate access goes through the CovariateRegistry built at ingestion.
package domain
