package domain

import "sort"

// CovariateRegistry is the explicit, typed inventory of covariate columns
// observed at ingestion. It decouples the numeric pipeline from column
// naming conventions: components receive ordered name lists and vectors,
// never pattern-matched column lookups.
type CovariateRegistry struct {
	names  []string
	counts map[string]int
	total  int
}

// NewCovariateRegistry builds a registry from the ingested samples,
// counting per-covariate presence. Names are held in sorted order so the
// derived feature layout is stable across runs.
func NewCovariateRegistry(samples []*Sample) *CovariateRegistry {
	counts := make(map[string]int)
	for _, s := range samples {
		for name := range s.Covariates {
			counts[name]++
		}
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return &CovariateRegistry{
		names:  names,
		counts: counts,
		total:  len(samples),
	}
}

// Names returns all registered covariate names in stable order.
func (r *CovariateRegistry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Completeness returns the fraction of samples carrying the named
// covariate, in [0, 1]. Unknown names report 0.
func (r *CovariateRegistry) Completeness(name string) float64 {
	if r.total == 0 {
		return 0
	}
	return float64(r.counts[name]) / float64(r.total)
}

// Filter returns the covariates whose completeness is at least the given
// threshold, in stable order. These are the model covariates for a run.
func (r *CovariateRegistry) Filter(threshold float64) []string {
	var kept []string
	for _, name := range r.names {
		if r.Completeness(name) >= threshold {
			kept = append(kept, name)
		}
	}
	return kept
}

// Len returns the number of registered covariates.
func (r *CovariateRegistry) Len() int {
	return len(r.names)
}
