package domain

import "github.com/google/uuid"

// HarmonizationConfidence records how a harmonized record was derived.
type HarmonizationConfidence string

const (
	// ConfidenceHarmonized means the record came from the
	// mass-preserving spline fit over two or more raw intervals.
	ConfidenceHarmonized HarmonizationConfidence = "harmonized"

	// ConfidenceProportional means a single raw interval was split
	// proportionally across the standard layers it spans.
	ConfidenceProportional HarmonizationConfidence = "proportional"

	// ConfidenceNearest means the core had too little data for any
	// interpolation and the measurement was assigned directly to the
	// closest standard depth.
	ConfidenceNearest HarmonizationConfidence = "nearest"
)

// HarmonizedRecord is one Sample population re-expressed at one
// StandardDepth. It is created once per (core, standard depth) pair
// during harmonization and is immutable afterward. Joins against
// weights, predictions and persisted rows key on ID, never on rounded
// coordinates or depths.
type HarmonizedRecord struct {
	ID              uuid.UUID               `json:"id"`
	CoreID          string                  `json:"core_id"`
	Domain          DomainTag               `json:"domain"`
	Depth           StandardDepth           `json:"depth"`
	SOCGPerKg       float64                 `json:"soc_g_per_kg"`
	BulkDensityGCm3 float64                 `json:"bulk_density_g_cm3"`
	StockTHa        float64                 `json:"stock_t_ha"`
	Covariates      map[string]float64      `json:"covariates"`
	Location        Location                `json:"location"`
	Confidence      HarmonizationConfidence `json:"confidence"`
	SourceSampleIDs []uuid.UUID             `json:"source_sample_ids"`
}

// CovariateVector extracts the record's values for the given ordered
// covariate names. The second return is false if any named covariate is
// missing from the record.
func (r *HarmonizedRecord) CovariateVector(names []string) ([]float64, bool) {
	vec := make([]float64, len(names))
	for i, name := range names {
		v, ok := r.Covariates[name]
		if !ok {
			return nil, false
		}
		vec[i] = v
	}
	return vec, true
}
