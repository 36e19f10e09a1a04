package domain

import (
	"math"

	"github.com/google/uuid"
)

// DomainTag identifies which of the two sample populations a record
// belongs to. It is set at ingestion and never mutated.
type DomainTag string

// The two known sample populations.
const (
	// DomainLocal is the target domain: the region being estimated.
	DomainLocal DomainTag = "local"

	// DomainGlobal is the source domain: the larger, globally
	// distributed reference set whose covariates may be shifted.
	DomainGlobal DomainTag = "global"
)

// Valid reports whether the tag is one of the two known populations.
func (t DomainTag) Valid() bool {
	return t == DomainLocal || t == DomainGlobal
}

// Location is a geographic point in decimal degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Sample is one raw depth-interval measurement from a soil core.
// Concentrations are g/kg, bulk density g/cm3, stock t/ha for the
// measured interval, depths cm below the surface.
type Sample struct {
	ID              uuid.UUID          `json:"id"`
	CoreID          string             `json:"core_id"`
	Domain          DomainTag          `json:"domain"`
	DepthTopCm      float64            `json:"depth_top_cm"`
	DepthBottomCm   float64            `json:"depth_bottom_cm"`
	SOCGPerKg       float64            `json:"soc_g_per_kg"`
	BulkDensityGCm3 float64            `json:"bulk_density_g_cm3"`
	StockTHa        float64            `json:"stock_t_ha"`
	Covariates      map[string]float64 `json:"covariates"`
	Location        Location           `json:"location"`
}

// NewSample creates a Sample with a fresh ID and a derived carbon stock.
// Returns a validation error if any field is out of range.
func NewSample(
	coreID string,
	tag DomainTag,
	depthTopCm, depthBottomCm float64,
	socGPerKg, bulkDensityGCm3 float64,
	covariates map[string]float64,
	loc Location,
) (*Sample, error) {
	s := &Sample{
		ID:              uuid.New(),
		CoreID:          coreID,
		Domain:          tag,
		DepthTopCm:      depthTopCm,
		DepthBottomCm:   depthBottomCm,
		SOCGPerKg:       socGPerKg,
		BulkDensityGCm3: bulkDensityGCm3,
		Covariates:      covariates,
		Location:        loc,
	}
	s.StockTHa = IntervalStockTHa(socGPerKg, bulkDensityGCm3, depthBottomCm-depthTopCm)

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the sample against the schema invariants. A failing
// sample is excluded from the run, never a whole-run abort.
func (s *Sample) Validate() error {
	if s.ID == uuid.Nil {
		return ErrInvalidID
	}
	if s.CoreID == "" {
		return ErrEmptyCoreID
	}
	if !s.Domain.Valid() {
		return ErrInvalidDomainTag
	}
	if s.DepthBottomCm <= s.DepthTopCm || s.DepthTopCm < 0 {
		return ErrInvalidDepthOrder
	}
	if s.SOCGPerKg < 0 || math.IsNaN(s.SOCGPerKg) || math.IsInf(s.SOCGPerKg, 0) {
		return ErrInvalidConcentration
	}
	if s.BulkDensityGCm3 <= 0 || math.IsNaN(s.BulkDensityGCm3) || math.IsInf(s.BulkDensityGCm3, 0) {
		return ErrInvalidBulkDensity
	}
	if s.StockTHa < 0 {
		return ErrNegativeStock
	}
	return nil
}

// ThicknessCm returns the measured interval thickness in centimetres.
func (s *Sample) ThicknessCm() float64 {
	return s.DepthBottomCm - s.DepthTopCm
}

// IntervalStockTHa converts a concentration (g/kg), bulk density (g/cm3)
// and interval thickness (cm) into an areal carbon stock in t/ha.
// 1 g C/kg soil at 1 g/cm3 over 1 cm is 0.1 t/ha.
func IntervalStockTHa(socGPerKg, bulkDensityGCm3, thicknessCm float64) float64 {
	return socGPerKg * bulkDensityGCm3 * thicknessCm * 0.1
}
