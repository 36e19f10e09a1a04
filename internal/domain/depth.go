package domain

import "fmt"

// StandardDepth is one member of the fixed, ordered set of target depths
// that raw profiles are harmonized onto. The midpoint identifies the
// depth; the top and bottom bound the layer whose thickness is used for
// mass aggregation. Values are centimetres below the surface.
type StandardDepth struct {
	MidpointCm float64 `json:"midpoint_cm"`
	TopCm      float64 `json:"top_cm"`
	BottomCm   float64 `json:"bottom_cm"`
}

// ThicknessCm returns the layer thickness in centimetres.
func (d StandardDepth) ThicknessCm() float64 {
	return d.BottomCm - d.TopCm
}

// Validate checks the layer bounds and midpoint placement.
func (d StandardDepth) Validate() error {
	if d.BottomCm <= d.TopCm {
		return ErrInvalidDepthOrder
	}
	if d.MidpointCm < d.TopCm || d.MidpointCm > d.BottomCm {
		return NewValidationError("midpoint_cm",
			fmt.Sprintf("midpoint %.1f outside layer [%.1f, %.1f]", d.MidpointCm, d.TopCm, d.BottomCm),
			ErrValidation)
	}
	return nil
}

// DefaultStandardDepths is the conventional four-layer standard used when
// no explicit depth list is configured: 0-15, 15-30, 30-50 and 50-100 cm.
func DefaultStandardDepths() []StandardDepth {
	return []StandardDepth{
		{MidpointCm: 7.5, TopCm: 0, BottomCm: 15},
		{MidpointCm: 22.5, TopCm: 15, BottomCm: 30},
		{MidpointCm: 40, TopCm: 30, BottomCm: 50},
		{MidpointCm: 75, TopCm: 50, BottomCm: 100},
	}
}

// ValidateStandardDepths checks an ordered depth list: every layer valid,
// strictly increasing, non-overlapping.
func ValidateStandardDepths(depths []StandardDepth) error {
	if len(depths) == 0 {
		return NewValidationError("standard_depths", "at least one standard depth is required", ErrValidation)
	}
	for i, d := range depths {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("standard depth %d: %w", i, err)
		}
		if i > 0 && d.TopCm < depths[i-1].BottomCm {
			return NewValidationError("standard_depths",
				fmt.Sprintf("layer %d overlaps layer %d", i, i-1), ErrValidation)
		}
	}
	return nil
}
