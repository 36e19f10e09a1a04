package domain

// DepthCoverage flags whether a standard depth contributed to the
// profile total, so the conservative bound is auditable.
type DepthCoverage struct {
	Depth       StandardDepth `json:"depth"`
	Contributed bool          `json:"contributed"`
	Reason      string        `json:"reason,omitempty"`
}

// ProfileStock is the aggregated total-profile carbon stock: the
// thickness-weighted sum of per-depth predictions, a conservative lower
// bound combining per-depth uncertainty in quadrature, and the coverage
// flags naming which depths contributed.
type ProfileStock struct {
	TotalTHa        float64         `json:"total_t_ha"`
	ConservativeTHa float64         `json:"conservative_t_ha"`
	Coverage        []DepthCoverage `json:"coverage"`
}

// Complete reports whether every standard depth contributed to the total.
func (p ProfileStock) Complete() bool {
	for _, c := range p.Coverage {
		if !c.Contributed {
			return false
		}
	}
	return true
}
