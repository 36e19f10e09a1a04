package api

import (
	"time"

	"github.com/opencarbon/soilstock/internal/domain"
)

// SampleInput is one raw sample in a bulk import request.
type SampleInput struct {
	CoreID          string             `json:"core_id"            validate:"required"`
	Domain          string             `json:"domain"             validate:"required,oneof=local global"`
	DepthTopCm      float64            `json:"depth_top_cm"       validate:"gte=0"`
	DepthBottomCm   float64            `json:"depth_bottom_cm"    validate:"gtfield=DepthTopCm"`
	SOCGPerKg       float64            `json:"soc_g_per_kg"       validate:"gte=0"`
	BulkDensityGCm3 float64            `json:"bulk_density_g_cm3" validate:"gt=0"`
	Covariates      map[string]float64 `json:"covariates"`
	Latitude        float64            `json:"latitude"           validate:"gte=-90,lte=90"`
	Longitude       float64            `json:"longitude"          validate:"gte=-180,lte=180"`
}

// ImportSamplesRequest is the request body for bulk sample import.
type ImportSamplesRequest struct {
	Samples []SampleInput `json:"samples" validate:"required,min=1"`
}

// RejectedSample reports one input record that failed validation, by
// its position in the request.
type RejectedSample struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// ImportSamplesResponse summarizes a bulk import: stored count plus the
// per-record rejects.
type ImportSamplesResponse struct {
	Imported int              `json:"imported"`
	Rejected []RejectedSample `json:"rejected,omitempty"`
}

// TriggerRunRequest is the optional body of a run trigger. An absent
// field falls back to the configured value.
type TriggerRunRequest struct {
	Seed *int64 `json:"seed,omitempty"`
}

// RunResponse is the API representation of an estimation run.
type RunResponse struct {
	ID         string                   `json:"id"`
	CreatedAt  time.Time                `json:"created_at"`
	Status     string                   `json:"status"`
	Seed       int64                    `json:"seed"`
	Covariates []string                 `json:"covariates"`
	Depths     []domain.SelectionResult `json:"depths"`
	Profile    *domain.ProfileStock     `json:"profile,omitempty"`
	Error      string                   `json:"error,omitempty"`
}

// DepthResultResponse is one depth's full outcome for a run: the
// comparison table with skip reasons and weighting flags, plus the
// per-record predictions of the chosen model.
type DepthResultResponse struct {
	RunID       string                    `json:"run_id"`
	Selection   domain.SelectionResult    `json:"selection"`
	Predictions []domain.RecordPrediction `json:"predictions,omitempty"`
	HasModel    bool                      `json:"has_model"`
}

func runToResponse(run *domain.Run) RunResponse {
	return RunResponse{
		ID:         run.ID.String(),
		CreatedAt:  run.CreatedAt,
		Status:     string(run.Status),
		Seed:       run.Seed,
		Covariates: run.Covariates,
		Depths:     run.Depths,
		Profile:    run.Profile,
		Error:      run.Error,
	}
}
