package api

import (
	"context"
	"net/http"

	"github.com/opencarbon/soilstock/internal/api/shared"
	"github.com/opencarbon/soilstock/internal/domain"
)

// SampleImporter stores validated samples.
type SampleImporter interface {
	Import(ctx context.Context, samples []*domain.Sample) error
}

// SampleHandler handles sample import requests.
type SampleHandler struct {
	importer SampleImporter
}

// NewSampleHandler creates a SampleHandler.
func NewSampleHandler(importer SampleImporter) *SampleHandler {
	return &SampleHandler{importer: importer}
}

// ImportSamples handles POST /api/v1/samples. Records failing
// validation are rejected individually with a reason; the valid
// remainder is stored. A request with no valid records is a 400.
func (h *SampleHandler) ImportSamples(w http.ResponseWriter, r *http.Request) {
	var req ImportSamplesRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "No samples provided")
		return
	}

	var (
		valid    []*domain.Sample
		rejected []RejectedSample
	)
	for i, input := range req.Samples {
		if err := shared.ValidateRequest(&input); err != nil {
			rejected = append(rejected, RejectedSample{Index: i, Reason: err.Error()})
			continue
		}
		sample, err := domain.NewSample(
			input.CoreID,
			domain.DomainTag(input.Domain),
			input.DepthTopCm,
			input.DepthBottomCm,
			input.SOCGPerKg,
			input.BulkDensityGCm3,
			input.Covariates,
			domain.Location{Latitude: input.Latitude, Longitude: input.Longitude},
		)
		if err != nil {
			rejected = append(rejected, RejectedSample{Index: i, Reason: err.Error()})
			continue
		}
		valid = append(valid, sample)
	}

	if len(valid) == 0 {
		shared.RespondWithJSON(w, r, http.StatusBadRequest, ImportSamplesResponse{Rejected: rejected})
		return
	}

	if err := h.importer.Import(r.Context(), valid); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, ImportSamplesResponse{
		Imported: len(valid),
		Rejected: rejected,
	})
}
