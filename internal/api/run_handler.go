package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opencarbon/soilstock/internal/api/shared"
	"github.com/opencarbon/soilstock/internal/domain"
	"github.com/opencarbon/soilstock/internal/service"
	"github.com/opencarbon/soilstock/internal/store"
)

// RunExecutor executes and retrieves estimation runs.
type RunExecutor interface {
	ExecuteRun(ctx context.Context, opts service.RunOptions) (*domain.Run, error)
	GetRun(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*domain.Run, error)
	GetDepthResult(ctx context.Context, runID uuid.UUID, midpointCm float64) (*store.DepthResult, error)
}

// RunHandler handles estimation run requests.
type RunHandler struct {
	runs RunExecutor
}

// NewRunHandler creates a RunHandler.
func NewRunHandler(runs RunExecutor) *RunHandler {
	return &RunHandler{runs: runs}
}

// TriggerRun handles POST /api/v1/runs. The pipeline executes
// synchronously over the stored sample table and the completed run is
// returned. An optional JSON body overrides run parameters, currently
// the seed.
func (h *RunHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var opts service.RunOptions
	if r.Body != nil && r.ContentLength != 0 {
		var req TriggerRunRequest
		if err := shared.DecodeJSON(r, &req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
			return
		}
		opts.Seed = req.Seed
	}

	run, err := h.runs.ExecuteRun(r.Context(), opts)
	if err != nil {
		if errors.Is(err, service.ErrNoSamples) {
			shared.RespondWithError(w, r, http.StatusConflict, "No samples stored; import samples first")
			return
		}
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, runToResponse(run))
}

// GetRun handles GET /api/v1/runs/{id}.
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid run ID")
		return
	}

	run, err := h.runs.GetRun(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, runToResponse(run))
}

// ListRuns handles GET /api/v1/runs with optional limit/offset query
// parameters.
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)
	if limit < 1 || limit > 100 || offset < 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid pagination parameters")
		return
	}

	runs, err := h.runs.ListRuns(r.Context(), limit, offset)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	responses := make([]RunResponse, len(runs))
	for i, run := range runs {
		responses[i] = runToResponse(run)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// GetDepthResult handles GET /api/v1/runs/{id}/depths/{depth}, where
// depth is the standard depth's midpoint in centimetres.
func (h *RunHandler) GetDepthResult(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid run ID")
		return
	}
	midpoint, err := strconv.ParseFloat(chi.URLParam(r, "depth"), 64)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid depth")
		return
	}

	result, err := h.runs.GetDepthResult(r.Context(), id, midpoint)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, DepthResultResponse{
		RunID:       result.RunID.String(),
		Selection:   result.Selection,
		Predictions: result.Predictions,
		HasModel:    len(result.ModelArtifact) > 0,
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}
