package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencarbon/soilstock/internal/domain"
	"github.com/opencarbon/soilstock/internal/service"
	"github.com/opencarbon/soilstock/internal/store"
)

type fakeExecutor struct {
	run         *domain.Run
	runs        []*domain.Run
	depthResult *store.DepthResult

	executeErr error
	getErr     error
	listErr    error
	depthErr   error

	lastLimit  int
	lastOffset int
	lastOpts   service.RunOptions
}

func (f *fakeExecutor) ExecuteRun(_ context.Context, opts service.RunOptions) (*domain.Run, error) {
	f.lastOpts = opts
	return f.run, f.executeErr
}

func (f *fakeExecutor) GetRun(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.run, nil
}

func (f *fakeExecutor) ListRuns(_ context.Context, limit, offset int) ([]*domain.Run, error) {
	f.lastLimit, f.lastOffset = limit, offset
	return f.runs, f.listErr
}

func (f *fakeExecutor) GetDepthResult(_ context.Context, _ uuid.UUID, _ float64) (*store.DepthResult, error) {
	if f.depthErr != nil {
		return nil, f.depthErr
	}
	return f.depthResult, nil
}

func runRouter(executor RunExecutor) http.Handler {
	h := NewRunHandler(executor)
	r := chi.NewRouter()
	r.Post("/api/v1/runs", h.TriggerRun)
	r.Get("/api/v1/runs", h.ListRuns)
	r.Get("/api/v1/runs/{id}", h.GetRun)
	r.Get("/api/v1/runs/{id}/depths/{depth}", h.GetDepthResult)
	return r
}

func completedRun() *domain.Run {
	return &domain.Run{
		ID:         uuid.New(),
		CreatedAt:  time.Now().UTC(),
		Status:     domain.RunStatusCompleted,
		Seed:       42,
		Covariates: []string{"clay_pct", "ph"},
		Profile:    &domain.ProfileStock{TotalTHa: 95.4, ConservativeTHa: 88.1},
	}
}

func TestTriggerRunReturnsCompletedRun(t *testing.T) {
	t.Parallel()

	executor := &fakeExecutor{run: completedRun()}
	rec := httptest.NewRecorder()
	runRouter(executor).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, executor.run.ID.String(), resp.ID)
	assert.Equal(t, string(domain.RunStatusCompleted), resp.Status)
	require.NotNil(t, resp.Profile)
	assert.InDelta(t, 95.4, resp.Profile.TotalTHa, 1e-9)
}

func TestTriggerRunSeedOverride(t *testing.T) {
	t.Parallel()

	executor := &fakeExecutor{run: completedRun()}
	router := runRouter(executor)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs",
		bytes.NewReader([]byte(`{"seed": 99}`))))
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, executor.lastOpts.Seed)
	assert.Equal(t, int64(99), *executor.lastOpts.Seed)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs",
		bytes.NewReader([]byte(`{malformed`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerRunWithoutSamples(t *testing.T) {
	t.Parallel()

	executor := &fakeExecutor{executeErr: service.ErrNoSamples}
	rec := httptest.NewRecorder()
	runRouter(executor).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "import samples first")
}

func TestGetRunByID(t *testing.T) {
	t.Parallel()

	executor := &fakeExecutor{run: completedRun()}
	router := runRouter(executor)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+executor.run.ID.String(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()

	executor := &fakeExecutor{getErr: store.ErrRunNotFound}
	rec := httptest.NewRecorder()
	runRouter(executor).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRunsPagination(t *testing.T) {
	t.Parallel()

	executor := &fakeExecutor{runs: []*domain.Run{completedRun(), completedRun()}}
	router := runRouter(executor)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=5&offset=10", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, executor.lastLimit)
	assert.Equal(t, 10, executor.lastOffset)
	var resp []RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)

	for _, query := range []string{"?limit=0", "?limit=101", "?offset=-1", "?limit=abc"} {
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs"+query, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "query %s", query)
	}
}

func TestGetDepthResult(t *testing.T) {
	t.Parallel()

	runID := uuid.New()
	executor := &fakeExecutor{depthResult: &store.DepthResult{
		RunID: runID,
		Selection: domain.SelectionResult{
			Depth:  domain.StandardDepth{MidpointCm: 7.5, TopCm: 0, BottomCm: 15},
			Status: domain.DepthSelected,
			Chosen: &domain.StrategyReport{Kind: domain.StrategyWeightedTransfer},
		},
		Predictions:   []domain.RecordPrediction{{RecordID: uuid.New(), Predicted: 31.2}},
		ModelArtifact: []byte{0x01, 0x02},
	}}

	rec := httptest.NewRecorder()
	runRouter(executor).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+runID.String()+"/depths/7.5", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp DepthResultResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, runID.String(), resp.RunID)
	require.NotNil(t, resp.Selection.Chosen)
	assert.Equal(t, domain.StrategyWeightedTransfer, resp.Selection.Chosen.Kind)
	assert.True(t, resp.HasModel)
	require.Len(t, resp.Predictions, 1)
}

func TestGetDepthResultBadInputs(t *testing.T) {
	t.Parallel()

	executor := &fakeExecutor{depthErr: store.ErrDepthResultNotFound}
	router := runRouter(executor)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+uuid.NewString()+"/depths/xyz", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+uuid.NewString()+"/depths/7.5", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
