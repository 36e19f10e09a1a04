package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencarbon/soilstock/internal/domain"
	"github.com/opencarbon/soilstock/internal/store"
)

type fakeImporter struct {
	stored []*domain.Sample
	err    error
}

func (f *fakeImporter) Import(_ context.Context, samples []*domain.Sample) error {
	if f.err != nil {
		return f.err
	}
	f.stored = append(f.stored, samples...)
	return nil
}

func postSamples(t *testing.T, handler *SampleHandler, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/samples", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	handler.ImportSamples(rec, req)
	return rec
}

func validInput() SampleInput {
	return SampleInput{
		CoreID:          "core-001",
		Domain:          "local",
		DepthTopCm:      0,
		DepthBottomCm:   15,
		SOCGPerKg:       22,
		BulkDensityGCm3: 1.3,
		Covariates:      map[string]float64{"clay_pct": 24},
		Latitude:        46.1,
		Longitude:       14.5,
	}
}

func TestImportSamplesStoresValidRecords(t *testing.T) {
	t.Parallel()

	importer := &fakeImporter{}
	handler := NewSampleHandler(importer)

	rec := postSamples(t, handler, ImportSamplesRequest{
		Samples: []SampleInput{validInput(), validInput()},
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp ImportSamplesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Imported)
	assert.Empty(t, resp.Rejected)
	require.Len(t, importer.stored, 2)
	assert.Equal(t, "core-001", importer.stored[0].CoreID)
	assert.InDelta(t, 22*1.3*15*0.1, importer.stored[0].StockTHa, 1e-9)
}

func TestImportSamplesRejectsInvalidRecordsIndividually(t *testing.T) {
	t.Parallel()

	importer := &fakeImporter{}
	handler := NewSampleHandler(importer)

	inverted := validInput()
	inverted.DepthTopCm, inverted.DepthBottomCm = 15, 0
	negativeBD := validInput()
	negativeBD.BulkDensityGCm3 = -1

	rec := postSamples(t, handler, ImportSamplesRequest{
		Samples: []SampleInput{validInput(), inverted, negativeBD},
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp ImportSamplesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Imported)
	require.Len(t, resp.Rejected, 2)
	assert.Equal(t, 1, resp.Rejected[0].Index)
	assert.Equal(t, 2, resp.Rejected[1].Index)
	assert.NotEmpty(t, resp.Rejected[0].Reason)
	assert.Len(t, importer.stored, 1)
}

func TestImportSamplesAllInvalid(t *testing.T) {
	t.Parallel()

	handler := NewSampleHandler(&fakeImporter{})

	bad := validInput()
	bad.CoreID = ""
	rec := postSamples(t, handler, ImportSamplesRequest{Samples: []SampleInput{bad}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ImportSamplesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Imported)
	assert.Len(t, resp.Rejected, 1)
}

func TestImportSamplesMalformedBody(t *testing.T) {
	t.Parallel()

	handler := NewSampleHandler(&fakeImporter{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/samples", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	handler.ImportSamples(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportSamplesEmptyRequest(t *testing.T) {
	t.Parallel()

	handler := NewSampleHandler(&fakeImporter{})
	rec := postSamples(t, handler, ImportSamplesRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportSamplesStoreFailure(t *testing.T) {
	t.Parallel()

	handler := NewSampleHandler(&fakeImporter{err: store.ErrDuplicate})
	rec := postSamples(t, handler, ImportSamplesRequest{Samples: []SampleInput{validInput()}})
	assert.Equal(t, http.StatusConflict, rec.Code)
}
