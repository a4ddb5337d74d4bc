package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmondal123/excel-chat/internal/domain/terms"
	"github.com/dmondal123/excel-chat/internal/domain/terms/handler"
	"github.com/dmondal123/excel-chat/internal/domain/terms/service"
	"github.com/dmondal123/excel-chat/pkg/config"
	"github.com/dmondal123/excel-chat/pkg/metrics"
)

const uploadCSV = `Vendor,Payment Terms,Amount
Acme Metals,Net 15,1000
Birla Fasteners,Net 30,3000
`

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()

	cfg := &config.Config{
		Upload: config.UploadConfig{MaxFileSizeMB: 50},
		Optimizer: config.OptimizerConfig{
			LowerBound:   30,
			UpperBound:   60,
			InterestRate: terms.DefaultInterestRate,
			Epsilon:      terms.DefaultEpsilon,
			ValidTerms:   terms.DefaultValidTerms,
		},
		Datasets: config.DatasetConfig{TTLMinutes: 60},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewService(service.NewMemoryStore(), cfg, logger, metrics.New())

	router := mux.NewRouter()
	handler.NewHandler(svc, logger).Register(router)
	return router
}

func multipartUpload(t *testing.T, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func uploadDataset(t *testing.T, router *mux.Router) string {
	t.Helper()

	body, contentType := multipartUpload(t, "payables.csv", uploadCSV)
	req := httptest.NewRequest(http.MethodPost, "/v1/datasets", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result struct {
		DatasetID string `json:"dataset_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotEmpty(t, result.DatasetID)
	return result.DatasetID
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUploadDataset(t *testing.T) {
	router := newTestRouter(t)

	body, contentType := multipartUpload(t, "payables.csv", uploadCSV)
	req := httptest.NewRequest(http.MethodPost, "/v1/datasets", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var result struct {
		DatasetID string   `json:"dataset_id"`
		Headers   []string `json:"headers"`
		RowCount  int      `json:"row_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.DatasetID)
	assert.Equal(t, []string{"Vendor", "Payment Terms", "Amount"}, result.Headers)
	assert.Equal(t, 2, result.RowCount)
}

func TestUploadDataset_UnsupportedType(t *testing.T) {
	router := newTestRouter(t)

	body, contentType := multipartUpload(t, "payables.pdf", uploadCSV)
	req := httptest.NewRequest(http.MethodPost, "/v1/datasets", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported_file_type")
}

func TestUploadDataset_MissingFilePart(t *testing.T) {
	router := newTestRouter(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("term_col", "1"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/datasets", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDataset(t *testing.T) {
	router := newTestRouter(t)
	id := uploadDataset(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/datasets/"+id, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "payables.csv")
}

func TestGetDataset_NotFound(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/datasets/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "dataset_not_found")
}

func TestDeleteDataset(t *testing.T) {
	router := newTestRouter(t)
	id := uploadDataset(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/datasets/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/datasets/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOptimizeDataset(t *testing.T) {
	router := newTestRouter(t)
	id := uploadDataset(t, router)

	req := httptest.NewRequest(http.MethodPost, "/v1/datasets/"+id+"/optimize",
		strings.NewReader(`{"target_average": 40}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result struct {
		Allocation struct {
			Feasible        bool    `json:"feasible"`
			AchievedAverage float64 `json:"achieved_average"`
		} `json:"allocation"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Allocation.Feasible)
	assert.InDelta(t, 40, result.Allocation.AchievedAverage, 1e-9)
}

func TestOptimizeDataset_InvalidBody(t *testing.T) {
	router := newTestRouter(t)
	id := uploadDataset(t, router)

	req := httptest.NewRequest(http.MethodPost, "/v1/datasets/"+id+"/optimize",
		strings.NewReader(`not json`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOptimizeGroups(t *testing.T) {
	router := newTestRouter(t)

	payload := `{
		"groups": [
			{"current_term": 15, "vendor_count": 1, "total_amount": 1000},
			{"current_term": 30, "vendor_count": 1, "total_amount": 3000}
		],
		"target_average": 40,
		"lower_bound": 30,
		"upper_bound": 60
	}`

	req := httptest.NewRequest(http.MethodPost, "/v1/optimize", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var allocation terms.Allocation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &allocation))
	assert.True(t, allocation.Feasible)
	require.Len(t, allocation.Rows, 2)
	assert.InDelta(t, 50, allocation.Rows[1].TargetTerm, 1e-9)
}

func TestOptimizeGroups_MalformedInput(t *testing.T) {
	router := newTestRouter(t)

	payload := `{
		"groups": [{"current_term": 30, "vendor_count": -1, "total_amount": 100}],
		"target_average": 40,
		"lower_bound": 30,
		"upper_bound": 60
	}`

	req := httptest.NewRequest(http.MethodPost, "/v1/optimize", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_input")
}

func TestExportDataset(t *testing.T) {
	router := newTestRouter(t)
	id := uploadDataset(t, router)

	req := httptest.NewRequest(http.MethodPost, "/v1/datasets/"+id+"/export",
		strings.NewReader(`{"target_average": 40, "format": "csv"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "payment-terms-")
	assert.Contains(t, rec.Body.String(), "current_term_days")
}
