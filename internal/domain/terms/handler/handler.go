// Package handler exposes the payables optimization service over HTTP.
package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/dmondal123/excel-chat/internal/domain/export"
	"github.com/dmondal123/excel-chat/internal/domain/ingest"
	"github.com/dmondal123/excel-chat/internal/domain/terms"
	"github.com/dmondal123/excel-chat/internal/domain/terms/service"
)

// multipart form memory ceiling; larger files spill to disk.
const uploadMemoryLimit = 32 << 20

// Handler holds the HTTP endpoints for datasets and optimization runs.
type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

// NewHandler creates the HTTP handler.
func NewHandler(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register mounts all routes on the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/datasets", h.uploadDataset).Methods(http.MethodPost)
	v1.HandleFunc("/datasets/{id}", h.getDataset).Methods(http.MethodGet)
	v1.HandleFunc("/datasets/{id}", h.deleteDataset).Methods(http.MethodDelete)
	v1.HandleFunc("/datasets/{id}/optimize", h.optimizeDataset).Methods(http.MethodPost)
	v1.HandleFunc("/datasets/{id}/export", h.exportDataset).Methods(http.MethodPost)
	v1.HandleFunc("/optimize", h.optimizeGroups).Methods(http.MethodPost)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) uploadDataset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		h.writeError(w, fmt.Errorf("%w: expected multipart form upload", errBadRequest))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: missing file part", errBadRequest))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, fmt.Errorf("failed to read upload: %w", err))
		return
	}

	mapping, err := mappingFromForm(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.service.UploadDataset(r.Context(), header.Filename, data, mapping)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

// mappingFromForm reads optional explicit column indices from the upload form.
func mappingFromForm(r *http.Request) (*ingest.FieldMapping, error) {
	termValue := r.FormValue("term_col")
	amountValue := r.FormValue("amount_col")
	if termValue == "" && amountValue == "" {
		return nil, nil
	}

	parse := func(name, value string, fallback int) (int, error) {
		if value == "" {
			return fallback, nil
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be a column index", errBadRequest, name)
		}
		return n, nil
	}

	termCol, err := parse("term_col", termValue, -1)
	if err != nil {
		return nil, err
	}
	amountCol, err := parse("amount_col", amountValue, -1)
	if err != nil {
		return nil, err
	}
	vendorCol, err := parse("vendor_col", r.FormValue("vendor_col"), -1)
	if err != nil {
		return nil, err
	}

	return &ingest.FieldMapping{TermCol: termCol, AmountCol: amountCol, VendorCol: vendorCol}, nil
}

type datasetResponse struct {
	DatasetID   string   `json:"dataset_id"`
	FileName    string   `json:"file_name"`
	Headers     []string `json:"headers"`
	RowCount    int      `json:"row_count"`
	RowsSkipped int      `json:"rows_skipped"`
	ExpiresAt   string   `json:"expires_at"`
}

func (h *Handler) getDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := h.service.GetDataset(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, datasetResponse{
		DatasetID:   ds.ID,
		FileName:    ds.FileName,
		Headers:     ds.Headers,
		RowCount:    len(ds.Rows),
		RowsSkipped: ds.RowsSkipped,
		ExpiresAt:   ds.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (h *Handler) deleteDataset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteDataset(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) optimizeDataset(w http.ResponseWriter, r *http.Request) {
	var params service.OptimizeParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		h.writeError(w, fmt.Errorf("%w: invalid request body", errBadRequest))
		return
	}

	result, err := h.service.Optimize(r.Context(), mux.Vars(r)["id"], params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) optimizeGroups(w http.ResponseWriter, r *http.Request) {
	var req terms.OptimizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: invalid request body", errBadRequest))
		return
	}

	allocation, err := h.service.OptimizeGroups(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, allocation)
}

type exportRequest struct {
	service.OptimizeParams
	Format string `json:"format"`
}

func (h *Handler) exportDataset(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: invalid request body", errBadRequest))
		return
	}

	format, err := export.ParseFormat(req.Format)
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	result, err := h.service.Export(r.Context(), mux.Vars(r)["id"], req.OptimizeParams, format)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	if _, err := w.Write(result.Data); err != nil {
		h.logger.Error("failed to write export", slog.Any("error", err))
	}
}

// errBadRequest marks client errors that have no richer error type.
var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Missing []string `json:"missing_columns,omitempty"`
	Sample  []string `json:"unmatched_sample,omitempty"`
}

// writeError maps domain errors onto HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	response := errorResponse{Error: err.Error(), Code: "internal_error"}
	status := http.StatusInternalServerError

	var missingErr *ingest.MissingColumnsError
	var inputErr *terms.InputError
	var emptyErr *terms.EmptyExtractionError

	switch {
	case errors.Is(err, service.ErrDatasetNotFound), errors.Is(err, service.ErrDatasetExpired):
		status, response.Code = http.StatusNotFound, "dataset_not_found"
	case errors.Is(err, ingest.ErrUnsupportedFileType):
		status, response.Code = http.StatusUnsupportedMediaType, "unsupported_file_type"
	case errors.Is(err, ingest.ErrFileTooLarge):
		status, response.Code = http.StatusRequestEntityTooLarge, "file_too_large"
	case errors.As(err, &missingErr):
		status, response.Code = http.StatusUnprocessableEntity, "missing_required_columns"
		response.Missing = missingErr.Missing
	case errors.As(err, &emptyErr):
		status, response.Code = http.StatusUnprocessableEntity, "empty_extraction_result"
		response.Sample = emptyErr.Sample
	case errors.As(err, &inputErr):
		status, response.Code = http.StatusBadRequest, "invalid_input"
	case errors.Is(err, errBadRequest):
		status, response.Code = http.StatusBadRequest, "bad_request"
	default:
		h.logger.Error("request failed", slog.Any("error", err))
	}

	h.writeJSON(w, status, response)
}

// writeJSON encodes into a buffer first so a failed encode never corrupts the
// response status.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", slog.Any("error", err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Error("failed to write response", slog.Any("error", err))
	}
}
