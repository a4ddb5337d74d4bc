// Package service orchestrates uploads, term extraction and optimization runs
// over stored datasets.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmondal123/excel-chat/internal/domain/export"
	"github.com/dmondal123/excel-chat/internal/domain/ingest"
	"github.com/dmondal123/excel-chat/internal/domain/terms"
	"github.com/dmondal123/excel-chat/pkg/config"
	"github.com/dmondal123/excel-chat/pkg/metrics"
)

// Service wires ingest, extraction and the optimizer together.
type Service struct {
	store     DatasetStore
	optimizer *terms.Optimizer
	extractor *terms.Extractor
	defaults  config.OptimizerConfig
	maxUpload int64
	ttl       time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewService creates the orchestration service.
func NewService(store DatasetStore, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:     store,
		optimizer: terms.NewOptimizer(cfg.Optimizer.InterestRate, cfg.Optimizer.Epsilon),
		extractor: terms.NewExtractor(cfg.Optimizer.ValidTerms),
		defaults:  cfg.Optimizer,
		maxUpload: cfg.Upload.MaxUploadBytes(),
		ttl:       time.Duration(cfg.Datasets.TTLMinutes) * time.Minute,
		logger:    logger,
		metrics:   m,
	}
}

// UploadResult describes a stored dataset right after parsing.
type UploadResult struct {
	DatasetID   string              `json:"dataset_id"`
	FileName    string              `json:"file_name"`
	Headers     []string            `json:"headers"`
	RowCount    int                 `json:"row_count"`
	RowsSkipped int                 `json:"rows_skipped"`
	SkipSamples []string            `json:"skip_samples,omitempty"`
	UsedMapping ingest.FieldMapping `json:"used_mapping"`
	Fingerprint string              `json:"fingerprint,omitempty"`
	SampleRows  [][]string          `json:"sample_rows,omitempty"`
	ExpiresAt   time.Time           `json:"expires_at"`
}

// UploadDataset validates, parses and stores one uploaded file. A nil mapping
// means columns are resolved by header suggestion.
func (s *Service) UploadDataset(ctx context.Context, fileName string, data []byte, mapping *ingest.FieldMapping) (*UploadResult, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")

	if err := ingest.ValidateFile(fileName, int64(len(data)), s.maxUpload); err != nil {
		s.metrics.UploadsTotal.WithLabelValues(format, "rejected").Inc()
		return nil, err
	}

	ds, usedMapping, fileConfig, err := s.parseUpload(fileName, data, mapping)
	if err != nil {
		s.metrics.UploadsTotal.WithLabelValues(format, "failed").Inc()
		return nil, err
	}

	var fingerprint string
	var sampleRows [][]string
	if fileConfig != nil {
		fingerprint = fileConfig.Fingerprint
		sampleRows = fileConfig.SampleRows
	}

	now := time.Now()
	stored := &StoredDataset{
		ID:          uuid.New().String(),
		FileName:    fileName,
		Headers:     ds.Headers,
		Rows:        ds.Rows,
		RowsSkipped: ds.RowsSkipped,
		Fingerprint: fingerprint,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := s.store.Put(ctx, stored); err != nil {
		return nil, fmt.Errorf("failed to store dataset: %w", err)
	}

	s.metrics.UploadsTotal.WithLabelValues(format, "ok").Inc()
	s.metrics.RowsParsedTotal.Add(float64(len(ds.Rows)))
	s.metrics.RowsSkippedTotal.Add(float64(ds.RowsSkipped))
	if count, err := s.store.Count(ctx); err == nil {
		s.metrics.DatasetsActive.Set(float64(count))
	}

	s.logger.Info("dataset uploaded",
		slog.String("dataset_id", stored.ID),
		slog.String("file_name", fileName),
		slog.Int("rows", len(ds.Rows)),
		slog.Int("rows_skipped", ds.RowsSkipped))

	return &UploadResult{
		DatasetID:   stored.ID,
		FileName:    fileName,
		Headers:     ds.Headers,
		RowCount:    len(ds.Rows),
		RowsSkipped: ds.RowsSkipped,
		SkipSamples: ds.SkipSamples,
		UsedMapping: usedMapping,
		Fingerprint: fingerprint,
		SampleRows:  sampleRows,
		ExpiresAt:   stored.ExpiresAt,
	}, nil
}

func (s *Service) parseUpload(fileName string, data []byte, mapping *ingest.FieldMapping) (*ingest.Dataset, ingest.FieldMapping, *ingest.FileConfig, error) {
	if ingest.IsExcel(fileName) {
		used := ingest.FieldMapping{}
		if mapping != nil {
			used = *mapping
		} else {
			headers, err := ingest.ExcelHeaders(data)
			if err != nil {
				return nil, used, nil, err
			}
			used = ingest.SuggestMapping(headers)
		}
		ds, err := ingest.ParseExcel(data, used)
		return ds, used, nil, err
	}

	fileConfig, err := ingest.DetectConfig(data)
	if err != nil {
		return nil, ingest.FieldMapping{}, nil, err
	}

	// Canonical headers need no mapping step at all.
	if mapping == nil && fileConfig.SkipLines == 0 && ingest.HasCanonicalHeaders(fileConfig.Headers) {
		ds, err := ingest.ParseCanonicalCSV(data)
		if err != nil {
			return nil, ingest.FieldMapping{}, nil, err
		}
		ds.Headers = fileConfig.Headers
		return ds, ingest.SuggestMapping(fileConfig.Headers), fileConfig, nil
	}

	used := ingest.FieldMapping{}
	if mapping != nil {
		used = *mapping
	} else {
		used = ingest.SuggestMapping(fileConfig.Headers)
	}

	ds, err := ingest.ParseCSV(data, fileConfig, used)
	if err != nil {
		return nil, used, nil, err
	}
	return ds, used, fileConfig, nil
}

// GetDataset returns a stored dataset, counting expired lookups.
func (s *Service) GetDataset(ctx context.Context, id string) (*StoredDataset, error) {
	ds, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrDatasetExpired) {
		s.metrics.DatasetsExpired.Inc()
	}
	return ds, err
}

// DeleteDataset removes a dataset before its TTL.
func (s *Service) DeleteDataset(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// OptimizeParams carries per-run overrides; nil fields fall back to the
// configured defaults.
type OptimizeParams struct {
	TargetAverage float64  `json:"target_average"`
	LowerBound    *float64 `json:"lower_bound,omitempty"`
	UpperBound    *float64 `json:"upper_bound,omitempty"`
	InterestRate  *float64 `json:"interest_rate,omitempty"`
	Epsilon       *float64 `json:"epsilon,omitempty"`
}

func (p OptimizeParams) resolve(defaults config.OptimizerConfig) (lower, upper, rate, eps float64) {
	lower, upper = defaults.LowerBound, defaults.UpperBound
	rate, eps = defaults.InterestRate, defaults.Epsilon
	if p.LowerBound != nil {
		lower = *p.LowerBound
	}
	if p.UpperBound != nil {
		upper = *p.UpperBound
	}
	if p.InterestRate != nil {
		rate = *p.InterestRate
	}
	if p.Epsilon != nil {
		eps = *p.Epsilon
	}
	return lower, upper, rate, eps
}

// OptimizeResult pairs the allocation with the extraction stats that produced
// its term groups.
type OptimizeResult struct {
	DatasetID  string                  `json:"dataset_id,omitempty"`
	Extraction *terms.ExtractionResult `json:"extraction"`
	Allocation *terms.Allocation       `json:"allocation"`
}

// Optimize extracts term groups from a stored dataset and runs the allocator.
func (s *Service) Optimize(ctx context.Context, datasetID string, params OptimizeParams) (*OptimizeResult, error) {
	ds, err := s.GetDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	extraction, err := s.extractor.Extract(sourceRows(ds.Rows))
	if err != nil {
		s.metrics.ObserveOptimization("rejected", time.Since(start))
		return nil, err
	}
	s.metrics.ExcludedRowsTotal.Add(float64(extraction.ExcludedRows))

	lower, upper, rate, eps := params.resolve(s.defaults)
	allocation, err := s.optimizer.Optimize(terms.OptimizationRequest{
		Groups:        extraction.Groups,
		TargetAverage: params.TargetAverage,
		LowerBound:    lower,
		UpperBound:    upper,
		InterestRate:  rate,
		Epsilon:       eps,
	})
	if err != nil {
		s.metrics.ObserveOptimization("rejected", time.Since(start))
		return nil, err
	}

	outcome := "feasible"
	if !allocation.Feasible {
		outcome = "infeasible"
	}
	s.metrics.ObserveOptimization(outcome, time.Since(start))

	s.logger.Info("optimization run",
		slog.String("dataset_id", datasetID),
		slog.Float64("target_average", params.TargetAverage),
		slog.Float64("achieved_average", allocation.AchievedAverage),
		slog.Bool("feasible", allocation.Feasible),
		slog.Int("groups", len(allocation.Rows)),
		slog.Int("excluded_rows", extraction.ExcludedRows))

	return &OptimizeResult{
		DatasetID:  datasetID,
		Extraction: extraction,
		Allocation: allocation,
	}, nil
}

// OptimizeGroups runs the allocator over caller-supplied term groups without
// any stored dataset.
func (s *Service) OptimizeGroups(ctx context.Context, req terms.OptimizationRequest) (*terms.Allocation, error) {
	start := time.Now()

	allocation, err := s.optimizer.Optimize(req)
	if err != nil {
		s.metrics.ObserveOptimization("rejected", time.Since(start))
		return nil, err
	}

	outcome := "feasible"
	if !allocation.Feasible {
		outcome = "infeasible"
	}
	s.metrics.ObserveOptimization(outcome, time.Since(start))
	return allocation, nil
}

// ExportResult is a rendered download.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Export runs an optimization and renders the allocation in the requested
// format.
func (s *Service) Export(ctx context.Context, datasetID string, params OptimizeParams, format export.Format) (*ExportResult, error) {
	result, err := s.Optimize(ctx, datasetID, params)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch format {
	case export.FormatXLSX:
		_, _, rate, _ := params.resolve(s.defaults)
		data, err = export.XLSX(result.Allocation, rate)
	default:
		data, err = export.CSV(result.Allocation)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.ExportsTotal.WithLabelValues(string(format)).Inc()

	// Short dataset id keeps the download name readable.
	shortID := datasetID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	return &ExportResult{
		FileName:    fmt.Sprintf("payment-terms-%s%s", shortID, format.Extension()),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}

// SweepExpired drops datasets past their TTL and refreshes the active gauge.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	removed, err := s.store.SweepExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.metrics.DatasetsSwept.Add(float64(removed))
		s.logger.Info("dataset sweep", slog.Int("removed", removed))
	}
	if count, err := s.store.Count(ctx); err == nil {
		s.metrics.DatasetsActive.Set(float64(count))
	}
	return removed, nil
}

func sourceRows(rows []ingest.Row) []terms.SourceRow {
	out := make([]terms.SourceRow, len(rows))
	for i, r := range rows {
		out[i] = terms.SourceRow{
			TermDescription: r.TermText,
			Amount:          r.Amount,
		}
	}
	return out
}
