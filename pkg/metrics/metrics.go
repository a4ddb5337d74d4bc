// Package metrics exposes Prometheus instrumentation for the payables
// optimization service on a dedicated registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "payables"

// Metrics holds all counters and histograms for the service.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	UploadsTotal     *prometheus.CounterVec
	RowsParsedTotal  prometheus.Counter
	RowsSkippedTotal prometheus.Counter

	OptimizationsTotal   *prometheus.CounterVec
	OptimizationDuration prometheus.Histogram
	ExcludedRowsTotal    prometheus.Counter

	ExportsTotal *prometheus.CounterVec

	DatasetsActive  prometheus.Gauge
	DatasetsSwept   prometheus.Counter
	DatasetsExpired prometheus.Counter
}

// New builds a Metrics set on a fresh registry with process and Go runtime
// collectors attached.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by method and route.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "route"}),

		UploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Uploaded files by format and outcome.",
		}, []string{"format", "outcome"}),
		RowsParsedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_parsed_total",
			Help:      "Source rows successfully parsed into vendor records.",
		}),
		RowsSkippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Source rows dropped during parsing.",
		}),

		OptimizationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimizations_total",
			Help:      "Optimization runs by outcome (feasible, infeasible, rejected).",
		}, []string{"outcome"}),
		OptimizationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "optimization_duration_seconds",
			Help:      "End-to-end optimization run duration.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}),
		ExcludedRowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "excluded_rows_total",
			Help:      "Rows excluded during term extraction (no parseable day count).",
		}),

		ExportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Result exports by format.",
		}, []string{"format"}),

		DatasetsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "datasets_active",
			Help:      "Datasets currently held in the store.",
		}),
		DatasetsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datasets_swept_total",
			Help:      "Expired datasets removed by the TTL sweep.",
		}),
		DatasetsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datasets_expired_total",
			Help:      "Dataset lookups rejected because the dataset had expired.",
		}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.UploadsTotal,
		m.RowsParsedTotal,
		m.RowsSkippedTotal,
		m.OptimizationsTotal,
		m.OptimizationDuration,
		m.ExcludedRowsTotal,
		m.ExportsTotal,
		m.DatasetsActive,
		m.DatasetsSwept,
		m.DatasetsExpired,
	)

	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one completed HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveOptimization records one optimization run.
func (m *Metrics) ObserveOptimization(outcome string, duration time.Duration) {
	m.OptimizationsTotal.WithLabelValues(outcome).Inc()
	m.OptimizationDuration.Observe(duration.Seconds())
}
