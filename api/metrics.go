// Package api provides Prometheus metrics for the Parquet block writer.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the writer. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Ingest metrics
	RecordsTotal   prometheus.Counter
	ProducerErrors prometheus.Counter
	BatchesTotal   prometheus.Counter
	BatchSize      prometheus.Histogram

	// Conversion metrics
	ConversionsTotal  prometheus.Counter
	ConversionLatency prometheus.Histogram

	// Write metrics
	RowGroupsWritten prometheus.Counter
	RowsWritten      prometheus.Counter
	WriteLatency     prometheus.Histogram
	RunDuration      prometheus.Histogram
}

// NewMetrics creates metrics in the given namespace on a fresh registry.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RecordsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Total number of records pushed into batches",
		}),
		ProducerErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "producer_errors_total",
			Help:      "Total number of producer or push failures",
		}),
		BatchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of batches collected",
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of records per batch",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
		}),

		ConversionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Total number of batches converted to row groups",
		}),
		ConversionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_latency_seconds",
			Help:      "Batch sort and freeze latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),

		RowGroupsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "row_groups_written_total",
			Help:      "Total number of row groups written",
		}),
		RowsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Total number of rows written",
		}),
		WriteLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "row_group_write_latency_seconds",
			Help:      "Row group encode, compress and write latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "End-to-end pipeline run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordPush records records accepted into a batch.
func (m *Metrics) RecordPush(n int) {
	if m == nil {
		return
	}
	m.RecordsTotal.Add(float64(n))
}

// RecordProducerError records a producer or push failure.
func (m *Metrics) RecordProducerError() {
	if m == nil {
		return
	}
	m.ProducerErrors.Inc()
}

// RecordBatch records a collected batch.
func (m *Metrics) RecordBatch(size int) {
	if m == nil {
		return
	}
	m.BatchesTotal.Inc()
	m.BatchSize.Observe(float64(size))
}

// RecordConversion records a batch to row group conversion.
func (m *Metrics) RecordConversion(rows int, duration time.Duration) {
	if m == nil {
		return
	}
	m.ConversionsTotal.Inc()
	m.ConversionLatency.Observe(duration.Seconds())
}

// RecordRowGroupWrite records one row group appended to the file.
func (m *Metrics) RecordRowGroupWrite(rows int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RowGroupsWritten.Inc()
	m.RowsWritten.Add(float64(rows))
	m.WriteLatency.Observe(duration.Seconds())
}

// RecordRun records a finished pipeline run.
func (m *Metrics) RecordRun(duration time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(duration.Seconds())
}

// MetricsServer runs an HTTP server exposing /metrics endpoint.
type MetricsServer struct {
	server *http.Server
}

// NewMetricsServer creates a metrics server on the given address serving
// the metrics' registry.
func NewMetricsServer(addr string, m *Metrics) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &MetricsServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler returns the server's HTTP handler.
func (s *MetricsServer) Handler() http.Handler { return s.server.Handler }

// Start starts the metrics server (blocking).
func (s *MetricsServer) Start() error {
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// StartAsync binds the address and serves in a goroutine, so bind errors
// are reported to the caller.
func (s *MetricsServer) StartAsync() error {
	lis, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	go func() {
		_ = s.server.Serve(lis)
	}()
	return nil
}

// Stop gracefully stops the metrics server.
func (s *MetricsServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
