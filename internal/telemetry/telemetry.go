package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the analysis service on a
// private registry.
type Metrics struct {
	registry           *prometheus.Registry
	jobsReceived       *prometheus.CounterVec
	jobsDropped        *prometheus.CounterVec
	runs               *prometheus.CounterVec
	correctedIntervals prometheus.Counter
	alerts             *prometheus.CounterVec
	runDuration        prometheus.Histogram
	sensitivity        prometheus.Histogram
	ppv                prometheus.Histogram
	storedRecords      prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		jobsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hrv_jobs_received_total",
			Help: "Jobs accepted by an ingest source",
		}, []string{"source"}),
		jobsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hrv_jobs_dropped_total",
			Help: "Jobs dropped before analysis",
		}, []string{"reason"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hrv_runs_total",
			Help: "Pipeline runs by outcome",
		}, []string{"status"}),
		correctedIntervals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hrv_corrected_intervals_total",
			Help: "RR intervals replaced by the artifact corrector",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hrv_alerts_total",
			Help: "Quality alerts raised by rule",
		}, []string{"rule"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hrv_run_duration_seconds",
			Help:    "Wall time of a pipeline run",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		sensitivity: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hrv_detection_sensitivity_pct",
			Help:    "Detection sensitivity against reference annotations",
			Buckets: []float64{50, 80, 90, 95, 98, 99, 99.5, 99.9, 100},
		}),
		ppv: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hrv_detection_ppv_pct",
			Help:    "Detection positive predictive value against reference annotations",
			Buckets: []float64{50, 80, 90, 95, 98, 99, 99.5, 99.9, 100},
		}),
		storedRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hrv_stored_records",
			Help: "Records held in the in-memory result store",
		}),
	}
	registry.MustRegister(
		m.jobsReceived,
		m.jobsDropped,
		m.runs,
		m.correctedIntervals,
		m.alerts,
		m.runDuration,
		m.sensitivity,
		m.ppv,
		m.storedRecords,
	)
	return m
}

// All methods accept a nil receiver so components can run without metrics.

func (m *Metrics) IncJobsReceived(source string) {
	if m == nil {
		return
	}
	m.jobsReceived.WithLabelValues(source).Inc()
}

func (m *Metrics) IncJobsDropped(reason string) {
	if m == nil {
		return
	}
	m.jobsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveRun(status string, d time.Duration, corrected int) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
	m.correctedIntervals.Add(float64(corrected))
}

func (m *Metrics) ObserveMatch(sensitivity, ppv float64) {
	if m == nil {
		return
	}
	m.sensitivity.Observe(sensitivity)
	m.ppv.Observe(ppv)
}

func (m *Metrics) IncAlert(rule string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(rule).Inc()
}

func (m *Metrics) SetStoredRecords(n int) {
	if m == nil {
		return
	}
	m.storedRecords.Set(float64(n))
}

// Handler serves the registry. updateGauges runs before each scrape.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
