// Package metrics provides Prometheus instrumentation for the scan engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder collects scan metrics onto a Prometheus registry. A nil
// *Recorder is valid and records nothing, so callers never need to guard.
type Recorder struct {
	registry *prometheus.Registry

	scansTotal     *prometheus.CounterVec
	scanDuration   prometheus.Histogram
	sourceDuration *prometheus.HistogramVec
	sourceFailures *prometheus.CounterVec
	overallScore   prometheus.Histogram
}

// Config configures a Recorder.
type Config struct {
	// Namespace prefixes all metric names (default "pubguard").
	Namespace string

	// Registry is the Prometheus registry to use (nil = new registry with
	// the standard Go and process collectors).
	Registry *prometheus.Registry
}

// NewRecorder creates and registers the scan metrics.
func NewRecorder(cfg Config) *Recorder {
	ns := cfg.Namespace
	if ns == "" {
		ns = "pubguard"
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	r := &Recorder{
		registry: registry,
		scansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "scans_total",
			Help:      "Completed scans by traffic light.",
		}, []string{"light"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "scan_duration_seconds",
			Help:      "End-to-end scan duration.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		sourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "source_duration_seconds",
			Help:      "Per-analyzer duration by source and outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"source", "status"}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "source_failures_total",
			Help:      "Analyzer failures by source.",
		}, []string{"source"}),
		overallScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "overall_score",
			Help:      "Distribution of overall risk scores.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
	}

	registry.MustRegister(r.scansTotal, r.scanDuration, r.sourceDuration,
		r.sourceFailures, r.overallScore)
	return r
}

// ScanCompleted records one finished scan.
func (r *Recorder) ScanCompleted(light string, score int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.scansTotal.WithLabelValues(light).Inc()
	r.scanDuration.Observe(elapsed.Seconds())
	r.overallScore.Observe(float64(score))
}

// SourceCompleted records one analyzer run.
func (r *Recorder) SourceCompleted(source, status string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.sourceDuration.WithLabelValues(source, status).Observe(elapsed.Seconds())
	if status == "failed" {
		r.sourceFailures.WithLabelValues(source).Inc()
	}
}

// Handler exposes the registry for scraping.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the underlying Prometheus registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}
