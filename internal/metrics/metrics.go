package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Conversion outcomes used as the counter label.
const (
	OutcomeSuccess    = "success"
	OutcomeRejected   = "rejected"
	OutcomeToolFailed = "tool_failed"
	OutcomeInternal   = "internal_error"
)

// Recorder owns the process metrics registry. All methods tolerate a nil
// receiver so callers never need to guard instrumentation sites.
type Recorder struct {
	registry *prometheus.Registry

	conversions        *prometheus.CounterVec
	conversionDuration prometheus.Histogram
	stepDuration       *prometheus.HistogramVec
	uploadBytes        prometheus.Histogram
	activeSessions     prometheus.Gauge
	sessionsSwept      prometheus.Counter
}

// NewRecorder builds a Recorder backed by its own registry, keeping the
// default global registry untouched.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	r := &Recorder{
		registry: registry,
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carousel_conversions_total",
			Help: "Conversion requests by outcome.",
		}, []string{"outcome"}),
		conversionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "carousel_conversion_seconds",
			Help:    "End-to-end conversion request wall time.",
			Buckets: []float64{1, 2.5, 5, 10, 30, 60, 120, 240},
		}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "carousel_conversion_step_seconds",
			Help:    "Wall time per conversion pipeline step.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"step"}),
		uploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "carousel_upload_bytes",
			Help:    "Size of accepted presentation uploads.",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 8),
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "carousel_active_sessions",
			Help: "Sessions currently indexed.",
		}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carousel_sessions_swept_total",
			Help: "Sessions removed by expiry sweeps.",
		}),
	}

	registry.MustRegister(
		r.conversions,
		r.conversionDuration,
		r.stepDuration,
		r.uploadBytes,
		r.activeSessions,
		r.sessionsSwept,
	)
	return r
}

// Handler serves the registry in Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordConversion counts one finished conversion request and observes its
// total wall time.
func (r *Recorder) RecordConversion(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.conversions.WithLabelValues(outcome).Inc()
	r.conversionDuration.Observe(elapsed.Seconds())
}

// RecordStep observes one pipeline step's wall time.
func (r *Recorder) RecordStep(step string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.stepDuration.WithLabelValues(step).Observe(elapsed.Seconds())
}

// RecordUploadBytes observes the size of an accepted upload.
func (r *Recorder) RecordUploadBytes(n int64) {
	if r == nil || n < 0 {
		return
	}
	r.uploadBytes.Observe(float64(n))
}

// SetActiveSessions updates the live session gauge.
func (r *Recorder) SetActiveSessions(n int) {
	if r == nil {
		return
	}
	r.activeSessions.Set(float64(n))
}

// RecordSwept counts sessions removed by an expiry sweep.
func (r *Recorder) RecordSwept(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.sessionsSwept.Add(float64(n))
}
