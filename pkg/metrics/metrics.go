package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	RecordsWrittenTotal *prometheus.CounterVec
	NumberingFallbacks  prometheus.Counter
	RejectedActions     *prometheus.CounterVec

	MediaRejectedTotal *prometheus.CounterVec
	MediaUploadsTotal  *prometheus.CounterVec
	MediaUploadSeconds prometheus.Histogram

	ActiveSessionsOpened prometheus.Counter
	RateLimited          *prometheus.CounterVec

	AuditEntriesTotal  prometheus.Counter
	AuditBufferDropped prometheus.Counter

	registry *prometheus.Registry
}

// NewCollector registers every metric on a fresh registry, so tests can
// build as many collectors as they like.
func NewCollector(serviceName string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		RecordsWrittenTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "desk",
			Name:      "records_written_total",
			Help:      "Patient records written by form and operation (create, update, delete).",
		}, []string{"form", "operation"}),

		NumberingFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "desk",
			Name:      "numbering_fallbacks_total",
			Help:      "Times the initial numbers were used because the store could not be read.",
		}),

		RejectedActions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "desk",
			Name:      "rejected_actions_total",
			Help:      "Navigation actions rejected by the current form mode.",
		}, []string{"form", "action"}),

		MediaRejectedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "media",
			Name:      "rejected_total",
			Help:      "Attachments refused before upload, by reason.",
		}, []string{"reason"}),

		MediaUploadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "media",
			Name:      "uploads_total",
			Help:      "Uploads to the media host by result.",
		}, []string{"result"}),

		MediaUploadSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "media",
			Name:      "upload_duration_seconds",
			Help:      "Media host upload latency distribution.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		ActiveSessionsOpened: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "auth",
			Name:      "sessions_opened_total",
			Help:      "Operator sessions created by successful logins.",
		}),

		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests refused by the rate limiter, by limiter.",
		}, []string{"limiter"}),

		AuditEntriesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "audit",
			Name:      "entries_total",
			Help:      "Total audit log entries written.",
		}),

		AuditBufferDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "audit",
			Name:      "buffer_dropped_total",
			Help:      "Audit entries dropped due to full buffer. Alert if non-zero.",
		}),
	}
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
