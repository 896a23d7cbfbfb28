package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "holograma",
			Subsystem: "articles",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "holograma",
			Subsystem: "articles",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "holograma",
			Subsystem: "media",
			Name:      "uploads_total",
			Help:      "Media uploads by backend, kind and result",
		},
		[]string{"backend", "kind", "status"},
	)

	UploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "holograma",
			Subsystem: "media",
			Name:      "upload_bytes_total",
			Help:      "Bytes stored by successful uploads",
		},
		[]string{"backend"},
	)

	UploadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "holograma",
			Subsystem: "media",
			Name:      "upload_duration_seconds",
			Help:      "Upload duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 15},
		},
		[]string{"backend"},
	)

	CommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "holograma",
			Subsystem: "media",
			Name:      "commits_total",
			Help:      "Edit session commits by result",
		},
		[]string{"status"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "holograma",
			Subsystem: "media",
			Name:      "active_sessions",
			Help:      "Open edit sessions",
		},
	)

	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "holograma",
			Subsystem: "outbox",
			Name:      "events_total",
			Help:      "Outbox events handled by the publisher",
		},
		[]string{"status"},
	)
)

func RecordRequest(method, route, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(durationSec)
}

func RecordUpload(backend, kind string, err error, bytes int, durationSec float64) {
	UploadDuration.WithLabelValues(backend).Observe(durationSec)
	if err != nil {
		UploadsTotal.WithLabelValues(backend, kind, "error").Inc()
		return
	}
	UploadsTotal.WithLabelValues(backend, kind, "success").Inc()
	UploadBytesTotal.WithLabelValues(backend).Add(float64(bytes))
}

func RecordCommit(err error) {
	if err != nil {
		CommitsTotal.WithLabelValues("error").Inc()
		return
	}
	CommitsTotal.WithLabelValues("success").Inc()
}

func RecordOutbox(err error) {
	if err != nil {
		OutboxPublished.WithLabelValues("error").Inc()
		return
	}
	OutboxPublished.WithLabelValues("success").Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
