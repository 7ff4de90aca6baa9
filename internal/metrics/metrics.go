package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "adgpt",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "adgpt",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	// Reply generation
	RepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "adgpt",
			Subsystem: "reply",
			Name:      "replies_total",
			Help:      "Replies produced, by answering strategy",
		},
		[]string{"strategy"},
	)

	ReplyFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "adgpt",
			Subsystem: "reply",
			Name:      "failures_total",
			Help:      "Reply attempts where no strategy produced an answer",
		},
	)

	UpstreamDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "adgpt",
			Subsystem: "reply",
			Name:      "upstream_duration_seconds",
			Help:      "Upstream completion call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// Ingestion
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "adgpt",
			Subsystem: "ingestion",
			Name:      "sends_total",
			Help:      "Send-message operations by outcome",
		},
		[]string{"outcome"},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "adgpt",
			Subsystem: "ingestion",
			Name:      "uploads_total",
			Help:      "Total attachment uploads",
		},
		[]string{"status"},
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "adgpt",
			Subsystem: "ingestion",
			Name:      "upload_bytes_total",
			Help:      "Total attachment bytes stored",
		},
	)
)

func RecordRequest(method, route, status string, duration float64) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(duration)
}

func RecordReply(strategy string) {
	RepliesTotal.WithLabelValues(strategy).Inc()
}

func RecordReplyFailure() {
	ReplyFailuresTotal.Inc()
}

func RecordUpstream(duration float64) {
	UpstreamDuration.Observe(duration)
}

func RecordSend(outcome string) {
	MessagesTotal.WithLabelValues(outcome).Inc()
}

func RecordUpload(status string, bytes int64) {
	UploadsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		UploadBytesTotal.Add(float64(bytes))
	}
}
