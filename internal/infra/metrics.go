package infra

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arena_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	resultsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_results_created_total",
		Help: "Results written to the ledger, by whether they were verified on create.",
	}, []string{"verified"})

	resultAdminUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_result_admin_updates_total",
		Help: "Admin updates by outcome (applied, idempotent, rejected).",
	}, []string{"outcome"})

	scoreRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_score_rejections_total",
		Help: "Scores rejected by validation, by reason.",
	}, []string{"reason"})

	outboxPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_outbox_published_total",
		Help: "Outbox events relayed to Kafka, by status.",
	}, []string{"status"})

	outboxBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_outbox_backlog",
		Help: "Outbox events waiting to be relayed.",
	})

	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_ws_connections",
		Help: "Open leaderboard websocket connections.",
	})
)

// ObserveHTTPRequest records an HTTP request metric.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveResultCreated counts a new ledger entry.
func ObserveResultCreated(verified bool) {
	resultsCreated.WithLabelValues(strconv.FormatBool(verified)).Inc()
}

// ObserveAdminUpdate counts an admin update outcome.
func ObserveAdminUpdate(outcome string) {
	resultAdminUpdates.WithLabelValues(outcome).Inc()
}

// ObserveScoreRejection counts a rejected score by reason.
func ObserveScoreRejection(reason string) {
	scoreRejections.WithLabelValues(reason).Inc()
}

// SetOutboxBacklog records the number of unrelayed outbox events.
func SetOutboxBacklog(n int64) {
	outboxBacklog.Set(float64(n))
}

// ObserveOutboxPublish counts a relayed (or failed) outbox event.
func ObserveOutboxPublish(status string) {
	outboxPublished.WithLabelValues(status).Inc()
}
