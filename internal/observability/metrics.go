package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 投票结果标签
const (
	VoteAccepted      = "accepted"
	VoteAlreadyVoted  = "already_voted"
	VotePollClosed    = "poll_closed"
	VoteInvalidOption = "invalid_option"
	VoteNotFound      = "not_found"
	VoteError         = "error"
)

type Metrics struct {
	VotesTotal            *prometheus.CounterVec
	RelayPublishFailures  prometheus.Counter
	LiveViewers           prometheus.Gauge
	OutboxDelivered       *prometheus.CounterVec
	ReconcileFixes        prometheus.Counter
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDurationMs *prometheus.HistogramVec
}

// NewMetrics 注册到传入的 Registerer，测试时用独立的 registry
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		VotesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coop_votes_total",
			Help: "Vote cast attempts by result",
		}, []string{"result"}),
		RelayPublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "coop_relay_publish_failures_total",
			Help: "Poll change notifications that failed to publish",
		}),
		LiveViewers: f.NewGauge(prometheus.GaugeOpts{
			Name: "coop_live_viewers",
			Help: "Open websocket connections watching a poll",
		}),
		OutboxDelivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coop_outbox_delivered_total",
			Help: "Outbox events handed to the sender by result",
		}, []string{"result"}),
		ReconcileFixes: f.NewCounter(prometheus.CounterOpts{
			Name: "coop_reconcile_fixes_total",
			Help: "Option vote counters corrected by the reconciler",
		}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coop_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPRequestDurationMs: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coop_http_request_duration_ms",
			Help:    "HTTP request latency in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"method", "route"}),
	}
}
