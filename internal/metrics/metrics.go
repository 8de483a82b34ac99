package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dispatch loop metrics
	PacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_packets_total",
			Help: "Total number of inbound packets consumed, by terminal outcome",
		},
		[]string{"outcome"}, // outcome: copy, success, failure, retry, invalid, stale, unknown_verb, auth_requeued
	)

	RepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_replies_total",
			Help: "Total number of reply packets published, by reply type",
		},
		[]string{"type"}, // type: copy, success, failure
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "broker_dispatch_duration_seconds",
			Help:    "Duration of a full dispatch step in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"verb"},
	)

	Heartbeats = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broker_consume_heartbeats_total",
			Help: "Total number of inactivity heartbeats on the inbound queue",
		},
	)

	// Reddit client metrics
	RedditHTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_reddit_http_requests_total",
			Help: "Total number of HTTP requests made to the Reddit API",
		},
		[]string{"status"}, // status class: 2xx, 3xx, 4xx, 5xx, error
	)

	RateClockWaits = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "broker_rate_clock_wait_seconds",
			Help:    "Time spent waiting on the inter-request spacing clock",
			Buckets: []float64{0.01, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_token_refreshes_total",
			Help: "Total number of bearer token refresh attempts",
		},
		[]string{"result"}, // result: success, failure
	)

	TokenInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broker_token_invalidations_total",
			Help: "Total number of forced bearer token invalidations after a 401",
		},
	)

	// Response-queue ledger metrics
	LedgerSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broker_ledger_entries",
			Help: "Number of response queues currently tracked in the version ledger",
		},
	)

	LedgerEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broker_ledger_evictions_total",
			Help: "Total number of ledger entries evicted by the hourly sweep",
		},
	)
)
