// Package metrics declares the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MentionsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockpulse_mentions_ingested_total",
			Help: "Mentions stored, by source",
		},
		[]string{"source"},
	)
	MentionsDuplicate = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stockpulse_mentions_duplicate_total",
			Help: "Mentions skipped because the (source_id, ticker) pair was already stored",
		},
	)
	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockpulse_anomalies_detected_total",
			Help: "Anomalies flagged by the detector, by direction",
		},
		[]string{"direction"},
	)
	TelegramMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockpulse_telegram_messages_total",
			Help: "Telegram notifications sent, by type",
		},
		[]string{"type"},
	)
	PollCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stockpulse_poll_cycle_duration_seconds",
			Help:    "Duration of one full mention polling cycle",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	PollErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockpulse_poll_errors_total",
			Help: "Upstream fetch failures, by source",
		},
		[]string{"source"},
	)
	PricesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stockpulse_prices_fetched_total",
			Help: "Price quotes fetched and stored",
		},
	)
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockpulse_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"endpoint", "method", "status"},
	)
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stockpulse_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"endpoint"},
	)
)
