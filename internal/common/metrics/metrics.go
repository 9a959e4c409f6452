package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_messages_processed_total",
			Help: "Total number of inbound messages processed, by resolved intent",
		},
		[]string{"intent"},
	)

	PipelineFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_pipeline_failures_total",
			Help: "Total number of pipeline stage failures recovered into degraded replies",
		},
		[]string{"stage", "error_code"},
	)

	FallbackOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_fallback_outcomes_total",
			Help: "Generative fallback outcomes by terminal state",
		},
		[]string{"state"},
	)

	MessageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "bot_message_duration_seconds",
			Help: "Duration of end-to-end message processing in seconds",
		},
		[]string{"intent"},
	)
)
