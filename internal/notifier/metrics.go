package notifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ondeath_publish_total",
			Help: "Events handed to subscribers by event and result (sent, error, panic, cancelled).",
		},
		[]string{"event", "result"},
	)
	webhookSendTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ondeath_webhook_send_total",
			Help: "Webhook events by outcome (success, error, dropped, filtered). Each event is posted at most once.",
		},
		[]string{"status"},
	)
	webhookSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ondeath_webhook_send_duration_seconds",
			Help:    "Duration of webhook event HTTP requests.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)
	natsPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ondeath_nats_publish_total",
			Help: "Total NATS event publishes by status.",
		},
		[]string{"status"},
	)
)
