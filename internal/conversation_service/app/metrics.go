package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "conversation_engine"

var (
	inboundEventsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "inbound_events_total",
			Help:      "Total number of parsed webhook events by kind.",
		},
		[]string{"kind"}, // message, status, unrecognized
	)

	ingestOutcomesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ingested_messages_total",
			Help:      "Total number of inbound messages by ingest outcome.",
		},
		[]string{"outcome"}, // stored, duplicate, error
	)

	ingestDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "ingest_duration_seconds",
			Help:      "Duration of inbound event ingestion.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	statusUpdatesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "status_updates_total",
			Help:      "Total number of delivery status updates by result.",
		},
		[]string{"result"}, // applied, stale, pending, error
	)

	pendingStatusCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pending_status_total",
			Help:      "Parked status callbacks by final outcome.",
		},
		[]string{"outcome"}, // applied, stale, expired, evicted, exhausted
	)

	pendingStatusGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pending_status_entries",
			Help:      "Provider message ids with parked status callbacks.",
		},
	)

	outboundSendsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "outbound_replies_total",
			Help:      "Total number of operator replies by result.",
		},
		[]string{"result"}, // sent, send_failed, record_failed, duplicate_id
	)

	notificationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "notifications_total",
			Help:      "Total number of push notification attempts.",
		},
		[]string{"type", "result"}, // type: chat, order; result: sent, no_token, skipped, failed
	)

	eventPublishErrorsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "event_publish_errors_total",
			Help:      "Post-commit events that could not be published.",
		},
		[]string{"subject"},
	)
)
