package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	natsInboundEmailReceivedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "email_ingestion",
			Name:      "nats_messages_received_total",
			Help:      "Total number of NATS messages received for inbound email.",
		},
		[]string{"subject"},
	)

	inboundEmailProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "email_ingestion",
			Name:      "emails_processed_total",
			Help:      "Total number of inbound emails processed.",
		},
		[]string{"status"}, // "success", "error_parsing", "error_validation", "error_db_save"
	)

	inboundEmailThreadCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "email_ingestion",
			Name:      "thread_resolutions_total",
			Help:      "Total number of thread resolutions by outcome.",
		},
		[]string{"outcome"}, // "matched_existing", "created_new"
	)

	inboundEmailProcessingDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "email_ingestion",
			Name:      "email_processing_duration_seconds",
			Help:      "Duration of inbound email processing.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
