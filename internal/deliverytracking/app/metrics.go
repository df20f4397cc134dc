package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveryEventsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "delivery_tracking",
			Name:      "events_total",
			Help:      "Total number of delivery events consumed, by outcome.",
		},
		[]string{"event_type", "outcome"}, // outcome: "applied", "duplicate", "unmatched", "error"
	)

	deliveryEventProcessingDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "delivery_tracking",
			Name:      "event_processing_duration_seconds",
			Help:      "Duration of delivery event processing.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
