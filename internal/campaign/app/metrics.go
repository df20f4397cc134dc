package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	campaignDispatchJobsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campaign",
			Name:      "dispatch_jobs_total",
			Help:      "Total number of campaign dispatch jobs consumed.",
		},
		[]string{"status"}, // "success", "error_parsing", "error_dispatch"
	)

	campaignEmailsSentCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campaign",
			Name:      "emails_total",
			Help:      "Total number of campaign emails attempted, by outcome.",
		},
		[]string{"outcome"}, // "sent", "failed"
	)

	campaignDispatchDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "campaign",
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of full campaign dispatch runs.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
)
