package notifiers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch outcomes.
const (
	outcomeSent          = "sent"
	outcomeFailed        = "failed"
	outcomeOutsidePeriod = "outside_period"
	outcomeRateLimited   = "rate_limited"
	outcomeUnknownType   = "unknown_type"
)

var (
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "windowed_notifier_dispatch_total",
			Help: "Total notification dispatch attempts by type and outcome.",
		},
		[]string{"type", "outcome"},
	)
	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "windowed_notifier_send_duration_seconds",
			Help:    "Duration of channel sends.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"type"},
	)
)
