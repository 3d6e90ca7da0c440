package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IntentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool", Name: "intents_total", Help: "Inbound text lines by classified intent"},
		[]string{"intent"},
	)
	ReservationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool", Name: "reservations_created_total", Help: "Reservations persisted as WAITING"},
		[]string{"ride_type"},
	)
	ReservationsCancelled = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "reservations_cancelled_total", Help: "Waiting reservations cancelled by their owner"})

	MatchAttempts  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "match_attempts_total", Help: "Matching runs for SHARED reservations"})
	GroupsFormed   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "groups_formed_total", Help: "Match groups formed"})
	MatchConflicts = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "match_conflicts_total", Help: "Group claims lost to a concurrent match"})
	MatchFailures  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "match_failures_total", Help: "Matching runs abandoned on store errors"})
	GroupSize      = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "carpool",
		Name:      "group_size",
		Help:      "Members per formed group",
		Buckets:   []float64{2, 3, 4, 5, 6},
	})
	MatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "carpool", Name: "match_latency_seconds", Help: "Matching run latency"})

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool", Name: "notifications_failed_total", Help: "Group notifications that could not be delivered"},
		[]string{"dispatcher"},
	)
)
