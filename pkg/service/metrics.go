package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// runsTotal counts finished runs by final status.
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agendaflow_runs_total",
			Help: "Total number of runs that reached a final status",
		},
		[]string{"status"},
	)

	// messagesSentTotal counts delivered messages by kind.
	messagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agendaflow_messages_sent_total",
			Help: "Total number of request and confirmation messages delivered",
		},
		[]string{"kind"},
	)

	// deliveryFailuresTotal counts messages that could not be delivered.
	deliveryFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agendaflow_delivery_failures_total",
			Help: "Total number of messages that failed to be delivered",
		},
		[]string{"kind"},
	)

	// runDurationSeconds records how long runs take from claim to release.
	runDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agendaflow_run_duration_seconds",
			Help:    "Duration of runs from start to final status",
			Buckets: []float64{0.1, 1, 5, 10, 20, 30, 60, 120},
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(runsTotal, messagesSentTotal, deliveryFailuresTotal, runDurationSeconds)
}
