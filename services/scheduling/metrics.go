package scheduling

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebook_commits_total",
		Help: "Commit attempts by outcome",
	}, []string{"outcome"})

	metricAvailabilityChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebook_availability_checks_total",
		Help: "Single-slot availability checks by result",
	}, []string{"result"})

	metricConfirmationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebook_confirmation_failures_total",
		Help: "Confirmations that could not be delivered",
	})
)
