package turn

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebook_turn_transitions_total",
		Help: "Published turn state changes, by new state",
	}, []string{"to"})

	metricEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebook_turn_events_total",
		Help: "Arbiter inputs folded into the turn state, by kind",
	}, []string{"kind"})
)
