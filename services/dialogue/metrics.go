package dialogue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebook_dialogue_turns_total",
		Help: "User turns handled, by result",
	}, []string{"result"})

	metricOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebook_dialogue_outcomes_total",
		Help: "Finished dialogues, by terminal state and reason",
	}, []string{"state", "reason"})

	metricLanguageSwitches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebook_language_switches_total",
		Help: "Mid-call language switches, by new language",
	}, []string{"to"})

	metricPromptFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebook_prompt_fallbacks_total",
		Help: "Prompts served from the static catalogue after the generator failed",
	})
)
