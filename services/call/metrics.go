package call

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricActiveCalls = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "voicebook_active_calls",
	Help: "Calls with a live session.",
})
