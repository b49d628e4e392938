package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	downloadsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promptd",
		Subsystem: "manager",
		Name:      "downloads_total",
		Help:      "Finished model downloads by result.",
	}, []string{"result"})
	evictionsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promptd",
		Subsystem: "manager",
		Name:      "evictions_total",
		Help:      "Inference sessions released, by reason.",
	}, []string{"reason"})
	completionsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promptd",
		Subsystem: "manager",
		Name:      "completions_total",
		Help:      "Completion requests by result.",
	}, []string{"result"})
	stateGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "promptd",
		Subsystem: "manager",
		Name:      "state",
		Help:      "1 for the current lifecycle state of each model, 0 otherwise.",
	}, []string{"model", "state"})
)

func init() {
	prometheus.MustRegister(downloadsCounter, evictionsCounter, completionsCounter, stateGauge)
}

func observeState(model string, s State) {
	for _, st := range allStates {
		v := 0.0
		if st == s {
			v = 1
		}
		stateGauge.WithLabelValues(model, string(st)).Set(v)
	}
}
