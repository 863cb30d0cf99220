package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	TransitionsAccepted = prometheus.NewCounter(prometheus.CounterOpts{Name: "pipeline_transitions_total", Help: "Committed application stage transitions"})
	TransitionsRejected = prometheus.NewCounter(prometheus.CounterOpts{Name: "pipeline_transition_rejects_total", Help: "Stage transitions rejected by validation"})
	TransitionConflicts = prometheus.NewCounter(prometheus.CounterOpts{Name: "pipeline_transition_conflicts_total", Help: "Stage transitions lost to a concurrent writer"})
	ApplicationsCreated = prometheus.NewCounter(prometheus.CounterOpts{Name: "pipeline_applications_created_total", Help: "Applications opened"})

	ApplicationsByStage = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "pipeline_applications_by_stage", Help: "Applications currently in each stage"}, []string{"stage"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			TransitionsAccepted,
			TransitionsRejected,
			TransitionConflicts,
			ApplicationsCreated,
			ApplicationsByStage,
		)
	})
	return promhttp.Handler()
}
