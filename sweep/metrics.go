package sweep

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sweepsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "castmod_sweeps_finished_total",
	Help: "The total number of sweeps reaching a terminal state",
}, []string{"state"})

var sweepsRejected = promauto.NewCounter(prometheus.CounterOpts{
	Name: "castmod_sweeps_rejected_total",
	Help: "Sweep triggers turned away because the channel already had a live sweep marker",
})

var sweepsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "castmod_sweeps_active",
	Help: "Sweeps currently running",
})

var castsChecked = promauto.NewCounter(prometheus.CounterOpts{
	Name: "castmod_sweep_casts_checked_total",
	Help: "Casts paged through by sweeps, including ones already in the moderation log",
})

var castsProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "castmod_sweep_casts_processed_total",
	Help: "Casts run through the engine by sweeps",
})
