package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var castProcessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "castmod_cast_duration_sec",
	Help: "Total duration of processing a single cast",
})

var castProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "castmod_casts_processed",
	Help: "Number of casts processed, by outcome",
}, []string{"outcome"})

var ruleEvalCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "castmod_ruleset_evaluations",
	Help: "Number of rule set evaluations",
}, []string{"channel"})

var ruleMatchCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "castmod_ruleset_matches",
	Help: "Number of rule set evaluations which fired",
}, []string{"channel"})

var ruleErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "castmod_ruleset_errors",
	Help: "Number of rule set evaluations which failed",
}, []string{"channel"})

var actionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "castmod_actions",
	Help: "Number of moderation actions carried out",
}, []string{"type"})

var actionErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "castmod_action_errors",
	Help: "Number of moderation actions which failed",
}, []string{"type"})

var cohostFetches = promauto.NewCounter(prometheus.CounterOpts{
	Name: "castmod_cohost_fetches",
	Help: "Number of cohost lookups (API calls)",
})
