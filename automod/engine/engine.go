package engine

import (
	"log/slog"

	"github.com/castmod/castmod/automod/cachestore"
	"github.com/castmod/castmod/automod/countstore"
	"github.com/castmod/castmod/automod/modlog"
)

// runtime for evaluating channel rules against casts, dispatching moderation actions, and recording decisions.
//
// Platform and Log must be set. Cohosts is required by channels using cohost conditions; Counters by channels with
// a ban threshold. Cache is optional.
type Engine struct {
	Logger   *slog.Logger
	Platform Platform
	Cohosts  CohostLookup
	Log      modlog.Log
	Counters countstore.CountStore
	Cache    cachestore.CacheStore
	// evaluate and log decisions, but take no platform actions and record nothing
	ReadOnly bool
}

func (eng *Engine) logger() *slog.Logger {
	if eng.Logger == nil {
		return slog.Default()
	}
	return eng.Logger
}
