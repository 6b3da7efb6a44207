package sweep

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/castmod/castmod/automod/engine"
	"github.com/castmod/castmod/automod/rule"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

// sweep runs one admitted sweep to a terminal state. Per-cast failures are logged and counted; only a failure to
// page the feed or to read the moderation log ends the sweep early.
func (s *Sweeper) sweep(ctx context.Context, ch *rule.Channel) (final Status) {
	ctx, span := tracer.Start(ctx, "Sweep")
	defer span.End()
	span.SetAttributes(attribute.String("channel", ch.ID))

	log := s.logger().With("channel", ch.ID)
	st, _ := s.statuses.Load(ch.ID)
	if st.StartedAt.IsZero() {
		st = Status{ChannelID: ch.ID, State: StateRunning, StartedAt: s.Clock()}
	}

	// a panic in a feed source or log store fails the sweep, instead of the process
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("sweep panic: %v", r)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			final = s.finish(log, st, StateFailed, err)
		}
	}()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return s.finish(log, st, StateFailed, fmt.Errorf("waiting for a sweep slot: %w", err))
	}
	defer s.sem.Release(1)
	sweepsActive.Inc()
	defer sweepsActive.Dec()

	limit := rate.Inf
	if s.opts.PostDelay > 0 {
		limit = rate.Every(s.opts.PostDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	state := StateCompleted
	var sweepErr error
	for casts, err := range s.Source.PageChannelCasts(ctx, ch.ID) {
		if err != nil {
			state, sweepErr = StateFailed, err
			break
		}
		if err := s.sweepPage(ctx, ch, casts, limiter, &st); err != nil {
			state, sweepErr = StateFailed, err
			break
		}
		s.statuses.Store(ch.ID, st)
		log.Debug("swept page", "page", st.Pages, "checked", st.CastsChecked, "processed", st.CastsProcessed)

		// the limit is checked between pages, so the last page may run past it
		if st.CastsChecked >= s.opts.Limit {
			state = StateLimitReached
			break
		}
	}

	if sweepErr != nil {
		span.RecordError(sweepErr)
		span.SetStatus(codes.Error, sweepErr.Error())
	}
	span.SetAttributes(
		attribute.Int("pages", st.Pages),
		attribute.Int("checked", st.CastsChecked),
		attribute.Int("processed", st.CastsProcessed),
	)
	return s.finish(log, st, state, sweepErr)
}

func (s *Sweeper) sweepPage(ctx context.Context, ch *rule.Channel, casts []*engine.Cast, limiter *rate.Limiter, st *Status) error {
	ctx, span := tracer.Start(ctx, "SweepPage")
	defer span.End()

	st.Pages++
	st.CastsChecked += len(casts)
	castsChecked.Add(float64(len(casts)))

	hashes := make([]string, len(casts))
	for i, c := range casts {
		hashes[i] = c.Hash
		// casts with unparseable timestamps still get checked
		if ts, err := c.CreatedAt(); err == nil && (st.ReachedBack == nil || ts.Before(*st.ReachedBack)) {
			st.ReachedBack = &ts
		}
	}
	done, err := s.Engine.Log.Processed(ctx, ch.ID, hashes)
	if err != nil {
		return fmt.Errorf("reading moderation log: %w", err)
	}

	log := s.logger().With("channel", ch.ID)
	for _, cast := range casts {
		if done[cast.Hash] {
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		res, err := s.Engine.ProcessCast(ctx, ch, cast)
		if err != nil {
			log.Error("failed to process cast", "cast", cast.Hash, "err", err)
			st.Errors++
			continue
		}
		st.CastsProcessed++
		castsProcessed.Inc()
		if res.Match != nil {
			st.CastsActioned++
		}
	}
	span.SetAttributes(attribute.Int("casts", len(casts)), attribute.Int("skipped", len(done)))
	return nil
}

func (s *Sweeper) finish(log *slog.Logger, st Status, state State, err error) Status {
	now := s.Clock()
	st.State = state
	st.FinishedAt = &now
	if err != nil {
		st.Error = err.Error()
	}
	s.statuses.Store(st.ChannelID, st)
	sweepsFinished.WithLabelValues(string(state)).Inc()

	args := []any{
		"state", state,
		"pages", st.Pages,
		"checked", st.CastsChecked,
		"processed", st.CastsProcessed,
		"actioned", st.CastsActioned,
		"errors", st.Errors,
		"duration", now.Sub(st.StartedAt),
	}
	if st.ReachedBack != nil {
		args = append(args, "reachedBack", *st.ReachedBack)
	}
	if err != nil {
		log.Error("sweep finished", append(args, "err", err)...)
	} else {
		log.Info("sweep finished", args...)
	}
	return st
}
