// Package sweep retroactively applies a channel's current rules to its recent casts.
//
// A sweep pages through the channel feed oldest page first, skips casts the moderation log already has, and runs
// the rest through the engine one at a time with a delay between casts. At most one sweep per channel is admitted
// within a time window, using an advisory marker rather than a lock.
package sweep

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/castmod/castmod/automod/engine"
	"github.com/castmod/castmod/automod/markerstore"
	"github.com/castmod/castmod/automod/rule"

	"github.com/puzpuzpuz/xsync/v4"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/semaphore"
)

type State string

const (
	StateIdle         State = "idle"
	StateRunning      State = "running"
	StateCompleted    State = "completed"
	StateLimitReached State = "limit_reached"
	StateFailed       State = "failed"
)

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateLimitReached || s == StateFailed
}

const (
	MessageStarted       = "Sweeping! This will take a while. Monitor progress in the logs."
	MessageAlreadyActive = "Sweep already in progress. Hang tight."
)

// ErrSweepActive is returned by Run when the channel's sweep marker is still live.
var ErrSweepActive = errors.New("sweep already in progress")

var tracer = otel.Tracer("sweep")

// Source pages through a channel's casts. Sequences restart from the first page; a yielded error ends the sequence.
type Source interface {
	PageChannelCasts(ctx context.Context, channelID string) iter.Seq2[[]*engine.Cast, error]
}

type Options struct {
	// casts checked per sweep, counted in whole pages
	Limit int
	// minimum gap between the starts of consecutive processed casts; time spent processing a cast counts towards it
	PostDelay time.Duration
	// sweeps running at once, across all channels
	MaxConcurrent int
}

func DefaultOptions() *Options {
	return &Options{
		Limit:         500,
		PostDelay:     500 * time.Millisecond,
		MaxConcurrent: 10,
	}
}

// Status is a snapshot of the most recent sweep of one channel run by this process.
type Status struct {
	ChannelID      string     `json:"channelId"`
	State          State      `json:"state"`
	StartedAt      time.Time  `json:"startedAt"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
	Pages          int        `json:"pages"`
	CastsChecked   int        `json:"castsChecked"`
	CastsProcessed int        `json:"castsProcessed"`
	CastsActioned  int        `json:"castsActioned"`
	Errors         int        `json:"errors"`
	// timestamp of the oldest cast checked so far
	ReachedBack *time.Time `json:"reachedBack,omitempty"`
	Error       string     `json:"error,omitempty"`
}

type TriggerResult struct {
	Started bool   `json:"started"`
	Active  bool   `json:"isSweepActive"`
	Message string `json:"message"`
}

// Sweeper admits and runs sweeps. Triggered sweeps run detached from the triggering request, and are tracked so
// Shutdown can wait for them.
type Sweeper struct {
	Engine  *engine.Engine
	Source  Source
	Markers markerstore.MarkerStore
	Logger  *slog.Logger
	Clock   func() time.Time

	opts     Options
	sem      *semaphore.Weighted
	statuses *xsync.Map[string, Status]
	wg       sync.WaitGroup
}

func NewSweeper(eng *engine.Engine, src Source, markers markerstore.MarkerStore, opts *Options) *Sweeper {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	def := DefaultOptions()
	if o.Limit <= 0 {
		o.Limit = def.Limit
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = def.MaxConcurrent
	}
	return &Sweeper{
		Engine:   eng,
		Source:   src,
		Markers:  markers,
		Clock:    time.Now,
		opts:     o,
		sem:      semaphore.NewWeighted(int64(o.MaxConcurrent)),
		statuses: xsync.NewMap[string, Status](),
	}
}

func (s *Sweeper) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default().With("source", "sweeper")
	}
	return s.Logger
}

func (s *Sweeper) admit(ctx context.Context, channelID string) (bool, error) {
	ok, err := s.Markers.TryMark(ctx, markerstore.SweepKey(channelID), s.Clock())
	if err != nil {
		return false, err
	}
	if !ok {
		sweepsRejected.Inc()
	}
	return ok, nil
}

// Trigger starts a sweep of the channel in the background and returns straight away. A channel with a live sweep
// marker is not an error: the result reports the sweep as already active.
func (s *Sweeper) Trigger(ctx context.Context, ch *rule.Channel) (*TriggerResult, error) {
	ok, err := s.admit(ctx, ch.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &TriggerResult{Active: true, Message: MessageAlreadyActive}, nil
	}

	s.logger().Info("sweeping channel", "channel", ch.ID)
	s.setRunning(ch.ID)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// the request that triggered the sweep is long gone by the time it finishes
		s.sweep(context.WithoutCancel(ctx), ch)
	}()
	return &TriggerResult{Started: true, Active: true, Message: MessageStarted}, nil
}

// Run sweeps the channel in the foreground, under the same admission rules as Trigger.
func (s *Sweeper) Run(ctx context.Context, ch *rule.Channel) (*Status, error) {
	ok, err := s.admit(ctx, ch.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSweepActive
	}
	s.setRunning(ch.ID)
	st := s.sweep(ctx, ch)
	if st.State == StateFailed {
		return &st, errors.New(st.Error)
	}
	return &st, nil
}

// IsActive reports whether the channel's sweep marker is live. The marker may outlive a sweep that crashed.
func (s *Sweeper) IsActive(ctx context.Context, channelID string) (bool, error) {
	_, ok, err := s.Markers.Get(ctx, markerstore.SweepKey(channelID))
	return ok, err
}

// Status returns the last known state of this process's sweep of the channel.
func (s *Sweeper) Status(channelID string) (Status, bool) {
	return s.statuses.Load(channelID)
}

// Shutdown waits for detached sweeps to finish, or for ctx to be done.
func (s *Sweeper) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger().Info("all sweeps finished")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) setRunning(channelID string) {
	s.statuses.Store(channelID, Status{
		ChannelID: channelID,
		State:     StateRunning,
		StartedAt: s.Clock(),
	})
}
