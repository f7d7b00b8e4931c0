// Package scheduler drives the fixed-interval tick: refresh the calendar at
// the top of each hour, then evaluate every account.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/killswitch/calendar"
	"github.com/rustyeddy/killswitch/internal/metrics"
	"github.com/rustyeddy/killswitch/orchestrator"
)

const DefaultInterval = 50 * time.Second

// Runner evaluates all accounts against one table snapshot.
type Runner interface {
	Tick(ctx context.Context, table *calendar.Table, now time.Time) []orchestrator.Outcome
}

// ShouldRefresh reports whether a tick at now must refresh the calendar: the
// UTC minute is zero and no attempt was made earlier in the same hour.
func ShouldRefresh(now, lastAttempt time.Time) bool {
	now = now.UTC()
	if now.Minute() != 0 {
		return false
	}
	if lastAttempt.IsZero() {
		return true
	}
	return !lastAttempt.UTC().Truncate(time.Hour).Equal(now.Truncate(time.Hour))
}

// Loop alternates between idle and a tick. It is not safe for concurrent use;
// Run owns it.
type Loop struct {
	Interval time.Duration
	Clock    Clock
	Store    *calendar.Store
	Source   calendar.Source
	Runner   Runner
	Metrics  *metrics.Metrics
	Log      *zap.Logger

	lastAttempt time.Time
}

func New(store *calendar.Store, src calendar.Source, runner Runner, log *zap.Logger) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{
		Interval: DefaultInterval,
		Clock:    RealClock,
		Store:    store,
		Source:   src,
		Runner:   runner,
		Log:      log,
	}
}

// Prime performs the startup fetch. There is no previous table to fall back
// on, so a failure here is returned for the caller to treat as fatal.
func (l *Loop) Prime(ctx context.Context) error {
	now := l.Clock.Now()
	l.lastAttempt = now
	if _, err := l.refresh(ctx, now); err != nil {
		return fmt.Errorf("initial calendar fetch: %w", err)
	}
	return nil
}

// Tick runs one pass: an optional calendar refresh, then every account.
func (l *Loop) Tick(ctx context.Context) []orchestrator.Outcome {
	start := l.Clock.Now()

	if ShouldRefresh(start, l.lastAttempt) {
		l.lastAttempt = start
		_, _ = l.refresh(ctx, start)
	}

	outs := l.Runner.Tick(ctx, l.Store.Current(), start)
	l.Metrics.ObserveTick(l.Clock.Now().Sub(start))
	return outs
}

func (l *Loop) refresh(ctx context.Context, now time.Time) (*calendar.Table, error) {
	table, err := l.Store.Refresh(ctx, l.Source, now)
	if err != nil {
		l.Log.Error("calendar refresh failed, keeping previous table",
			zap.String("op", "refresh"),
			zap.Int("events", table.Len()),
			zap.Time("fetched_at", table.FetchedAt()),
			zap.Error(err),
		)
		l.Metrics.ObserveRefresh(err, 0, time.Time{})
		return table, err
	}
	l.Log.Info("calendar refreshed", zap.Int("events", table.Len()))
	l.Metrics.ObserveRefresh(nil, table.Len(), table.FetchedAt())
	return table, nil
}

// Run ticks every Interval until ctx is cancelled. Cancellation is only
// observed between ticks.
func (l *Loop) Run(ctx context.Context) error {
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	for {
		l.Tick(ctx)
		if ctx.Err() != nil {
			l.Log.Info("scheduler stopped")
			return nil
		}

		next := l.Clock.Now().Add(interval)
		l.Log.Info("next run", zap.Time("at", next))

		select {
		case <-ctx.Done():
			l.Log.Info("scheduler stopped")
			return nil
		case <-l.Clock.After(interval):
		}
	}
}
