// Package orchestrator applies each account's news policy to the current
// calendar and flattens the account when an impacting event is coming up.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/killswitch/broker"
	"github.com/rustyeddy/killswitch/calendar"
	"github.com/rustyeddy/killswitch/internal/metrics"
	"github.com/rustyeddy/killswitch/journal"
)

// ErrPanic wraps a panic recovered while evaluating one account.
var ErrPanic = errors.New("account evaluation panicked")

// Account pairs a policy with the adapter that acts on it. It is assembled
// once at startup and not modified afterwards.
type Account struct {
	ID       string
	Platform string
	Policy   calendar.Policy
	Broker   broker.Broker
}

// Outcome is what happened to one account in one tick.
type Outcome struct {
	AccountID  string
	Assessment calendar.Assessment
	Acted      bool
	Report     broker.CloseReport
	Err        error
}

type Orchestrator struct {
	Accounts []Account
	Journal  journal.Journal
	Metrics  *metrics.Metrics
	Log      *zap.Logger

	// Parallel evaluates accounts concurrently, at most Limit at a time
	// (0 = no limit).
	Parallel bool
	Limit    int
}

func New(accounts []Account, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		Accounts: accounts,
		Journal:  journal.Nop{},
		Log:      log,
		Parallel: true,
	}
}

// Tick evaluates every account against the same table and the same now.
// Outcomes are returned in account order.
func (o *Orchestrator) Tick(ctx context.Context, table *calendar.Table, now time.Time) []Outcome {
	events := table.Events()
	out := make([]Outcome, len(o.Accounts))
	o.each(func(i int, a Account) {
		out[i] = o.evaluate(ctx, a, events, now)
	})
	return out
}

// Evaluate runs a single account. It never panics and never returns an error
// directly; failures end up in Outcome.Err.
func (o *Orchestrator) Evaluate(ctx context.Context, acct Account, table *calendar.Table, now time.Time) Outcome {
	return o.evaluate(ctx, acct, table.Events(), now)
}

func (o *Orchestrator) evaluate(ctx context.Context, acct Account, events []calendar.Event, now time.Time) (out Outcome) {
	out.AccountID = acct.ID
	log := o.Log.With(zap.String("account", acct.ID), zap.String("platform", acct.Platform))
	defer o.contain(log, &out)

	a := acct.Policy.Assess(events, now)
	out.Assessment = a

	if len(a.PastSymbols) > 0 {
		log.Info("recent news on watched symbols",
			zap.Int("events", len(a.PastEvents)),
			zap.Strings("symbols", a.PastSymbols),
		)
	} else {
		log.Info("no recent news on watched symbols", zap.Duration("past", acct.Policy.Past))
	}
	if len(a.FutureSymbols) == 0 {
		log.Debug("no upcoming news")
		return out
	}

	log.Warn("upcoming news, flattening",
		zap.Int("events", len(a.FutureEvents)),
		zap.Time("next_event", earliest(a.FutureEvents)),
		zap.Strings("symbols", a.FutureSymbols),
	)
	out.Acted = true
	out.Report, out.Err = o.flatten(ctx, acct, log, broker.NewSymbolFilter(a.FutureSymbols...), now)
	return out
}

// Flatten logs in and closes every position on acct matched by filter,
// outside of any calendar decision.
func (o *Orchestrator) Flatten(ctx context.Context, acct Account, filter broker.SymbolFilter) (broker.CloseReport, error) {
	log := o.Log.With(zap.String("account", acct.ID), zap.String("platform", acct.Platform))
	out := Outcome{AccountID: acct.ID, Acted: true}
	func() {
		defer o.contain(log, &out)
		out.Report, out.Err = o.flatten(ctx, acct, log, filter, time.Now())
	}()
	return out.Report, out.Err
}

func (o *Orchestrator) flatten(ctx context.Context, acct Account, log *zap.Logger, filter broker.SymbolFilter, now time.Time) (broker.CloseReport, error) {
	if err := acct.Broker.Login(ctx); err != nil {
		log.Error("login failed", zap.String("op", "login"), zap.Error(err))
		o.Metrics.AccountError(acct.ID, "login")
		o.record(log, journal.NewCloseRecord(now, acct.ID, acct.Platform, filter, broker.CloseReport{}, err))
		return broker.CloseReport{}, err
	}

	report, err := acct.Broker.ClosePositions(ctx, filter)
	o.Metrics.ObserveClose(acct.ID, len(report.Closed), len(report.Failures))
	o.record(log, journal.NewCloseRecord(now, acct.ID, acct.Platform, filter, report, err))
	if err != nil {
		log.Error("close positions failed", zap.String("op", "close"), zap.String("filter", filter.String()), zap.Error(err))
		o.Metrics.AccountError(acct.ID, "close")
		return report, err
	}

	fields := []zap.Field{
		zap.String("filter", filter.String()),
		zap.Int("matched", report.Matched),
		zap.Int("closed", len(report.Closed)),
		zap.Int("failed", len(report.Failures)),
	}
	if report.OK() {
		log.Info("close sweep finished", fields...)
	} else {
		log.Warn("close sweep finished with failures", fields...)
	}
	return report, nil
}

// CheckLogins logs in to every account once and returns the failures keyed
// by account id.
func (o *Orchestrator) CheckLogins(ctx context.Context) map[string]error {
	errs := make([]error, len(o.Accounts))
	o.each(func(i int, a Account) {
		log := o.Log.With(zap.String("account", a.ID), zap.String("platform", a.Platform))
		out := Outcome{AccountID: a.ID}
		func() {
			defer o.contain(log, &out)
			out.Err = a.Broker.Login(ctx)
		}()
		if out.Err != nil {
			log.Error("login check failed", zap.String("op", "login"), zap.Error(out.Err))
			o.Metrics.AccountError(a.ID, "login")
		} else {
			log.Info("login check passed")
		}
		errs[i] = out.Err
	})

	failed := map[string]error{}
	for i, err := range errs {
		if err != nil {
			failed[o.Accounts[i].ID] = err
		}
	}
	return failed
}

func (o *Orchestrator) each(fn func(i int, a Account)) {
	if !o.Parallel {
		for i, a := range o.Accounts {
			fn(i, a)
		}
		return
	}

	var g errgroup.Group
	if o.Limit > 0 {
		g.SetLimit(o.Limit)
	}
	for i, a := range o.Accounts {
		i, a := i, a
		g.Go(func() error {
			fn(i, a)
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Orchestrator) contain(log *zap.Logger, out *Outcome) {
	r := recover()
	if r == nil {
		return
	}
	out.Err = fmt.Errorf("%w: %v", ErrPanic, r)
	log.Error("account evaluation panicked",
		zap.String("op", "evaluate"),
		zap.Error(out.Err),
		zap.ByteString("stack", debug.Stack()),
	)
	o.Metrics.AccountError(out.AccountID, "panic")
}

func (o *Orchestrator) record(log *zap.Logger, rec journal.CloseRecord) {
	if o.Journal == nil {
		return
	}
	if err := o.Journal.RecordClose(rec); err != nil {
		log.Error("journal write failed", zap.String("op", "journal"), zap.Error(err))
	}
}

func earliest(events []calendar.Event) time.Time {
	var t time.Time
	for i, e := range events {
		if i == 0 || e.Time.Before(t) {
			t = e.Time
		}
	}
	return t
}
