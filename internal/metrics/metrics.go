// Package metrics holds the Prometheus collectors for the kill switch and the
// small ops HTTP server that exposes them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics owns its registry so tests can build as many as they like. All
// methods are safe on a nil receiver.
type Metrics struct {
	Registry *prometheus.Registry

	CalendarRefresh *prometheus.CounterVec
	CalendarEvents  prometheus.Gauge
	CalendarFetched prometheus.Gauge
	CloseAttempts   *prometheus.CounterVec
	PositionsClosed *prometheus.CounterVec
	CloseFailures   *prometheus.CounterVec
	AccountErrors   *prometheus.CounterVec
	TickDuration    prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		CalendarRefresh: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "killswitch_calendar_refresh_total",
				Help: "Calendar refresh attempts by result.",
			},
			[]string{"result"},
		),
		CalendarEvents: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "killswitch_calendar_events",
				Help: "Events in the current calendar table.",
			},
		),
		CalendarFetched: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "killswitch_calendar_fetched_timestamp_seconds",
				Help: "Unix time the current calendar table was fetched.",
			},
		),
		CloseAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "killswitch_close_attempts_total",
				Help: "Close sweeps started (by account).",
			},
			[]string{"account"},
		),
		PositionsClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "killswitch_positions_closed_total",
				Help: "Positions or symbol batches closed (by account).",
			},
			[]string{"account"},
		),
		CloseFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "killswitch_close_failures_total",
				Help: "Positions or symbol batches that failed to close (by account).",
			},
			[]string{"account"},
		),
		AccountErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "killswitch_account_errors_total",
				Help: "Account evaluation errors (by account and operation).",
			},
			[]string{"account", "op"},
		),
		TickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "killswitch_tick_duration_seconds",
				Help:    "Wall time of one scheduler tick.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
	}

	m.Registry.MustRegister(
		m.CalendarRefresh,
		m.CalendarEvents,
		m.CalendarFetched,
		m.CloseAttempts,
		m.PositionsClosed,
		m.CloseFailures,
		m.AccountErrors,
		m.TickDuration,
	)
	return m
}

func (m *Metrics) ObserveRefresh(err error, events int, fetchedAt time.Time) {
	if m == nil {
		return
	}
	if err != nil {
		m.CalendarRefresh.WithLabelValues("error").Inc()
		return
	}
	m.CalendarRefresh.WithLabelValues("ok").Inc()
	m.CalendarEvents.Set(float64(events))
	m.CalendarFetched.Set(float64(fetchedAt.Unix()))
}

func (m *Metrics) ObserveClose(account string, closed, failed int) {
	if m == nil {
		return
	}
	m.CloseAttempts.WithLabelValues(account).Inc()
	m.PositionsClosed.WithLabelValues(account).Add(float64(closed))
	m.CloseFailures.WithLabelValues(account).Add(float64(failed))
}

func (m *Metrics) AccountError(account, op string) {
	if m == nil {
		return
	}
	m.AccountErrors.WithLabelValues(account, op).Inc()
}

func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.TickDuration.Observe(d.Seconds())
}
