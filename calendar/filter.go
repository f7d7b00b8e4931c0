package calendar

import (
	"errors"
	"sort"
	"time"
)

// Filter keeps events inside [now-past, now+future] whose impact is accepted
// and splits them at now: earlier events are past, now and later are future.
// Both bounds are inclusive.
func Filter(events []Event, now time.Time, past, future time.Duration, impacts ImpactSet) (pastEvents, futureEvents []Event) {
	from := now.Add(-past)
	to := now.Add(future)
	for _, ev := range events {
		if !impacts.Has(ev.Impact) {
			continue
		}
		if ev.Time.Before(from) || ev.Time.After(to) {
			continue
		}
		if ev.Time.Before(now) {
			pastEvents = append(pastEvents, ev)
		} else {
			futureEvents = append(futureEvents, ev)
		}
	}
	return pastEvents, futureEvents
}

// Resolve maps the distinct countries of events onto their configured symbols
// and returns the union, sorted. Countries without a mapping are ignored.
func Resolve(events []Event, countrySymbols map[string][]string) []string {
	if len(events) == 0 || len(countrySymbols) == 0 {
		return []string{}
	}

	countries := make(map[string]struct{}, len(events))
	for _, ev := range events {
		countries[ev.Country] = struct{}{}
	}

	set := make(map[string]struct{})
	for c := range countries {
		for _, sym := range countrySymbols[c] {
			set[sym] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for sym := range set {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Policy is one account's view of the calendar.
type Policy struct {
	Past           time.Duration
	Future         time.Duration
	Impacts        ImpactSet
	CountrySymbols map[string][]string
}

var (
	ErrNoImpacts      = errors.New("policy accepts no impact levels")
	ErrNegativeWindow = errors.New("policy window is negative")
)

func (p Policy) Validate() error {
	if p.Impacts.Empty() {
		return ErrNoImpacts
	}
	if p.Past < 0 || p.Future < 0 {
		return ErrNegativeWindow
	}
	return nil
}

// Assessment is the derived result of applying a Policy at one instant.
type Assessment struct {
	Now           time.Time
	PastEvents    []Event
	FutureEvents  []Event
	PastSymbols   []string
	FutureSymbols []string
}

// Assess filters events and resolves both windows against a single now.
func (p Policy) Assess(events []Event, now time.Time) Assessment {
	pastEv, futureEv := Filter(events, now, p.Past, p.Future, p.Impacts)
	return Assessment{
		Now:           now,
		PastEvents:    pastEv,
		FutureEvents:  futureEv,
		PastSymbols:   Resolve(pastEv, p.CountrySymbols),
		FutureSymbols: Resolve(futureEv, p.CountrySymbols),
	}
}
