package calendar

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 1, 10, 13, 30, 0, 0, time.UTC)

func TestFilterPartitions(t *testing.T) {
	t.Parallel()

	past, future := 15*time.Minute, 24*time.Hour
	events := []Event{
		NewEvent("USD", High, now.Add(-past)),                  // lower bound, included
		NewEvent("USD", High, now.Add(-past-time.Nanosecond)),  // just outside
		NewEvent("EUR", High, now.Add(-time.Minute)),           // past
		NewEvent("GBP", High, now),                             // split point goes to future
		NewEvent("JPY", High, now.Add(future)),                 // upper bound, included
		NewEvent("JPY", High, now.Add(future+time.Nanosecond)), // just outside
		NewEvent("USD", Low, now.Add(time.Hour)),               // impact not accepted
		NewEvent("CAD", Medium, now.Add(2*time.Hour)),          // impact not accepted
	}

	gotPast, gotFuture := Filter(events, now, past, future, NewImpactSet(High))

	assert.Equal(t, []Event{events[0], events[2]}, gotPast)
	assert.Equal(t, []Event{events[3], events[4]}, gotFuture)
}

func TestFilterEveryEventPlacedOnce(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	levels := []Impact{Low, Medium, High}
	accepted := NewImpactSet(Medium, High)
	past, future := 30*time.Minute, 6*time.Hour

	var events []Event
	for i := 0; i < 500; i++ {
		offset := time.Duration(rng.Int63n(int64(16*time.Hour))) - 8*time.Hour
		events = append(events, NewEvent("USD", levels[rng.Intn(3)], now.Add(offset)))
	}

	gotPast, gotFuture := Filter(events, now, past, future, accepted)

	expectedIn := 0
	for _, ev := range events {
		inWindow := !ev.Time.Before(now.Add(-past)) && !ev.Time.After(now.Add(future))
		if inWindow && accepted.Has(ev.Impact) {
			expectedIn++
		}
	}
	assert.Equal(t, expectedIn, len(gotPast)+len(gotFuture))
	for _, ev := range gotPast {
		assert.True(t, ev.Time.Before(now))
	}
	for _, ev := range gotFuture {
		assert.False(t, ev.Time.Before(now))
	}
}

func TestFilterZeroWindows(t *testing.T) {
	t.Parallel()

	events := []Event{
		NewEvent("USD", High, now),
		NewEvent("USD", High, now.Add(time.Second)),
	}
	gotPast, gotFuture := Filter(events, now, 0, 0, NewImpactSet(High))
	assert.Empty(t, gotPast)
	assert.Equal(t, events[:1], gotFuture)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	mapping := map[string][]string{
		"USD": {"EURUSD", "GBPUSD"},
		"GBP": {"GBPUSD", "GBPJPY"},
	}

	tests := []struct {
		name    string
		events  []Event
		mapping map[string][]string
		want    []string
	}{
		{"no events", nil, mapping, []string{}},
		{"empty mapping", []Event{NewEvent("USD", High, now)}, nil, []string{}},
		{"unmapped country", []Event{NewEvent("NZD", High, now)}, mapping, []string{}},
		{
			name:    "union without duplicates",
			events:  []Event{NewEvent("USD", High, now), NewEvent("GBP", High, now), NewEvent("USD", Low, now)},
			mapping: mapping,
			want:    []string{"EURUSD", "GBPJPY", "GBPUSD"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.events, tt.mapping))
		})
	}
}

func TestResolveOrderIndependent(t *testing.T) {
	t.Parallel()

	mapping := map[string][]string{
		"USD": {"EURUSD", "USDJPY"},
		"EUR": {"EURUSD", "EURGBP"},
		"JPY": {"USDJPY"},
	}
	events := []Event{
		NewEvent("USD", High, now),
		NewEvent("EUR", High, now.Add(time.Hour)),
		NewEvent("JPY", High, now.Add(2*time.Hour)),
		NewEvent("AUD", High, now.Add(3*time.Hour)),
	}
	want := Resolve(events, mapping)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]Event(nil), events...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, Resolve(shuffled, mapping))
	}
	assert.Equal(t, want, Resolve(events, mapping))
}

func TestPolicyAssess(t *testing.T) {
	t.Parallel()

	p := Policy{
		Past:           15 * time.Minute,
		Future:         24 * time.Hour,
		Impacts:        NewImpactSet(High),
		CountrySymbols: map[string][]string{"USD": {"EURUSD", "GBPUSD"}},
	}
	require.NoError(t, p.Validate())

	a := p.Assess([]Event{
		NewEvent("USD", High, now.Add(2*time.Hour)),
		NewEvent("USD", Low, now.Add(time.Hour)),
		NewEvent("USD", High, now.Add(-5*time.Minute)),
	}, now)

	assert.Len(t, a.FutureEvents, 1)
	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, a.FutureSymbols)
	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, a.PastSymbols)
}

func TestPolicyValidate(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, Policy{Future: time.Hour}.Validate(), ErrNoImpacts)
	assert.ErrorIs(t, Policy{Past: -time.Minute, Impacts: NewImpactSet(Low)}.Validate(), ErrNegativeWindow)
	assert.NoError(t, Policy{Impacts: NewImpactSet(Low)}.Validate())
}

func TestParseImpactSet(t *testing.T) {
	t.Parallel()

	s, err := ParseImpactSet([]string{"HIGH", " medium "})
	require.NoError(t, err)
	assert.True(t, s.Has(High))
	assert.True(t, s.Has(Medium))
	assert.False(t, s.Has(Low))
	assert.Equal(t, "[medium high]", s.String())

	_, err = ParseImpactSet([]string{"holiday"})
	assert.Error(t, err)
}
