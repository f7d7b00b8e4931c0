package calendar

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Table is an immutable snapshot of the calendar. A refresh builds a new
// Table; an existing one is never modified.
type Table struct {
	events    []Event
	fetchedAt time.Time
}

func NewTable(events []Event, fetchedAt time.Time) *Table {
	cp := make([]Event, len(events))
	copy(cp, events)
	return &Table{events: cp, fetchedAt: fetchedAt.UTC()}
}

// Events returns a copy so callers cannot reach the snapshot's backing array.
func (t *Table) Events() []Event {
	if t == nil {
		return nil
	}
	cp := make([]Event, len(t.events))
	copy(cp, t.events)
	return cp
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.events)
}

func (t *Table) FetchedAt() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.fetchedAt
}

// Store publishes the current Table. Readers always see either the previous
// or the complete new snapshot.
type Store struct {
	current atomic.Pointer[Table]
}

func NewStore(initial *Table) *Store {
	s := &Store{}
	if initial != nil {
		s.current.Store(initial)
	}
	return s
}

// Current returns nil until the first successful Refresh.
func (s *Store) Current() *Table {
	return s.current.Load()
}

// Refresh fetches from src and swaps the table in on success. An empty result
// counts as a failure. On failure the current table is left exactly as it was
// and the error is returned.
func (s *Store) Refresh(ctx context.Context, src Source, now time.Time) (*Table, error) {
	events, err := src.Fetch(ctx)
	if err != nil {
		return s.Current(), err
	}
	if len(events) == 0 {
		return s.Current(), fmt.Errorf("%w: source returned no events", ErrUnavailable)
	}
	t := NewTable(events, now)
	s.current.Store(t)
	return t, nil
}
