package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/killswitch/internal/httpjson"
)

// DefaultFeedURL is the ForexFactory weekly calendar export.
const DefaultFeedURL = "https://nfs.faireconomy.media/ff_calendar_thisweek.json"

// ErrUnavailable means a fetch produced no usable table. Callers keep the
// table they already have.
var ErrUnavailable = errors.New("calendar unavailable")

// Source produces a full replacement set of events.
type Source interface {
	Fetch(ctx context.Context) ([]Event, error)
}

// FeedSource reads a JSON array of {country, impact, date} records.
type FeedSource struct {
	URL    string
	client *httpjson.Client
}

// NewFeedSource returns a source with a bounded request timeout. An empty url
// selects DefaultFeedURL.
func NewFeedSource(url string, timeout time.Duration) *FeedSource {
	if url == "" {
		url = DefaultFeedURL
	}
	return &FeedSource{
		URL:    url,
		client: httpjson.New(url, timeout, 0),
	}
}

type feedRecord struct {
	Country string `json:"country"`
	Impact  string `json:"impact"`
	Date    string `json:"date"`
}

// Fetch makes a single attempt. Records that cannot be parsed are dropped;
// a payload that is not a JSON array, or one that leaves no usable records,
// fails the whole fetch.
func (s *FeedSource) Fetch(ctx context.Context) ([]Event, error) {
	var raw []json.RawMessage
	if err := s.client.Get(ctx, s.URL, nil, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrUnavailable)
	}
	events := parseRecords(raw)
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: no usable records in %d", ErrUnavailable, len(raw))
	}
	return events, nil
}

// parseRecords skips records that are incomplete or carry an impact outside
// low/medium/high.
func parseRecords(raw []json.RawMessage) []Event {
	events := make([]Event, 0, len(raw))
	for _, r := range raw {
		var rec feedRecord
		if err := json.Unmarshal(r, &rec); err != nil {
			continue
		}
		ev, ok := rec.event()
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	return events
}

func (r feedRecord) event() (Event, bool) {
	country := strings.TrimSpace(r.Country)
	if country == "" {
		return Event{}, false
	}
	impact, err := ParseImpact(r.Impact)
	if err != nil {
		return Event{}, false
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(r.Date))
	if err != nil {
		return Event{}, false
	}
	return NewEvent(country, impact, t), true
}
