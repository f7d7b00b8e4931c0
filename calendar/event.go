// Package calendar turns the external economic calendar into an immutable
// event table and decides which of those events touch an account's symbols.
package calendar

import (
	"fmt"
	"strings"
	"time"
)

// Impact is the severity a calendar publisher assigns to an announcement.
type Impact uint8

const (
	Low Impact = iota + 1
	Medium
	High
)

func (i Impact) String() string {
	switch i {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return fmt.Sprintf("impact(%d)", uint8(i))
	}
}

// ParseImpact is case-insensitive and ignores surrounding whitespace.
func ParseImpact(s string) (Impact, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return Low, nil
	case "medium":
		return Medium, nil
	case "high":
		return High, nil
	default:
		return 0, fmt.Errorf("unknown impact %q (want low|medium|high)", s)
	}
}

// ImpactSet is a set of accepted impact levels.
type ImpactSet uint8

func NewImpactSet(levels ...Impact) ImpactSet {
	var s ImpactSet
	for _, l := range levels {
		s = s.With(l)
	}
	return s
}

// ParseImpactSet parses a list such as ["High", "medium"].
func ParseImpactSet(values []string) (ImpactSet, error) {
	var s ImpactSet
	for _, v := range values {
		l, err := ParseImpact(v)
		if err != nil {
			return 0, err
		}
		s = s.With(l)
	}
	return s, nil
}

func (s ImpactSet) With(l Impact) ImpactSet {
	if l < Low || l > High {
		return s
	}
	return s | 1<<l
}

func (s ImpactSet) Has(l Impact) bool {
	if l < Low || l > High {
		return false
	}
	return s&(1<<l) != 0
}

func (s ImpactSet) Empty() bool { return s == 0 }

// Levels lists the members from low to high.
func (s ImpactSet) Levels() []Impact {
	var out []Impact
	for _, l := range []Impact{Low, Medium, High} {
		if s.Has(l) {
			out = append(out, l)
		}
	}
	return out
}

func (s ImpactSet) String() string {
	levels := s.Levels()
	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = l.String()
	}
	return "[" + strings.Join(names, " ") + "]"
}

// Event is one scheduled announcement. Time is always UTC.
type Event struct {
	Country string
	Impact  Impact
	Time    time.Time
}

func NewEvent(country string, impact Impact, t time.Time) Event {
	return Event{Country: country, Impact: impact, Time: t.UTC()}
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s %s", e.Time.Format(time.RFC3339), e.Country, e.Impact)
}
