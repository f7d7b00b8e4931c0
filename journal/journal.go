// Package journal keeps an append-only audit trail of close sweeps. Nothing
// in the decision path reads it back.
package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/killswitch/broker"
	"github.com/rustyeddy/killswitch/pkg/id"
)

// CloseRecord describes one close sweep on one account.
type CloseRecord struct {
	ID        string
	Time      time.Time
	AccountID string
	Platform  string
	Symbols   string // comma separated filter, or ALL
	Matched   int
	Closed    int
	Failed    int
	Error     string
}

// NewCloseRecord summarises a sweep. err is the sweep-level error, if the
// positions could not be enumerated at all.
func NewCloseRecord(at time.Time, accountID, platform string, filter broker.SymbolFilter, report broker.CloseReport, err error) CloseRecord {
	rec := CloseRecord{
		ID:        id.At(at),
		Time:      at.UTC(),
		AccountID: accountID,
		Platform:  platform,
		Symbols:   filter.String(),
		Matched:   report.Matched,
		Closed:    len(report.Closed),
		Failed:    len(report.Failures),
	}

	var msgs []string
	if err != nil {
		msgs = append(msgs, err.Error())
	}
	for _, f := range report.Failures {
		msgs = append(msgs, f.Target+": "+f.Err.Error())
	}
	rec.Error = strings.Join(msgs, "; ")
	return rec
}

type Journal interface {
	RecordClose(CloseRecord) error
	Close() error
}

// Nop discards records.
type Nop struct{}

func (Nop) RecordClose(CloseRecord) error { return nil }
func (Nop) Close() error                  { return nil }

// Open returns the journal for kind: "none" (or empty), "csv" or "sqlite".
func Open(kind, path string) (Journal, error) {
	switch kind {
	case "", "none":
		return Nop{}, nil
	case "csv":
		return NewCSV(path)
	case "sqlite":
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("unknown journal type %q", kind)
	}
}
