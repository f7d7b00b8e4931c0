package broker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Broker is the capability every platform adapter provides. An adapter owns
// its session; Login replaces it wholesale and nothing renews it implicitly.
type Broker interface {
	// Login authenticates and establishes a fresh session. On failure the
	// adapter is left unauthenticated.
	Login(ctx context.Context) error

	// OpenPositions lists the positions currently open on the account.
	OpenPositions(ctx context.Context) ([]Position, error)

	// ClosePositions flattens every open position matched by filter. The sweep
	// is best effort: per-position failures are reported, not returned.
	ClosePositions(ctx context.Context, filter SymbolFilter) (CloseReport, error)
}

var (
	// ErrAuthFailed is wrapped by every Login failure.
	ErrAuthFailed = errors.New("login failed")

	// ErrNotAuthenticated is returned when no session exists.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrUnavailable covers transport failures and platform error responses.
	ErrUnavailable = errors.New("broker unavailable")

	// ErrRejected marks a close order the platform did not acknowledge.
	ErrRejected = errors.New("close rejected")
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// ParseSide accepts the platform spellings seen on the wire (BUY, buy, Buy).
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	default:
		return "", fmt.Errorf("unknown side %q", s)
	}
}

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Position is a snapshot reported by the platform. It is fetched fresh
// before every close and never cached.
type Position struct {
	ID           string
	Symbol       string
	Side         Side
	Volume       decimal.Decimal
	InstrumentID string
}

func (p Position) String() string {
	return fmt.Sprintf("%s %s %s %s", p.ID, p.Side, p.Volume.String(), p.Symbol)
}

// All is the filter sentinel that selects every position.
const All = "ALL"

// SymbolFilter selects positions by symbol. An empty filter, or one that
// contains All, selects every position.
type SymbolFilter struct {
	symbols map[string]struct{}
	all     bool
}

func NewSymbolFilter(symbols ...string) SymbolFilter {
	f := SymbolFilter{symbols: make(map[string]struct{}, len(symbols))}
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if s == All {
			f.all = true
		}
		f.symbols[s] = struct{}{}
	}
	return f
}

// CloseAll reports whether the filter selects every position.
func (f SymbolFilter) CloseAll() bool {
	return f.all || len(f.symbols) == 0
}

func (f SymbolFilter) Match(symbol string) bool {
	if f.CloseAll() {
		return true
	}
	_, ok := f.symbols[symbol]
	return ok
}

// Symbols lists the explicit members, sorted, excluding the All sentinel.
func (f SymbolFilter) Symbols() []string {
	out := make([]string, 0, len(f.symbols))
	for s := range f.symbols {
		if s == All {
			continue
		}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (f SymbolFilter) String() string {
	if f.CloseAll() {
		return All
	}
	return strings.Join(f.Symbols(), ",")
}

// CloseFailure records one position (or one symbol batch) that could not be
// closed.
type CloseFailure struct {
	Target string
	Err    error
}

// CloseReport summarises a sweep.
type CloseReport struct {
	Matched  int
	Closed   []string
	Failures []CloseFailure
}

func (r *CloseReport) succeeded(target string) {
	r.Closed = append(r.Closed, target)
}

func (r *CloseReport) failed(target string, err error) {
	r.Failures = append(r.Failures, CloseFailure{Target: target, Err: err})
}

// Record adds the outcome of closing target: nil err counts as closed.
func (r *CloseReport) Record(target string, err error) {
	if err != nil {
		r.failed(target, err)
		return
	}
	r.succeeded(target)
}

func (r CloseReport) OK() bool { return len(r.Failures) == 0 }
