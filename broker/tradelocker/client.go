// Package tradelocker adapts the TradeLocker REST API.
//
// Login is three calls: a JWT exchange, an all-accounts lookup that yields
// the accNum routing header, and an instrument listing that maps symbol
// names to tradable instrument ids. Closing by symbol needs that map.
package tradelocker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/killswitch/broker"
	"github.com/rustyeddy/killswitch/internal/httpjson"
)

var (
	// ErrAccountNotFound means all-accounts did not list the configured id.
	ErrAccountNotFound = errors.New("account not found")

	// ErrUnknownInstrument means a symbol is absent from the instrument map
	// built at login. No fallback is attempted for that symbol.
	ErrUnknownInstrument = errors.New("instrument id unknown")
)

type Config struct {
	BaseURL   string
	Email     string
	Password  string
	Server    string
	AccountID string
}

type session struct {
	accessToken string
	accNum      string
	instruments map[string]string // name -> tradableInstrumentId
	names       map[string]string // tradableInstrumentId -> name
}

func (s *session) header() http.Header {
	return http.Header{
		"Authorization": {"Bearer " + s.accessToken},
		"accNum":        {s.accNum},
	}
}

// Client implements broker.Broker.
type Client struct {
	cfg     Config
	http    *httpjson.Client
	log     *zap.Logger
	session *session
}

var _ broker.Broker = (*Client)(nil)

func New(cfg Config, hc *httpjson.Client, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:  cfg,
		http: hc,
		log:  log.With(zap.String("platform", "tradelocker")),
	}
}

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Server   string `json:"server"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

type accountsResponse struct {
	Accounts []struct {
		ID     httpjson.FlexString `json:"id"`
		AccNum httpjson.FlexString `json:"accNum"`
	} `json:"accounts"`
}

type instrumentsResponse struct {
	D struct {
		Instruments []struct {
			TradableInstrumentID httpjson.FlexString `json:"tradableInstrumentId"`
			Name                 string              `json:"name"`
		} `json:"instruments"`
	} `json:"d"`
}

// Login establishes a new session. A failed instrument listing does not fail
// the login: closing everything still works, closing by symbol reports
// ErrUnknownInstrument for every symbol it cannot map.
func (c *Client) Login(ctx context.Context) error {
	c.session = nil

	var tok tokenResponse
	err := c.http.Post(ctx, "auth/jwt/token", nil, tokenRequest{
		Email:    c.cfg.Email,
		Password: c.cfg.Password,
		Server:   c.cfg.Server,
	}, &tok)
	if err != nil {
		return fmt.Errorf("%w: tradelocker %s@%s: %v", broker.ErrAuthFailed, c.cfg.Email, c.cfg.Server, err)
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("%w: tradelocker %s@%s: empty access token", broker.ErrAuthFailed, c.cfg.Email, c.cfg.Server)
	}

	s := &session{
		accessToken: tok.AccessToken,
		instruments: map[string]string{},
		names:       map[string]string{},
	}

	var accts accountsResponse
	if err := c.http.Get(ctx, "auth/jwt/all-accounts", s.header(), &accts); err != nil {
		return fmt.Errorf("%w: tradelocker all-accounts: %v", broker.ErrAuthFailed, err)
	}
	for _, a := range accts.Accounts {
		if a.ID.String() == c.cfg.AccountID {
			s.accNum = a.AccNum.String()
			break
		}
	}
	if s.accNum == "" {
		return fmt.Errorf("%w: tradelocker: %w %s", broker.ErrAuthFailed, ErrAccountNotFound, c.cfg.AccountID)
	}

	if err := c.mapInstruments(ctx, s); err != nil {
		c.log.Warn("instrument map unavailable, closing by symbol is disabled until next login",
			zap.String("op", "login"), zap.Error(err))
	}

	c.session = s
	c.log.Info("login successful",
		zap.String("email", c.cfg.Email),
		zap.String("server", c.cfg.Server),
		zap.Int("instruments", len(s.instruments)),
	)
	return nil
}

func (c *Client) mapInstruments(ctx context.Context, s *session) error {
	var resp instrumentsResponse
	if err := c.http.Get(ctx, c.accountPath("instruments"), s.header(), &resp); err != nil {
		return err
	}
	for _, ins := range resp.D.Instruments {
		id := ins.TradableInstrumentID.String()
		s.instruments[ins.Name] = id
		s.names[id] = ins.Name
	}
	return nil
}

func (c *Client) accountPath(suffix string) string {
	return "trade/accounts/" + url.PathEscape(c.cfg.AccountID) + "/" + suffix
}

type positionsResponse struct {
	S string `json:"s"`
	D struct {
		Positions [][]json.RawMessage `json:"positions"`
	} `json:"d"`
}

// Column order of a position row as served by the positions endpoint.
const (
	colID           = 0
	colInstrumentID = 1
	colSide         = 3
	colQty          = 4
)

func (c *Client) OpenPositions(ctx context.Context) ([]broker.Position, error) {
	s := c.session
	if s == nil {
		return nil, broker.ErrNotAuthenticated
	}

	var resp positionsResponse
	if err := c.http.Get(ctx, c.accountPath("positions"), s.header(), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", broker.ErrUnavailable, err)
	}
	if resp.S != "" && resp.S != "ok" {
		return nil, fmt.Errorf("%w: positions status %q", broker.ErrUnavailable, resp.S)
	}

	out := make([]broker.Position, 0, len(resp.D.Positions))
	for _, row := range resp.D.Positions {
		p, err := s.position(row)
		if err != nil {
			c.log.Warn("skipping position row", zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *session) position(row []json.RawMessage) (broker.Position, error) {
	if len(row) <= colQty {
		return broker.Position{}, fmt.Errorf("short position row (%d columns)", len(row))
	}
	var posID, instID, side, qty httpjson.FlexString
	for _, f := range []struct {
		col int
		dst *httpjson.FlexString
	}{{colID, &posID}, {colInstrumentID, &instID}, {colSide, &side}, {colQty, &qty}} {
		if err := json.Unmarshal(row[f.col], f.dst); err != nil {
			return broker.Position{}, fmt.Errorf("column %d: %w", f.col, err)
		}
	}

	sd, err := broker.ParseSide(side.String())
	if err != nil {
		return broker.Position{}, err
	}
	vol, err := decimal.NewFromString(qty.String())
	if err != nil {
		return broker.Position{}, fmt.Errorf("qty %q: %w", qty, err)
	}
	symbol := s.names[instID.String()]
	if symbol == "" {
		symbol = instID.String()
	}
	return broker.Position{
		ID:           posID.String(),
		Symbol:       symbol,
		Side:         sd,
		Volume:       vol,
		InstrumentID: instID.String(),
	}, nil
}

type deleteResponse struct {
	S      string `json:"s"`
	ErrMsg string `json:"errmsg"`
}

// ClosePositions lists open positions first and deletes per instrument only
// where something matched. A close-all filter issues a single account-wide
// delete and does not need the instrument map. Every matched position is
// recorded with the outcome of the delete that covered it.
func (c *Client) ClosePositions(ctx context.Context, filter broker.SymbolFilter) (broker.CloseReport, error) {
	s := c.session
	if s == nil {
		return broker.CloseReport{}, broker.ErrNotAuthenticated
	}
	positions, err := c.OpenPositions(ctx)
	if err != nil {
		return broker.CloseReport{}, err
	}

	var report broker.CloseReport
	if filter.CloseAll() {
		if len(positions) == 0 {
			return report, nil
		}
		report.Matched = len(positions)
		err := c.deletePositions(ctx, s, c.accountPath("positions"))
		for _, p := range positions {
			report.Record(p.ID, err)
		}
		c.logClose(broker.All, len(positions), err)
		return report, nil
	}

	byInstrument := make(map[string][]broker.Position)
	for _, sym := range filter.Symbols() {
		instID, ok := s.instruments[sym]
		if !ok {
			err := fmt.Errorf("%w: %s", ErrUnknownInstrument, sym)
			report.Record(sym, err)
			c.logClose(sym, 0, err)
			continue
		}
		byInstrument[instID] = nil
	}

	var order []string
	for _, p := range positions {
		group, wanted := byInstrument[p.InstrumentID]
		if !wanted {
			continue
		}
		if group == nil {
			order = append(order, p.InstrumentID)
		}
		byInstrument[p.InstrumentID] = append(group, p)
		report.Matched++
	}

	for _, instID := range order {
		group := byInstrument[instID]
		path := c.accountPath("positions") + "?tradableInstrumentId=" + url.QueryEscape(instID)
		err := c.deletePositions(ctx, s, path)
		for _, p := range group {
			report.Record(p.ID, err)
		}
		c.logClose(group[0].Symbol, len(group), err)
	}
	return report, nil
}

func (c *Client) deletePositions(ctx context.Context, s *session, path string) error {
	var resp deleteResponse
	if err := c.http.Delete(ctx, path, s.header(), &resp); err != nil {
		return fmt.Errorf("%w: %v", broker.ErrUnavailable, err)
	}
	if resp.S != "ok" {
		return fmt.Errorf("%w: status %q %s", broker.ErrRejected, resp.S, resp.ErrMsg)
	}
	return nil
}

func (c *Client) logClose(target string, positions int, err error) {
	if err != nil {
		c.log.Error("close positions failed",
			zap.String("op", "close"),
			zap.String("symbol", target),
			zap.Int("positions", positions),
			zap.Error(err),
		)
		return
	}
	c.log.Info("positions closed", zap.String("symbol", target), zap.Int("positions", positions))
}
