// Package dxtrade adapts the DXtrade REST API.
package dxtrade

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/killswitch/broker"
	"github.com/rustyeddy/killswitch/internal/httpjson"
	"github.com/rustyeddy/killswitch/pkg/id"
)

const DefaultDomain = "default"

type Config struct {
	BaseURL  string
	Username string
	Password string
	Domain   string
}

// Client implements broker.Broker. Sessions are a single DXAPI token.
type Client struct {
	cfg   Config
	http  *httpjson.Client
	log   *zap.Logger
	token string

	// newOrderCode is swapped in tests.
	newOrderCode func() string
}

var _ broker.Broker = (*Client)(nil)

func New(cfg Config, hc *httpjson.Client, log *zap.Logger) *Client {
	if cfg.Domain == "" {
		cfg.Domain = DefaultDomain
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:          cfg,
		http:         hc,
		log:          log.With(zap.String("platform", "dxtrade")),
		newOrderCode: id.New,
	}
}

// Account is the domain-qualified account code used in every URL.
func (c *Client) Account() string {
	return c.cfg.Domain + ":" + c.cfg.Username
}

func (c *Client) accountPath(suffix string) string {
	return "accounts/" + url.PathEscape(c.Account()) + "/" + suffix
}

func (c *Client) header() http.Header {
	return http.Header{"Authorization": {"DXAPI " + c.token}}
}

type loginRequest struct {
	Username string `json:"username"`
	Domain   string `json:"domain"`
	Password string `json:"password"`
}

type loginResponse struct {
	SessionToken string `json:"sessionToken"`
}

func (c *Client) Login(ctx context.Context) error {
	c.token = ""

	var resp loginResponse
	err := c.http.Post(ctx, "login", nil, loginRequest{
		Username: c.cfg.Username,
		Domain:   c.cfg.Domain,
		Password: c.cfg.Password,
	}, &resp)
	if err != nil {
		return fmt.Errorf("%w: dxtrade %s: %v", broker.ErrAuthFailed, c.cfg.Username, err)
	}
	if resp.SessionToken == "" {
		return fmt.Errorf("%w: dxtrade %s: empty session token", broker.ErrAuthFailed, c.cfg.Username)
	}

	c.token = resp.SessionToken
	c.log.Info("login successful", zap.String("dx_account", c.Account()), zap.String("base_url", c.cfg.BaseURL))
	return nil
}

type positionsResponse struct {
	Positions []struct {
		PositionCode string          `json:"positionCode"`
		Symbol       string          `json:"symbol"`
		Quantity     decimal.Decimal `json:"quantity"`
		Side         string          `json:"side"`
	} `json:"positions"`
}

func (c *Client) OpenPositions(ctx context.Context) ([]broker.Position, error) {
	if c.token == "" {
		return nil, broker.ErrNotAuthenticated
	}

	var resp positionsResponse
	if err := c.http.Get(ctx, c.accountPath("positions"), c.header(), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", broker.ErrUnavailable, err)
	}

	out := make([]broker.Position, 0, len(resp.Positions))
	for _, p := range resp.Positions {
		side, err := broker.ParseSide(p.Side)
		if err != nil {
			c.log.Warn("skipping position", zap.String("position", p.PositionCode), zap.Error(err))
			continue
		}
		out = append(out, broker.Position{
			ID:     p.PositionCode,
			Symbol: p.Symbol,
			Side:   side,
			Volume: p.Quantity,
		})
	}
	return out, nil
}

type order struct {
	Account        string      `json:"account"`
	OrderCode      string      `json:"orderCode"`
	Type           string      `json:"type"`
	Instrument     string      `json:"instrument"`
	Quantity       json.Number `json:"quantity"`
	PositionCode   string      `json:"positionCode"`
	PositionEffect string      `json:"positionEffect"`
	Side           string      `json:"side"`
	TIF            string      `json:"tif"`
}

type orderResponse struct {
	OrderID httpjson.FlexString `json:"orderId"`
}

func (c *Client) ClosePositions(ctx context.Context, filter broker.SymbolFilter) (broker.CloseReport, error) {
	positions, err := c.OpenPositions(ctx)
	if err != nil {
		return broker.CloseReport{}, err
	}
	return broker.Sweep(ctx, c.log, positions, filter, c.closePosition), nil
}

// closePosition submits an opposite-side market order with a CLOSE effect.
func (c *Client) closePosition(ctx context.Context, p broker.Position) error {
	if c.token == "" {
		return broker.ErrNotAuthenticated
	}

	var resp orderResponse
	err := c.http.Post(ctx, c.accountPath("orders"), c.header(), order{
		Account:        c.Account(),
		OrderCode:      c.newOrderCode(),
		Type:           "MARKET",
		Instrument:     p.Symbol,
		Quantity:       json.Number(p.Volume.String()),
		PositionCode:   p.ID,
		PositionEffect: "CLOSE",
		Side:           string(p.Side.Opposite()),
		TIF:            "GTC",
	}, &resp)
	if err != nil {
		return fmt.Errorf("%w: %v", broker.ErrUnavailable, err)
	}
	if resp.OrderID == "" {
		return fmt.Errorf("%w: no order id acknowledged for %s", broker.ErrRejected, p.ID)
	}
	return nil
}
