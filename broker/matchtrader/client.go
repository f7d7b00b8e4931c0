// Package matchtrader adapts the MatchTrader platform API.
//
// A login returns a platform token plus a list of trading accounts. The
// adapter picks the entry for its configured account and derives the trading
// token and system UUID that route every later request.
package matchtrader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/killswitch/broker"
	"github.com/rustyeddy/killswitch/internal/httpjson"
)

// ErrAccountNotFound means the login payload did not list the configured
// trading account.
var ErrAccountNotFound = errors.New("trading account not found")

type Config struct {
	BaseURL   string
	Email     string
	Password  string
	AccountID string
	BrokerID  string
}

type session struct {
	token        string
	tradingToken string
	systemUUID   string
}

func (s *session) header() http.Header {
	return http.Header{
		"Authorization":    {s.token},
		"Auth-Trading-Api": {s.tradingToken},
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
	if cfg.BrokerID == "" {
		cfg.BrokerID = "0"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:  cfg,
		http: hc,
		log:  log.With(zap.String("platform", "matchtrader")),
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	BrokerID string `json:"brokerId"`
}

type loginResponse struct {
	Token           string `json:"token"`
	TradingAccounts []struct {
		TradingAccountID httpjson.FlexString `json:"tradingAccountId"`
		TradingAPIToken  string              `json:"tradingApiToken"`
		Offer            struct {
			System struct {
				UUID string `json:"uuid"`
			} `json:"system"`
		} `json:"offer"`
	} `json:"tradingAccounts"`
}

func (c *Client) Login(ctx context.Context) error {
	c.session = nil

	var resp loginResponse
	err := c.http.Post(ctx, "mtr-backend/login", nil, loginRequest{
		Email:    c.cfg.Email,
		Password: c.cfg.Password,
		BrokerID: c.cfg.BrokerID,
	}, &resp)
	if err != nil {
		return fmt.Errorf("%w: matchtrader %s: %v", broker.ErrAuthFailed, c.cfg.Email, err)
	}

	for _, acct := range resp.TradingAccounts {
		if acct.TradingAccountID.String() != c.cfg.AccountID {
			continue
		}
		s := &session{
			token:        resp.Token,
			tradingToken: acct.TradingAPIToken,
			systemUUID:   acct.Offer.System.UUID,
		}
		if s.token == "" || s.tradingToken == "" || s.systemUUID == "" {
			return fmt.Errorf("%w: matchtrader %s: incomplete session for account %s",
				broker.ErrAuthFailed, c.cfg.Email, c.cfg.AccountID)
		}
		c.session = s
		c.log.Info("login successful", zap.String("email", c.cfg.Email), zap.String("base_url", c.cfg.BaseURL))
		return nil
	}

	return fmt.Errorf("%w: matchtrader %s: %w %s", broker.ErrAuthFailed, c.cfg.Email, ErrAccountNotFound, c.cfg.AccountID)
}

type positionsResponse struct {
	Positions []struct {
		ID     httpjson.FlexString `json:"id"`
		Symbol string              `json:"symbol"`
		Side   string              `json:"side"`
		Volume decimal.Decimal     `json:"volume"`
	} `json:"positions"`
}

func (c *Client) OpenPositions(ctx context.Context) ([]broker.Position, error) {
	s := c.session
	if s == nil {
		return nil, broker.ErrNotAuthenticated
	}

	var resp positionsResponse
	path := fmt.Sprintf("mtr-api/%s/open-positions", s.systemUUID)
	if err := c.http.Get(ctx, path, s.header(), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", broker.ErrUnavailable, err)
	}

	out := make([]broker.Position, 0, len(resp.Positions))
	for _, p := range resp.Positions {
		side, err := broker.ParseSide(p.Side)
		if err != nil {
			c.log.Warn("skipping position", zap.String("position", p.ID.String()), zap.Error(err))
			continue
		}
		out = append(out, broker.Position{
			ID:     p.ID.String(),
			Symbol: p.Symbol,
			Side:   side,
			Volume: p.Volume,
		})
	}
	return out, nil
}

type closeRequest struct {
	OrderSide  string      `json:"orderSide"`
	PositionID string      `json:"positionId"`
	Volume     json.Number `json:"volume"`
	Instrument string      `json:"instrument"`
	IsMobile   bool        `json:"isMobile"`
}

type closeResponse struct {
	Status       string  `json:"status"`
	ErrorMessage *string `json:"errorMessage"`
}

func (c *Client) ClosePositions(ctx context.Context, filter broker.SymbolFilter) (broker.CloseReport, error) {
	positions, err := c.OpenPositions(ctx)
	if err != nil {
		return broker.CloseReport{}, err
	}
	return broker.Sweep(ctx, c.log, positions, filter, c.closePosition), nil
}

// closePosition echoes the position's own side; the platform treats
// /position/close as the flattening instruction.
func (c *Client) closePosition(ctx context.Context, p broker.Position) error {
	s := c.session
	if s == nil {
		return broker.ErrNotAuthenticated
	}

	var resp closeResponse
	path := fmt.Sprintf("mtr-api/%s/position/close", s.systemUUID)
	err := c.http.Post(ctx, path, s.header(), closeRequest{
		OrderSide:  string(p.Side),
		PositionID: p.ID,
		Volume:     json.Number(p.Volume.String()),
		Instrument: p.Symbol,
	}, &resp)
	if err != nil {
		return fmt.Errorf("%w: %v", broker.ErrUnavailable, err)
	}
	if resp.Status != "OK" || (resp.ErrorMessage != nil && *resp.ErrorMessage != "") {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return fmt.Errorf("%w: status %q %s", broker.ErrRejected, resp.Status, msg)
	}
	return nil
}
