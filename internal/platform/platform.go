// Package platform builds the broker adapter an account asks for.
package platform

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/killswitch/broker"
	"github.com/rustyeddy/killswitch/broker/dxtrade"
	"github.com/rustyeddy/killswitch/broker/matchtrader"
	"github.com/rustyeddy/killswitch/broker/tradelocker"
	"github.com/rustyeddy/killswitch/config"
	"github.com/rustyeddy/killswitch/internal/httpjson"
)

// Options are the transport settings shared by every adapter.
type Options struct {
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 = unlimited
}

// New returns an unauthenticated adapter for acct. Each adapter gets its own
// HTTP client and limiter.
func New(acct config.Account, opts Options, log *zap.Logger) (broker.Broker, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("account", acct.ID.String()))
	hc := httpjson.New(acct.BaseURL, opts.Timeout, opts.RateLimit)

	switch acct.Platform {
	case config.MatchTrader:
		return matchtrader.New(matchtrader.Config{
			BaseURL:   acct.BaseURL,
			Email:     acct.Email,
			Password:  acct.Password,
			AccountID: acct.Account.String(),
			BrokerID:  acct.BrokerID,
		}, hc, log), nil
	case config.DXtrade:
		return dxtrade.New(dxtrade.Config{
			BaseURL:  acct.BaseURL,
			Username: acct.Account.String(),
			Password: acct.Password,
			Domain:   acct.Domain,
		}, hc, log), nil
	case config.TradeLocker:
		return tradelocker.New(tradelocker.Config{
			BaseURL:   acct.BaseURL,
			Email:     acct.Email,
			Password:  acct.Password,
			Server:    acct.Server,
			AccountID: acct.Account.String(),
		}, hc, log), nil
	default:
		return nil, fmt.Errorf("%w: unknown platform %q", config.ErrInvalid, acct.Platform)
	}
}
