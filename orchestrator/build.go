package orchestrator

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/killswitch/config"
	"github.com/rustyeddy/killswitch/internal/platform"
)

// FromConfig builds one Account per configured account, each with its own
// adapter instance.
func FromConfig(cfg *config.Config, log *zap.Logger) ([]Account, error) {
	opts := platform.Options{
		Timeout:   cfg.HTTPTimeout.Std(),
		RateLimit: cfg.RateLimit,
	}

	accounts := make([]Account, 0, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		b, err := platform.New(a, opts, log)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", a.ID, err)
		}
		accounts = append(accounts, Account{
			ID:       a.ID.String(),
			Platform: a.Platform,
			Policy:   a.Policy(),
			Broker:   b,
		})
	}
	return accounts, nil
}

// Find returns the account with id.
func Find(accounts []Account, id string) (Account, bool) {
	for _, a := range accounts {
		if a.ID == id {
			return a, true
		}
	}
	return Account{}, false
}
