package orchestrator_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/killswitch/calendar"
	"github.com/rustyeddy/killswitch/config"
	"github.com/rustyeddy/killswitch/internal/httpjson"
	"github.com/rustyeddy/killswitch/orchestrator"
)

// hits counts requests per path on a fake platform.
type hits struct {
	mu sync.Mutex
	n  map[string]int
}

func (h *hits) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		if h.n == nil {
			h.n = map[string]int{}
		}
		h.n[r.Method+" "+r.URL.Path]++
		h.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (h *hits) get(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.n[key]
}

func (h *hits) total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, v := range h.n {
		n += v
	}
	return n
}

func matchTraderServer(t *testing.T, h *hits) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/mtr-backend/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":"tok","tradingAccounts":[
			{"tradingAccountId":"4242","tradingApiToken":"tt","offer":{"system":{"uuid":"sys-1"}}}]}`))
	})
	mux.HandleFunc("/mtr-api/sys-1/open-positions", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"positions":[
			{"id":"p1","symbol":"EURUSD","side":"BUY","volume":0.1},
			{"id":"p2","symbol":"GBPUSD","side":"SELL","volume":0.2},
			{"id":"p3","symbol":"XAUUSD","side":"BUY","volume":1}]}`))
	})
	mux.HandleFunc("/mtr-api/sys-1/position/close", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK"}`))
	})
	srv := httptest.NewServer(h.wrap(mux))
	t.Cleanup(srv.Close)
	return srv
}

func tradeLockerServer(t *testing.T, h *hits) *httptest.Server {
	srv := httptest.NewServer(h.wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "should not be called", http.StatusTeapot)
	})))
	t.Cleanup(srv.Close)
	return srv
}

func account(id, platform, baseURL string, symbols map[string][]string) config.Account {
	past := config.Duration(15 * time.Minute)
	future := config.Duration(24 * time.Hour)
	return config.Account{
		ID:             httpjson.FlexString(id),
		Platform:       platform,
		BaseURL:        baseURL + "/",
		Account:        "4242",
		Email:          "trader@example.com",
		Password:       "secret",
		Server:         "DEMO",
		PastDelta:      &past,
		FutureDelta:    &future,
		EventImpact:    []string{"high"},
		CountrySymbols: symbols,
	}
}

func TestTickAgainstFakePlatforms(t *testing.T) {
	var mtHits, tlHits hits
	mt := matchTraderServer(t, &mtHits)
	tl := tradeLockerServer(t, &tlHits)

	a := account("a", config.MatchTrader, mt.URL, map[string][]string{"USD": {"EURUSD", "GBPUSD"}})
	c := account("c", config.TradeLocker, tl.URL, map[string][]string{"JPY": {"USDJPY"}})

	cfg := &config.Config{Accounts: []config.Account{a, c}, HTTPTimeout: config.Duration(5 * time.Second)}

	accounts, err := orchestrator.FromConfig(cfg, nil)
	require.NoError(t, err)
	o := orchestrator.New(accounts, nil)

	now := time.Now().UTC()
	table := calendar.NewTable([]calendar.Event{
		calendar.NewEvent("USD", calendar.High, now.Add(2*time.Hour)),
		calendar.NewEvent("USD", calendar.Low, now.Add(time.Hour)),
	}, now)

	outs := o.Tick(context.Background(), table, now)
	require.Len(t, outs, 2)

	require.NoError(t, outs[0].Err)
	assert.True(t, outs[0].Acted)
	assert.Equal(t, 2, outs[0].Report.Matched)
	assert.Equal(t, []string{"p1", "p2"}, outs[0].Report.Closed)
	assert.Equal(t, 1, mtHits.get("POST /mtr-backend/login"))
	assert.Equal(t, 2, mtHits.get("POST /mtr-api/sys-1/position/close"))

	assert.False(t, outs[1].Acted)
	assert.Zero(t, tlHits.total())
}

func TestTickEmptyCalendarMakesNoCalls(t *testing.T) {
	var mtHits hits
	mt := matchTraderServer(t, &mtHits)

	a := account("a", config.MatchTrader, mt.URL, map[string][]string{"USD": {"EURUSD", "GBPUSD"}})
	cfg := &config.Config{Accounts: []config.Account{a}, HTTPTimeout: config.Duration(5 * time.Second)}

	accounts, err := orchestrator.FromConfig(cfg, nil)
	require.NoError(t, err)

	now := time.Now().UTC()
	outs := orchestrator.New(accounts, nil).Tick(context.Background(), calendar.NewTable(nil, now), now)
	require.Len(t, outs, 1)
	assert.False(t, outs[0].Acted)
	assert.Zero(t, mtHits.total())
}
