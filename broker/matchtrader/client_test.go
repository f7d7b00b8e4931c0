package matchtrader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/killswitch/broker"
	"github.com/rustyeddy/killswitch/internal/httpjson"
)

const loginBody = `{
  "token": "platform-token",
  "tradingAccounts": [
    {"tradingAccountId": "999", "tradingApiToken": "other", "offer": {"system": {"uuid": "sys-other"}}},
    {"tradingAccountId": 4242, "tradingApiToken": "trading-token", "offer": {"system": {"uuid": "sys-1"}}}
  ]
}`

const positionsBody = `{"positions": [
  {"id": "p1", "symbol": "EURUSD", "side": "BUY", "volume": 0.10},
  {"id": "p2", "symbol": "GBPUSD", "side": "SELL", "volume": "1.5"},
  {"id": "p3", "symbol": "USDJPY", "side": "BUY", "volume": 2}
]}`

type fakePlatform struct {
	mu       sync.Mutex
	closes   []closeRequest
	rejectID string
}

func (f *fakePlatform) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mtr-backend/login", func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "secret" {
			http.Error(w, `{"error":"bad credentials"}`, http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "0", req.BrokerID)
		_, _ = w.Write([]byte(loginBody))
	})
	mux.HandleFunc("/mtr-api/sys-1/open-positions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "platform-token", r.Header.Get("Authorization"))
		assert.Equal(t, "trading-token", r.Header.Get("Auth-Trading-Api"))
		_, _ = w.Write([]byte(positionsBody))
	})
	mux.HandleFunc("/mtr-api/sys-1/position/close", func(w http.ResponseWriter, r *http.Request) {
		var req closeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.closes = append(f.closes, req)
		f.mu.Unlock()
		if req.PositionID == f.rejectID {
			_, _ = w.Write([]byte(`{"status":"FAILED","errorMessage":"market closed"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"OK","errorMessage":null}`))
	})
	return mux
}

func newClient(t *testing.T, f *fakePlatform, password string) *Client {
	t.Helper()
	server := httptest.NewServer(f.handler(t))
	t.Cleanup(server.Close)

	return New(Config{
		BaseURL:   server.URL + "/",
		Email:     "trader@example.com",
		Password:  password,
		AccountID: "4242",
	}, httpjson.New(server.URL+"/", 5*time.Second, 0), nil)
}

func TestLoginSelectsTradingAccount(t *testing.T) {
	t.Parallel()

	c := newClient(t, &fakePlatform{}, "secret")
	require.NoError(t, c.Login(context.Background()))
	require.NotNil(t, c.session)
	assert.Equal(t, "sys-1", c.session.systemUUID)
	assert.Equal(t, "trading-token", c.session.tradingToken)
	assert.Equal(t, "platform-token", c.session.token)
}

func TestLoginFailures(t *testing.T) {
	t.Parallel()

	t.Run("rejected credentials", func(t *testing.T) {
		c := newClient(t, &fakePlatform{}, "wrong")
		err := c.Login(context.Background())
		assert.ErrorIs(t, err, broker.ErrAuthFailed)
		assert.Nil(t, c.session)

		_, err = c.OpenPositions(context.Background())
		assert.ErrorIs(t, err, broker.ErrNotAuthenticated)
	})

	t.Run("unknown account clears previous session", func(t *testing.T) {
		c := newClient(t, &fakePlatform{}, "secret")
		require.NoError(t, c.Login(context.Background()))

		c.cfg.AccountID = "missing"
		err := c.Login(context.Background())
		assert.ErrorIs(t, err, broker.ErrAuthFailed)
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.Nil(t, c.session)
	})
}

func TestOpenPositions(t *testing.T) {
	t.Parallel()

	c := newClient(t, &fakePlatform{}, "secret")
	require.NoError(t, c.Login(context.Background()))

	got, err := c.OpenPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "p2", got[1].ID)
	assert.Equal(t, broker.Sell, got[1].Side)
	assert.Equal(t, "1.5", got[1].Volume.String())
}

func TestClosePositionsBySymbol(t *testing.T) {
	t.Parallel()

	f := &fakePlatform{}
	c := newClient(t, f, "secret")
	require.NoError(t, c.Login(context.Background()))

	report, err := c.ClosePositions(context.Background(), broker.NewSymbolFilter("EURUSD", "GBPUSD"))
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, report.Closed)

	require.Len(t, f.closes, 2)
	assert.Equal(t, closeRequest{OrderSide: "BUY", PositionID: "p1", Volume: "0.1", Instrument: "EURUSD"}, f.closes[0])
	assert.Equal(t, "SELL", f.closes[1].OrderSide)
	assert.Equal(t, json.Number("1.5"), f.closes[1].Volume)
}

func TestClosePositionsContinuesAfterRejection(t *testing.T) {
	t.Parallel()

	f := &fakePlatform{rejectID: "p2"}
	c := newClient(t, f, "secret")
	require.NoError(t, c.Login(context.Background()))

	report, err := c.ClosePositions(context.Background(), broker.NewSymbolFilter(broker.All))
	require.NoError(t, err)
	assert.Len(t, f.closes, 3)
	assert.Equal(t, []string{"p1", "p3"}, report.Closed)
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0].Err, broker.ErrRejected)
}

func TestClosePositionsWithoutLogin(t *testing.T) {
	t.Parallel()

	f := &fakePlatform{}
	c := newClient(t, f, "secret")

	_, err := c.ClosePositions(context.Background(), broker.NewSymbolFilter())
	assert.ErrorIs(t, err, broker.ErrNotAuthenticated)
	assert.Empty(t, f.closes)
}
