package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServiceTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	sessions, clock := newTestSessions(t)
	loginTestSession(t, sessions, clock)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, sessions)
}

func TestWatchlistRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newServiceTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/watchlist":
			json.NewEncoder(w).Encode([]WatchlistEntry{
				{Symbol: "AAPL", Name: "Apple Inc.", AssetType: "equity"},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/watchlist":
			var req map[string]string
			json.NewDecoder(r.Body).Decode(&req)
			assert.Equal(t, "TSLA", req["symbol"])
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodDelete && r.URL.Path == "/watchlist/AAPL":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	entries, err := c.Watchlist(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "AAPL", entries[0].Symbol)

	require.NoError(t, c.AddToWatchlist(ctx, "TSLA"))
	require.NoError(t, c.RemoveFromWatchlist(ctx, "AAPL"))
}

func TestPlaceAndListOrders(t *testing.T) {
	ctx := context.Background()
	c := newServiceTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/orders":
			var req OrderRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			json.NewEncoder(w).Encode(Order{
				ID: "ord-1", Symbol: req.Symbol, Side: req.Side,
				Type: req.Type, Quantity: req.Quantity, Status: "open",
			})
		case r.Method == http.MethodGet && r.URL.Path == "/orders":
			assert.Equal(t, "open", r.URL.Query().Get("status"))
			json.NewEncoder(w).Encode([]Order{{ID: "ord-1", Status: "open"}})
		case r.Method == http.MethodDelete && r.URL.Path == "/orders/ord-1":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	order, err := c.PlaceOrder(ctx, OrderRequest{
		Symbol: "AAPL", Side: "buy", Type: "limit", Quantity: "10", Price: "185.20",
	})
	require.NoError(t, err)
	assert.Equal(t, "ord-1", order.ID)

	orders, err := c.Orders(ctx, "open")
	require.NoError(t, err)
	require.Len(t, orders, 1)

	require.NoError(t, c.CancelOrder(ctx, "ord-1"))
}

func TestWalletAndTransactions(t *testing.T) {
	ctx := context.Background()
	c := newServiceTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wallet":
			json.NewEncoder(w).Encode(Wallet{
				Balances: []Balance{{Currency: "USD", Available: "1250.00"}},
			})
		case "/reports/transactions":
			assert.NotEmpty(t, r.URL.Query().Get("from"))
			assert.NotEmpty(t, r.URL.Query().Get("to"))
			json.NewEncoder(w).Encode([]Transaction{
				{ID: "tx-1", Kind: "deposit", Amount: "500.00", Currency: "USD"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	wallet, err := c.Wallet(ctx)
	require.NoError(t, err)
	require.Len(t, wallet.Balances, 1)
	assert.Equal(t, "USD", wallet.Balances[0].Currency)

	txs, err := c.Transactions(ctx, time.Now().Add(-24*time.Hour), time.Now())
	require.NoError(t, err)
	require.Len(t, txs, 1)
}
