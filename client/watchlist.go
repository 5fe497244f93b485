package client

import (
	"context"
	"fmt"
	"net/url"
)

// WatchlistEntry is one tracked asset on the user's watchlist.
type WatchlistEntry struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	AssetType string `json:"asset_type"`
}

// Quote is the latest price snapshot for a symbol.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Last      float64 `json:"last"`
	Currency  string  `json:"currency"`
	Timestamp int64   `json:"timestamp"`
}

// Watchlist returns the user's watchlist entries.
func (c *Client) Watchlist(ctx context.Context) ([]WatchlistEntry, error) {
	var entries []WatchlistEntry
	if err := c.get(ctx, "/watchlist", &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// AddToWatchlist adds a symbol to the user's watchlist.
func (c *Client) AddToWatchlist(ctx context.Context, symbol string) error {
	return c.post(ctx, "/watchlist", map[string]string{"symbol": symbol}, nil)
}

// RemoveFromWatchlist removes a symbol from the user's watchlist.
func (c *Client) RemoveFromWatchlist(ctx context.Context, symbol string) error {
	return c.delete(ctx, "/watchlist/"+url.PathEscape(symbol))
}

// Quote fetches the latest quote for a symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*Quote, error) {
	var q Quote
	if err := c.get(ctx, "/quotes/"+url.PathEscape(symbol), &q); err != nil {
		return nil, fmt.Errorf("fetching quote for %s: %w", symbol, err)
	}
	return &q, nil
}
