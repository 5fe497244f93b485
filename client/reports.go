package client

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// Transaction is one entry in the account's transaction history.
type Transaction struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Symbol    string `json:"symbol,omitempty"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Timestamp int64  `json:"timestamp"`
}

// Transactions fetches the transaction history for the given time range.
// Zero from/to mean an unbounded side.
func (c *Client) Transactions(ctx context.Context, from, to time.Time) ([]Transaction, error) {
	params := url.Values{}
	if !from.IsZero() {
		params.Set("from", strconv.FormatInt(from.Unix(), 10))
	}
	if !to.IsZero() {
		params.Set("to", strconv.FormatInt(to.Unix(), 10))
	}
	var txs []Transaction
	if err := c.get(ctx, queryPath("/reports/transactions", params), &txs); err != nil {
		return nil, err
	}
	return txs, nil
}
