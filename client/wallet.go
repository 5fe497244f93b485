package client

import "context"

// Balance is one currency's holdings within the wallet.
type Balance struct {
	Currency  string `json:"currency"`
	Available string `json:"available"`
	Reserved  string `json:"reserved"`
}

// Wallet is the backend's balances snapshot.
type Wallet struct {
	Balances  []Balance `json:"balances"`
	UpdatedAt int64     `json:"updated_at"`
}

// Wallet fetches the current balances snapshot.
func (c *Client) Wallet(ctx context.Context) (*Wallet, error) {
	var w Wallet
	if err := c.get(ctx, "/wallet", &w); err != nil {
		return nil, err
	}
	return &w, nil
}
