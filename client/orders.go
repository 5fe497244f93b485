package client

import (
	"context"
	"encoding/json"
	"net/url"
)

// OrderRequest is an order submission. Side, order type, and quantity
// semantics belong to the backend; Params carries any further
// broker-specific fields opaquely; nothing is computed locally.
type OrderRequest struct {
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"`
	Type     string          `json:"type"`
	Quantity string          `json:"quantity"`
	Price    string          `json:"price,omitempty"`
	Params   json.RawMessage `json:"params,omitempty"`
}

// Order is the backend's view of a placed order.
type Order struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	Type      string          `json:"type"`
	Quantity  string          `json:"quantity"`
	Price     string          `json:"price,omitempty"`
	Status    string          `json:"status"`
	CreatedAt int64           `json:"created_at"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// PlaceOrder submits an order to the backend.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	var o Order
	if err := c.post(ctx, "/orders", req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// CancelOrder cancels an open order by ID.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	return c.delete(ctx, "/orders/"+url.PathEscape(orderID))
}

// Orders lists the user's orders, optionally filtered by status.
func (c *Client) Orders(ctx context.Context, status string) ([]Order, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}
	var orders []Order
	if err := c.get(ctx, queryPath("/orders", params), &orders); err != nil {
		return nil, err
	}
	return orders, nil
}
