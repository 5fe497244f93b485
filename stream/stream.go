// Package stream relays market-data ticks from the backend's WebSocket feed
// to in-process subscribers, reconnecting with capped exponential backoff
// when the feed drops.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	defaultMinWait = 500 * time.Millisecond
	defaultMaxWait = 30 * time.Second

	// Slow subscribers drop ticks rather than stall the relay.
	subscriberBuffer = 64
)

// Tick is one market-data update for a symbol.
type Tick struct {
	Symbol    string  `json:"symbol"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Last      float64 `json:"last"`
	Timestamp int64   `json:"timestamp"`
}

type feedMessage struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols,omitempty"`
	Tick    *Tick    `json:"tick,omitempty"`
}

// TokenSource supplies the current session token for the feed handshake.
// *session.Store satisfies it.
type TokenSource interface {
	Token() string
}

// Relay maintains one WebSocket connection to the market-data feed and fans
// ticks out to per-symbol subscribers.
type Relay struct {
	url     string
	tokens  TokenSource
	logger  *slog.Logger
	dialer  *websocket.Dialer
	minWait time.Duration
	maxWait time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
	subs map[string]map[chan Tick]struct{}
	last map[string]Tick
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

// WithBackoff sets the reconnect backoff bounds.
func WithBackoff(min, max time.Duration) RelayOption {
	return func(r *Relay) {
		r.minWait = min
		r.maxWait = max
	}
}

// WithRelayLogger sets the structured logger.
func WithRelayLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		r.logger = logger
	}
}

// NewRelay creates a relay for the given ws:// or wss:// feed URL.
func NewRelay(url string, tokens TokenSource, opts ...RelayOption) *Relay {
	r := &Relay{
		url:     url,
		tokens:  tokens,
		logger:  slog.Default(),
		dialer:  websocket.DefaultDialer,
		minWait: defaultMinWait,
		maxWait: defaultMaxWait,
		subs:    make(map[string]map[chan Tick]struct{}),
		last:    make(map[string]Tick),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers interest in a symbol. The returned channel receives
// ticks until cancel is called; if a last tick for the symbol is cached it
// is delivered immediately.
func (r *Relay) Subscribe(symbol string) (<-chan Tick, func()) {
	ch := make(chan Tick, subscriberBuffer)

	r.mu.Lock()
	if r.subs[symbol] == nil {
		r.subs[symbol] = make(map[chan Tick]struct{})
		r.sendLocked(feedMessage{Type: "subscribe", Symbols: []string{symbol}})
	}
	r.subs[symbol][ch] = struct{}{}
	if tick, ok := r.last[symbol]; ok {
		ch <- tick
	}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		set, ok := r.subs[symbol]
		if !ok {
			return
		}
		if _, ok := set[ch]; !ok {
			return
		}
		delete(set, ch)
		close(ch)
		if len(set) == 0 {
			delete(r.subs, symbol)
			r.sendLocked(feedMessage{Type: "unsubscribe", Symbols: []string{symbol}})
		}
	}
	return ch, cancel
}

// LastTick returns the most recent tick seen for a symbol.
func (r *Relay) LastTick(symbol string) (Tick, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tick, ok := r.last[symbol]
	return tick, ok
}

// Run connects to the feed and relays ticks until the context is cancelled.
// Connection loss triggers reconnects with exponential backoff, doubled on
// each failure and capped at the configured maximum; a successful connect
// resets it.
func (r *Relay) Run(ctx context.Context) error {
	wait := r.minWait
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := r.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn("market feed disconnected, reconnecting",
			"error", err, slog.Duration("backoff", wait))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
		if wait > r.maxWait {
			wait = r.maxWait
		}
	}
}

func (r *Relay) runOnce(ctx context.Context) error {
	header := http.Header{}
	if token := r.tokens.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := r.dialer.DialContext(ctx, r.url, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	r.mu.Lock()
	r.conn = conn
	symbols := make([]string, 0, len(r.subs))
	for symbol := range r.subs {
		symbols = append(symbols, symbol)
	}
	if len(symbols) > 0 {
		r.sendLocked(feedMessage{Type: "subscribe", Symbols: symbols})
	}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.conn = nil
		r.mu.Unlock()
	}()

	// Close the connection when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg feedMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			r.logger.Warn("dropping unparseable feed message", "error", err)
			continue
		}
		if msg.Type == "tick" && msg.Tick != nil {
			r.dispatch(*msg.Tick)
		}
	}
}

func (r *Relay) dispatch(tick Tick) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[tick.Symbol] = tick
	for ch := range r.subs[tick.Symbol] {
		select {
		case ch <- tick:
		default:
			// Subscriber is not keeping up; drop the tick.
		}
	}
}

// sendLocked writes a control message if connected. Callers hold r.mu.
func (r *Relay) sendLocked(msg feedMessage) {
	if r.conn == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = r.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := r.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		r.logger.Warn("writing feed control message failed", "error", err)
	}
}
