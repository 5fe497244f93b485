package stream_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/tradewire/stream"
)

type staticTokens string

func (s staticTokens) Token() string { return string(s) }

// feedServer is a minimal market-data feed that pushes ticks for every
// subscribed symbol.
type feedServer struct {
	upgrader websocket.Upgrader
	ticks    chan stream.Tick
	auth     atomic.Value // last Authorization header
	conns    atomic.Int32
}

func newFeedServer() *feedServer {
	return &feedServer{ticks: make(chan stream.Tick, 16)}
}

func (f *feedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.auth.Store(r.Header.Get("Authorization"))
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.conns.Add(1)
	defer conn.Close()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for tick := range f.ticks {
		msg := map[string]any{"type": "tick", "tick": tick}
		data, _ := json.Marshal(msg)
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRelay_DeliversTicksToSubscribers(t *testing.T) {
	feed := newFeedServer()
	srv := httptest.NewServer(feed)
	defer srv.Close()

	relay := stream.NewRelay(wsURL(srv), staticTokens("tok-feed"),
		stream.WithBackoff(10*time.Millisecond, 100*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = relay.Run(ctx) }()

	ch, unsubscribe := relay.Subscribe("AAPL")
	defer unsubscribe()

	// Wait for the connection before pushing.
	require.Eventually(t, func() bool { return feed.conns.Load() > 0 }, 2*time.Second, 10*time.Millisecond)

	want := stream.Tick{Symbol: "AAPL", Bid: 185.1, Ask: 185.2, Last: 185.15, Timestamp: 1700000000}
	feed.ticks <- want

	select {
	case got := <-ch:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
	}

	assert.Equal(t, "Bearer tok-feed", feed.auth.Load())

	last, ok := relay.LastTick("AAPL")
	require.True(t, ok)
	assert.Equal(t, want, last)
}

func TestRelay_SubscribeReplaysLastTick(t *testing.T) {
	feed := newFeedServer()
	srv := httptest.NewServer(feed)
	defer srv.Close()

	relay := stream.NewRelay(wsURL(srv), staticTokens(""),
		stream.WithBackoff(10*time.Millisecond, 100*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = relay.Run(ctx) }()

	first, unsub1 := relay.Subscribe("BTC-USD")
	defer unsub1()
	require.Eventually(t, func() bool { return feed.conns.Load() > 0 }, 2*time.Second, 10*time.Millisecond)

	feed.ticks <- stream.Tick{Symbol: "BTC-USD", Last: 64000}
	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial tick")
	}

	// A later subscriber sees the cached tick immediately.
	late, unsub2 := relay.Subscribe("BTC-USD")
	defer unsub2()
	select {
	case got := <-late:
		assert.Equal(t, float64(64000), got.Last)
	case <-time.After(time.Second):
		t.Fatal("expected replay of last tick")
	}
}

func TestRelay_ReconnectsAfterDrop(t *testing.T) {
	feed := newFeedServer()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f := feed
		f.auth.Store(r.Header.Get("Authorization"))
		conn, err := f.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.conns.Add(1)
		// Drop the first connection immediately; hold later ones open.
		if f.conns.Load() == 1 {
			conn.Close()
			return
		}
		for tick := range f.ticks {
			data, _ := json.Marshal(map[string]any{"type": "tick", "tick": tick})
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	relay := stream.NewRelay(wsURL(srv), staticTokens(""),
		stream.WithBackoff(10*time.Millisecond, 50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = relay.Run(ctx) }()

	ch, unsubscribe := relay.Subscribe("ETH-USD")
	defer unsubscribe()

	require.Eventually(t, func() bool { return feed.conns.Load() >= 2 }, 5*time.Second, 10*time.Millisecond)

	feed.ticks <- stream.Tick{Symbol: "ETH-USD", Last: 3200}
	select {
	case got := <-ch:
		assert.Equal(t, float64(3200), got.Last)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick after reconnect")
	}
}

func TestRelay_RunStopsOnContextCancel(t *testing.T) {
	feed := newFeedServer()
	srv := httptest.NewServer(feed)
	defer srv.Close()

	relay := stream.NewRelay(wsURL(srv), staticTokens(""),
		stream.WithBackoff(10*time.Millisecond, 50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, func() bool { return feed.conns.Load() > 0 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
