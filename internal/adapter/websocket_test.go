package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newTestServer returns an httptest.Server that upgrades to WebSocket and
// echoes every message back to the client.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			mt, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := c.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestWSClient_Connect(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	client := NewWSClient(DefaultWSConfig(wsURL(srv)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	if client.State() != ConnUp {
		t.Fatalf("expected ConnUp after connect, got %d", client.State())
	}

	sub := client.Subscribe()
	client.Send([]byte("hello"))

	select {
	case msg := <-sub:
		if string(msg) != "hello" {
			t.Fatalf("expected 'hello', got %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for echoed message")
	}
}

func TestWSClient_ReconnectReplaysSubscriptions(t *testing.T) {
	srv := newTestServer(t)

	cfg := DefaultWSConfig(wsURL(srv))
	cfg.ReadTimeout = 200 * time.Millisecond
	cfg.BackoffInitial = 50 * time.Millisecond

	var reconnects atomic.Int32
	client := NewWSClient(cfg)
	client.onReconnect = func() { reconnects.Add(1) }

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	sub := client.Subscribe()
	client.Replay([]byte(`{"method":"SUBSCRIBE"}`))

	select {
	case <-sub:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial subscription echo")
	}

	srv.Close()

	time.Sleep(400 * time.Millisecond)
	if client.State() != ConnDown {
		t.Fatal("expected ConnDown after server close")
	}

	// The old port cannot be reused, so point the client at a new server.
	srv2 := newTestServer(t)
	defer srv2.Close()

	client.mu.Lock()
	client.cfg.URL = wsURL(srv2)
	client.mu.Unlock()

	deadline := time.After(3 * time.Second)
	for reconnects.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for reconnect")
		case <-time.After(50 * time.Millisecond):
		}
	}

	if client.State() != ConnUp {
		t.Fatal("expected ConnUp after reconnect")
	}

	// The echo server proves the subscription frame was resent.
	select {
	case msg := <-sub:
		if string(msg) != `{"method":"SUBSCRIBE"}` {
			t.Fatalf("unexpected replayed frame %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription was not replayed after reconnect")
	}
}

func TestWSClient_ReadTimeout(t *testing.T) {
	// Server accepts the connection but never sends anything.
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		time.Sleep(5 * time.Second)
	}))
	defer srv.Close()

	cfg := DefaultWSConfig(wsURL(srv))
	cfg.ReadTimeout = 200 * time.Millisecond
	cfg.BackoffInitial = time.Second

	client := NewWSClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	deadline := time.After(2 * time.Second)
	for client.State() != ConnDown {
		select {
		case <-deadline:
			t.Fatal("read timeout did not mark the connection down")
		case <-time.After(50 * time.Millisecond):
		}
	}
}
