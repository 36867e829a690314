package adapter

import (
	"context"
	"math"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnState reports whether a streaming connection is currently usable.
// The BookStore treats snapshots from a down connection as stale.
type ConnState int32

const (
	ConnUp   ConnState = iota // healthy
	ConnDown                  // reconnecting
)

// WSConfig holds tunable parameters for a WSClient.
type WSConfig struct {
	URL string

	ReadBufferSize  int
	WriteBufferSize int

	// ReadTimeout is the maximum duration of silence before the client
	// considers the connection dead and reconnects. Depth streams push
	// every 100ms-1s, so a few seconds is plenty.
	ReadTimeout time.Duration

	BackoffInitial time.Duration
	BackoffMax     time.Duration
	BackoffFactor  float64

	Headers http.Header
}

// DefaultWSConfig returns defaults tuned for public depth streams.
func DefaultWSConfig(url string) WSConfig {
	return WSConfig{
		URL:             url,
		ReadBufferSize:  8192,
		WriteBufferSize: 4096,
		ReadTimeout:     10 * time.Second,
		BackoffInitial:  250 * time.Millisecond,
		BackoffMax:      30 * time.Second,
		BackoffFactor:   2.0,
	}
}

// WSClient is a reconnecting WebSocket connection. Inbound frames are fanned
// out to subscribers; subscription frames registered with Replay are resent
// after every reconnect so streams survive connection loss.
type WSClient struct {
	cfg WSConfig

	state atomic.Int32

	mu   sync.RWMutex
	conn *websocket.Conn

	subMu sync.RWMutex
	subs  []chan []byte

	replayMu sync.Mutex
	replay   [][]byte

	outbox chan []byte

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	// onReconnect is called after each successful reconnection (testing hook).
	onReconnect func()
}

// NewWSClient creates a new WebSocket client. Call Connect to start.
func NewWSClient(cfg WSConfig) *WSClient {
	ws := &WSClient{
		cfg:    cfg,
		outbox: make(chan []byte, 256),
		done:   make(chan struct{}),
	}
	ws.state.Store(int32(ConnDown))
	return ws
}

// State returns the current connection state.
func (ws *WSClient) State() ConnState {
	return ConnState(ws.state.Load())
}

// Subscribe returns a channel that receives copies of every inbound message.
// The caller must drain the channel; slow subscribers lose messages.
func (ws *WSClient) Subscribe() <-chan []byte {
	ch := make(chan []byte, 512)
	ws.subMu.Lock()
	ws.subs = append(ws.subs, ch)
	ws.subMu.Unlock()
	return ch
}

// Send enqueues a message for delivery over the current connection.
func (ws *WSClient) Send(data []byte) {
	select {
	case ws.outbox <- data:
	default:
		log.Warn().Int("bytes", len(data)).Msg("ws: outbox full, dropping message")
	}
}

// Replay sends data now and again after every reconnect.
func (ws *WSClient) Replay(data []byte) {
	ws.replayMu.Lock()
	ws.replay = append(ws.replay, data)
	ws.replayMu.Unlock()
	ws.Send(data)
}

// Connect dials the endpoint and starts the read and write loops. It blocks
// until the initial connection succeeds or fails.
func (ws *WSClient) Connect(ctx context.Context) error {
	ctx, ws.cancel = context.WithCancel(ctx)

	if err := ws.dial(ctx); err != nil {
		ws.cancel()
		return err
	}
	ws.state.Store(int32(ConnUp))

	go ws.readLoop(ctx)
	go ws.writeLoop(ctx)

	return nil
}

// Close shuts down the client, closing the connection and all subscriber
// channels. It is safe to call more than once.
func (ws *WSClient) Close() {
	ws.closeOnce.Do(func() {
		if ws.cancel != nil {
			ws.cancel()
		}
		ws.mu.Lock()
		if ws.conn != nil {
			ws.conn.Close()
		}
		ws.mu.Unlock()

		ws.subMu.Lock()
		for _, ch := range ws.subs {
			close(ch)
		}
		ws.subs = nil
		ws.subMu.Unlock()

		ws.state.Store(int32(ConnDown))
		close(ws.done)
	})
}

// Done returns a channel that is closed when the client has shut down.
func (ws *WSClient) Done() <-chan struct{} {
	return ws.done
}

func (ws *WSClient) dial(ctx context.Context) error {
	dialer := websocket.Dialer{
		ReadBufferSize:   ws.cfg.ReadBufferSize,
		WriteBufferSize:  ws.cfg.WriteBufferSize,
		HandshakeTimeout: 10 * time.Second,
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			d := net.Dialer{}
			conn, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			if tc, ok := conn.(*net.TCPConn); ok {
				tc.SetNoDelay(true)
			}
			return conn, nil
		},
	}

	ws.mu.RLock()
	url := ws.cfg.URL
	ws.mu.RUnlock()

	conn, _, err := dialer.DialContext(ctx, url, ws.cfg.Headers)
	if err != nil {
		return err
	}

	ws.mu.Lock()
	ws.conn = conn
	ws.mu.Unlock()
	return nil
}

// reconnect retries with exponential backoff until a connection is
// re-established or ctx is cancelled, then replays subscriptions.
func (ws *WSClient) reconnect(ctx context.Context) bool {
	ws.state.Store(int32(ConnDown))

	delay := ws.cfg.BackoffInitial
	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		if err := ws.dial(ctx); err != nil {
			log.Warn().Err(err).Dur("retry_in", delay).Msg("ws: reconnect failed")
			delay = time.Duration(math.Min(
				float64(delay)*ws.cfg.BackoffFactor,
				float64(ws.cfg.BackoffMax),
			))
			continue
		}

		ws.state.Store(int32(ConnUp))

		ws.replayMu.Lock()
		for _, msg := range ws.replay {
			ws.Send(msg)
		}
		ws.replayMu.Unlock()

		if ws.onReconnect != nil {
			ws.onReconnect()
		}
		return true
	}
}

// readLoop reads frames and fans them out. Silence longer than ReadTimeout
// is treated as a dead connection.
func (ws *WSClient) readLoop(ctx context.Context) {
	for {
		ws.mu.RLock()
		c := ws.conn
		ws.mu.RUnlock()

		c.SetReadDeadline(time.Now().Add(ws.cfg.ReadTimeout))
		_, msg, err := c.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("url", ws.cfg.URL).Msg("ws: read error, reconnecting")
			c.Close()
			if !ws.reconnect(ctx) {
				return
			}
			continue
		}

		ws.fanOut(msg)
	}
}

func (ws *WSClient) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-ws.outbox:
			ws.mu.RLock()
			c := ws.conn
			ws.mu.RUnlock()
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Msg("ws: write error")
			}
		}
	}
}

func (ws *WSClient) fanOut(msg []byte) {
	ws.subMu.RLock()
	defer ws.subMu.RUnlock()

	for _, ch := range ws.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}
