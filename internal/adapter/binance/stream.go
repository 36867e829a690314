package binance

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/caesar-terminal/synthbook/internal/adapter"
)

const (
	DefaultStreamURL = "wss://stream.binance.com:9443/stream"

	// StreamLevels is the depth of every partial book snapshot.
	StreamLevels = 20
)

type subscribeMsg struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// combinedFrame is the envelope of the combined-stream endpoint.
type combinedFrame struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// Stream subscribes to <symbol>@depth20@100ms partial book snapshots and
// publishes each one as a normalised adapter.Orderbook. Every frame is a
// full top-20 snapshot, so no local book maintenance is needed.
type Stream struct {
	ws *adapter.WSClient

	updates chan adapter.Orderbook
	nextID  int64

	nowFunc func() time.Time
}

// NewStream creates a Stream backed by the given WSClient. The WSClient
// must point at the combined-stream endpoint.
func NewStream(ws *adapter.WSClient) *Stream {
	return &Stream{
		ws:      ws,
		updates: make(chan adapter.Orderbook, 256),
		nowFunc: time.Now,
	}
}

// Updates returns the channel of normalised snapshots.
func (s *Stream) Updates() <-chan adapter.Orderbook {
	return s.updates
}

// Subscribe requests partial depth for the given native symbols. The request
// is replayed after every reconnect.
func (s *Stream) Subscribe(symbols ...string) {
	if len(symbols) == 0 {
		return
	}
	params := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		params = append(params, streamName(sym))
	}
	s.nextID++
	msg, _ := json.Marshal(subscribeMsg{Method: "SUBSCRIBE", Params: params, ID: s.nextID})
	s.ws.Replay(msg)
}

// Run reads from the WSClient fan-out channel until ctx is cancelled.
func (s *Stream) Run(ctx context.Context) {
	sub := s.ws.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub:
			if !ok {
				return
			}
			s.handleMessage(raw)
		}
	}
}

func (s *Stream) handleMessage(raw []byte) {
	var frame combinedFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		log.Warn().Err(err).Msg("binance: invalid stream frame")
		return
	}
	// Subscription acks ({"result":null,"id":1}) carry no stream name.
	if frame.Stream == "" {
		return
	}

	var depth depthResponse
	if err := json.Unmarshal(frame.Data, &depth); err != nil {
		log.Warn().Err(err).Str("stream", frame.Stream).Msg("binance: failed to parse depth frame")
		return
	}

	book := adapter.Normalize(adapter.Orderbook{
		Exchange:  adapter.ExchangeBinance,
		Symbol:    symbolFromStream(frame.Stream),
		Bids:      adapter.ParsePairs(depth.Bids),
		Asks:      adapter.ParsePairs(depth.Asks),
		Timestamp: s.nowFunc(),
	}, 0)

	select {
	case s.updates <- book:
	default:
		log.Warn().Str("symbol", book.Symbol).Msg("binance: updates channel full, dropping snapshot")
	}
}

func streamName(symbol string) string {
	return strings.ToLower(symbol) + "@depth20@100ms"
}

func symbolFromStream(stream string) string {
	name, _, _ := strings.Cut(stream, "@")
	return strings.ToUpper(name)
}
