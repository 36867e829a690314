package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ConnWatcher reports the health of a streaming connection. *WSClient
// satisfies it.
type ConnWatcher interface {
	State() ConnState
}

// storedBook is the latest streamed snapshot for one (exchange, symbol).
type storedBook struct {
	book     Orderbook
	received time.Time
}

// BookStore keeps the latest streamed snapshot of every book seen on the
// Broadcaster and serves fetches from it while it is fresh. A snapshot is
// fresh when it arrived less than staleAfter ago and the venue's stream
// connection is up.
type BookStore struct {
	bc         *Broadcaster
	staleAfter time.Duration

	mu    sync.RWMutex
	books map[bookKey]storedBook
	conns map[Exchange]ConnWatcher

	// OnServe is called with true when a fetch is answered from the stream
	// and false when it falls back (optional, used for metrics).
	OnServe func(exchange Exchange, hit bool)

	// FullDepth is the number of levels per side every streamed snapshot
	// carries. A full-depth snapshot serves any larger limit truncated to
	// what it holds. Zero requires limit levels on both sides.
	FullDepth int

	nowFunc func() time.Time
}

// NewBookStore creates a BookStore fed by bc.
func NewBookStore(bc *Broadcaster, staleAfter time.Duration) *BookStore {
	return &BookStore{
		bc:         bc,
		staleAfter: staleAfter,
		books:      make(map[bookKey]storedBook),
		conns:      make(map[Exchange]ConnWatcher),
		nowFunc:    time.Now,
	}
}

// WatchConnection ties an exchange's snapshots to a stream connection.
// While the connection is down every snapshot of that exchange is stale.
func (s *BookStore) WatchConnection(exchange Exchange, conn ConnWatcher) {
	s.mu.Lock()
	s.conns[exchange] = conn
	s.mu.Unlock()
}

// Run consumes the Broadcaster's unified stream until ctx is cancelled.
func (s *BookStore) Run(ctx context.Context) {
	ch := s.bc.SubscribeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case book, ok := <-ch:
			if !ok {
				return
			}
			s.apply(book)
		}
	}
}

func (s *BookStore) apply(book Orderbook) {
	key := bookKey{Exchange: book.Exchange, Symbol: book.Symbol}
	s.mu.Lock()
	s.books[key] = storedBook{book: book, received: s.nowFunc()}
	s.mu.Unlock()
}

// Snapshot returns the latest snapshot for a book if it is fresh.
func (s *BookStore) Snapshot(exchange Exchange, symbol string) (Orderbook, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sb, ok := s.books[bookKey{Exchange: exchange, Symbol: symbol}]
	if !ok {
		return Orderbook{}, false
	}
	if conn, watched := s.conns[exchange]; watched && conn.State() != ConnUp {
		return Orderbook{}, false
	}
	if s.nowFunc().Sub(sb.received) > s.staleAfter {
		return Orderbook{}, false
	}
	return sb.book, true
}

// Wrap returns a Fetcher that answers from a fresh streamed snapshot when it
// holds at least limit levels on both sides (capped at FullDepth) and
// otherwise calls fallback.
func (s *BookStore) Wrap(exchange Exchange, fallback Fetcher) Fetcher {
	return FetcherFunc(func(ctx context.Context, symbol string, limit int) (Orderbook, error) {
		if book, ok := s.Snapshot(exchange, symbol); ok && deepEnough(book, limit, s.FullDepth) {
			s.served(exchange, true)
			return Normalize(book, limit), nil
		}
		s.served(exchange, false)
		log.Debug().
			Str("exchange", string(exchange)).
			Str("symbol", symbol).
			Msg("book store miss, fetching over rest")
		return fallback.FetchOrderbook(ctx, symbol, limit)
	})
}

func (s *BookStore) served(exchange Exchange, hit bool) {
	if s.OnServe != nil {
		s.OnServe(exchange, hit)
	}
}

func deepEnough(book Orderbook, limit, fullDepth int) bool {
	if limit <= 0 {
		return true
	}
	if fullDepth > 0 && limit > fullDepth {
		limit = fullDepth
	}
	return len(book.Bids) >= limit && len(book.Asks) >= limit
}
