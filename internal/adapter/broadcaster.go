package adapter

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// UpdatesProvider is the interface that streaming adapters must satisfy
// to plug into the Broadcaster.
type UpdatesProvider interface {
	Updates() <-chan Orderbook
}

// bookKey identifies a book by exchange and venue-native symbol.
type bookKey struct {
	Exchange Exchange
	Symbol   string
}

// Broadcaster is a many-to-many hub that ingests streamed Orderbook snapshots
// from any number of adapters and distributes them to per-book subscribers and
// a unified "all" stream.
type Broadcaster struct {
	sources []<-chan Orderbook

	mu   sync.RWMutex
	subs map[bookKey][]chan Orderbook

	allMu  sync.RWMutex
	allSub []chan Orderbook

	// OnDrop is called whenever a subscriber is too slow to receive a
	// snapshot (optional, used for metrics).
	OnDrop func(exchange Exchange)
}

// NewBroadcaster creates a Broadcaster ready for adapter registration.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[bookKey][]chan Orderbook),
	}
}

// Register adds an adapter's update channel as a source. Must be called
// before Run.
func (b *Broadcaster) Register(provider UpdatesProvider) {
	b.sources = append(b.sources, provider.Updates())
}

// Subscribe returns a buffered channel that receives snapshots for one book.
func (b *Broadcaster) Subscribe(exchange Exchange, symbol string) <-chan Orderbook {
	ch := make(chan Orderbook, 64)
	key := bookKey{Exchange: exchange, Symbol: symbol}

	b.mu.Lock()
	b.subs[key] = append(b.subs[key], ch)
	b.mu.Unlock()

	return ch
}

// SubscribeAll returns a buffered channel that receives every snapshot
// regardless of exchange or symbol. The BookStore is the main consumer.
func (b *Broadcaster) SubscribeAll() <-chan Orderbook {
	ch := make(chan Orderbook, 512)

	b.allMu.Lock()
	b.allSub = append(b.allSub, ch)
	b.allMu.Unlock()

	return ch
}

// Run starts consuming from all registered sources and distributing
// snapshots. It blocks until ctx is cancelled or every source is closed.
func (b *Broadcaster) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for _, src := range b.sources {
		wg.Add(1)
		go func(ch <-chan Orderbook) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case book, ok := <-ch:
					if !ok {
						return
					}
					b.distribute(book)
				}
			}
		}(src)
	}

	wg.Wait()
}

// distribute is non-blocking: slow consumers get snapshots dropped. A later
// snapshot supersedes the dropped one, so nothing is lost for good.
func (b *Broadcaster) distribute(book Orderbook) {
	key := bookKey{Exchange: book.Exchange, Symbol: book.Symbol}

	b.mu.RLock()
	for _, ch := range b.subs[key] {
		select {
		case ch <- book:
		default:
			log.Debug().
				Str("exchange", string(book.Exchange)).
				Str("symbol", book.Symbol).
				Msg("broadcaster: dropping snapshot for slow subscriber")
			b.dropped(book.Exchange)
		}
	}
	b.mu.RUnlock()

	b.allMu.RLock()
	for _, ch := range b.allSub {
		select {
		case ch <- book:
		default:
			b.dropped(book.Exchange)
		}
	}
	b.allMu.RUnlock()
}

func (b *Broadcaster) dropped(exchange Exchange) {
	if b.OnDrop != nil {
		b.OnDrop(exchange)
	}
}
