package adapter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Exchange identifies the source of market data.
type Exchange string

const (
	ExchangeBinance  Exchange = "binance"
	ExchangeCoinTR   Exchange = "cointr"
	ExchangeWhiteBit Exchange = "whitebit"
	ExchangeOKX      Exchange = "okx"
)

// KnownExchanges lists every venue with a built-in adapter, in display order.
var KnownExchanges = []Exchange{ExchangeBinance, ExchangeCoinTR, ExchangeWhiteBit, ExchangeOKX}

var (
	ErrUnknownExchange = errors.New("unknown exchange")
	ErrSymbolNotFound  = errors.New("symbol not found")
	ErrBadResponse     = errors.New("unexpected exchange response")
)

// PriceLevel represents a single bid or ask at a given price. Size is in
// base-currency units.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"amount"`
}

// Orderbook is the unified order book snapshot used across all exchange
// adapters. Bids are sorted by descending price, asks by ascending price.
// Downstream consumers (engine, API) operate on this type regardless of
// origin and treat it as read-only.
type Orderbook struct {
	Exchange  Exchange     `json:"exchange"`
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp time.Time    `json:"timestamp"`
}

// Fetcher retrieves a normalised order book for a venue-native symbol.
type Fetcher interface {
	FetchOrderbook(ctx context.Context, symbol string, limit int) (Orderbook, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, symbol string, limit int) (Orderbook, error)

func (f FetcherFunc) FetchOrderbook(ctx context.Context, symbol string, limit int) (Orderbook, error) {
	return f(ctx, symbol, limit)
}

// Registry maps exchanges to their fetchers. It is populated at startup and
// read-only afterwards.
type Registry struct {
	fetchers map[Exchange]Fetcher
	order    []Exchange
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[Exchange]Fetcher)}
}

// Register adds or replaces the fetcher for an exchange. Must be called
// before the registry is shared.
func (r *Registry) Register(exchange Exchange, f Fetcher) {
	if _, ok := r.fetchers[exchange]; !ok {
		r.order = append(r.order, exchange)
	}
	r.fetchers[exchange] = f
}

// Get returns the fetcher for an exchange.
func (r *Registry) Get(exchange Exchange) (Fetcher, error) {
	f, ok := r.fetchers[exchange]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExchange, exchange)
	}
	return f, nil
}

// Exchanges returns the registered exchanges in registration order.
func (r *Registry) Exchanges() []Exchange {
	out := make([]Exchange, len(r.order))
	copy(out, r.order)
	return out
}

// Normalize drops non-positive levels, sorts bids descending and asks
// ascending, and truncates both sides to limit (limit <= 0 keeps all).
func Normalize(book Orderbook, limit int) Orderbook {
	book.Bids = cleanLevels(book.Bids)
	book.Asks = cleanLevels(book.Asks)

	sort.SliceStable(book.Bids, func(i, j int) bool {
		return book.Bids[i].Price.GreaterThan(book.Bids[j].Price)
	})
	sort.SliceStable(book.Asks, func(i, j int) bool {
		return book.Asks[i].Price.LessThan(book.Asks[j].Price)
	})

	if limit > 0 {
		if len(book.Bids) > limit {
			book.Bids = book.Bids[:limit]
		}
		if len(book.Asks) > limit {
			book.Asks = book.Asks[:limit]
		}
	}
	return book
}

func cleanLevels(levels []PriceLevel) []PriceLevel {
	out := make([]PriceLevel, 0, len(levels))
	for _, l := range levels {
		if !l.Price.IsPositive() || !l.Size.IsPositive() {
			continue
		}
		out = append(out, l)
	}
	return out
}

// ParsePairs converts the array-pair wire shape ([["price","size",...]])
// used by most venues into PriceLevels. Malformed entries are skipped.
func ParsePairs(raw [][]string) []PriceLevel {
	levels := make([]PriceLevel, 0, len(raw))
	for _, r := range raw {
		if len(r) < 2 {
			continue
		}
		p, err := decimal.NewFromString(r[0])
		if err != nil {
			continue
		}
		s, err := decimal.NewFromString(r[1])
		if err != nil {
			continue
		}
		levels = append(levels, PriceLevel{Price: p, Size: s})
	}
	return levels
}
