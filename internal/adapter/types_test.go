package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func lvl(price, size string) PriceLevel {
	return PriceLevel{Price: decimal.RequireFromString(price), Size: decimal.RequireFromString(size)}
}

func TestNormalize_SortsFiltersTruncates(t *testing.T) {
	book := Orderbook{
		Bids: []PriceLevel{lvl("99", "1"), lvl("101", "2"), lvl("0", "5"), lvl("100", "3"), lvl("98", "0")},
		Asks: []PriceLevel{lvl("103", "1"), lvl("102", "2"), lvl("-1", "1"), lvl("104", "3")},
	}

	got := Normalize(book, 2)

	if len(got.Bids) != 2 || len(got.Asks) != 2 {
		t.Fatalf("expected 2 levels per side, got %d bids %d asks", len(got.Bids), len(got.Asks))
	}
	if got.Bids[0].Price.String() != "101" || got.Bids[1].Price.String() != "100" {
		t.Fatalf("bids not sorted descending: %v", got.Bids)
	}
	if got.Asks[0].Price.String() != "102" || got.Asks[1].Price.String() != "103" {
		t.Fatalf("asks not sorted ascending: %v", got.Asks)
	}
}

func TestNormalize_ZeroLimitKeepsAll(t *testing.T) {
	book := Orderbook{Bids: []PriceLevel{lvl("1", "1"), lvl("2", "1"), lvl("3", "1")}}
	if got := Normalize(book, 0); len(got.Bids) != 3 {
		t.Fatalf("expected 3 bids, got %d", len(got.Bids))
	}
}

func TestParsePairs_SkipsMalformed(t *testing.T) {
	raw := [][]string{
		{"3000.5", "1.25"},
		{"abc", "1"},
		{"3001"},
		{"3002", "0.5", "0", "4"},
	}
	got := ParsePairs(raw)
	if len(got) != 2 {
		t.Fatalf("expected 2 levels, got %d: %v", len(got), got)
	}
	if got[1].Price.String() != "3002" || got[1].Size.String() != "0.5" {
		t.Fatalf("extra columns should be ignored, got %v", got[1])
	}
}

func TestRegistry_UnknownExchange(t *testing.T) {
	r := NewRegistry()
	r.Register(ExchangeBinance, FetcherFunc(func(ctx context.Context, symbol string, limit int) (Orderbook, error) {
		return Orderbook{}, nil
	}))
	r.Register(ExchangeOKX, FetcherFunc(func(ctx context.Context, symbol string, limit int) (Orderbook, error) {
		return Orderbook{}, nil
	}))

	if _, err := r.Get("kraken"); !errors.Is(err, ErrUnknownExchange) {
		t.Fatalf("expected ErrUnknownExchange, got %v", err)
	}
	if _, err := r.Get(ExchangeBinance); err != nil {
		t.Fatalf("Get(binance): %v", err)
	}

	ex := r.Exchanges()
	if len(ex) != 2 || ex[0] != ExchangeBinance || ex[1] != ExchangeOKX {
		t.Fatalf("unexpected registration order: %v", ex)
	}
}
