package engine

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/caesar-terminal/synthbook/internal/adapter"
)

// Side is the direction a synthetic chain trades through one leg.
type Side uint8

const (
	Buy  Side = iota + 1
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Opposite returns the reverse trade direction.
func (s Side) Opposite() Side {
	switch s {
	case Buy:
		return Sell
	case Sell:
		return Buy
	default:
		return s
	}
}

// ParseSide maps "buy"/"sell" (any case) to a Side. Anything else yields
// the zero Side, which the Validator rejects.
func ParseSide(s string) Side {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return Buy
	case "sell":
		return Sell
	default:
		return 0
	}
}

// BookSide names one side of a venue order book.
type BookSide uint8

const (
	BookBids BookSide = iota + 1
	BookAsks
)

func (b BookSide) String() string {
	switch b {
	case BookBids:
		return "bids"
	case BookAsks:
		return "asks"
	default:
		return "unknown"
	}
}

// Opposite returns the other side of the book.
func (b BookSide) Opposite() BookSide {
	if b == BookBids {
		return BookAsks
	}
	return BookBids
}

// Levels returns the levels of book on this side.
func (b BookSide) Levels(book adapter.Orderbook) []adapter.PriceLevel {
	if b == BookBids {
		return book.Bids
	}
	return book.Asks
}

// Leg is one hop of a synthetic chain.
type Leg struct {
	Exchange adapter.Exchange
	Symbol   string
	Side     Side
}

func (l Leg) String() string {
	return fmt.Sprintf("%s:%s:%s", l.Exchange, l.Symbol, l.Side)
}

// LegResult records whether a leg could be used for a synthesis.
type LegResult struct {
	Leg           Leg
	Available     bool
	CommissionBps decimal.Decimal
	Reason        string
}

// SyntheticLevel is one rung of a synthetic ladder. Price is in the chain's
// output currency per unit of its input currency; Amount is in input units.
type SyntheticLevel struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// SyntheticOrderbook is the composed result for one request. Bids are
// descending, asks ascending.
type SyntheticOrderbook struct {
	Pair  string
	Base  string
	Quote string

	Bids []SyntheticLevel
	Asks []SyntheticLevel
	Legs []LegResult

	// Stages lists the post-composition markups applied, in order.
	Stages []Stage
}
