package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caesar-terminal/synthbook/internal/adapter"
)

// ErrUnresolvedSymbol is returned when a symbol cannot be split into base
// and quote, or when a chain breaks currency continuity.
var ErrUnresolvedSymbol = errors.New("unresolved symbol")

// quoteSuffixes are matched in priority order, so "USDT" wins over "USD".
var quoteSuffixes = []string{"USDT", "TRY", "USD", "EUR", "BTC", "ETH"}

// ContinuityError reports the first leg whose input currency does not match
// the previous leg's output currency.
type ContinuityError struct {
	Index int // zero-based leg index
	Leg   Leg
	Want  string // output currency of the previous leg
	Got   string // input currency of this leg
}

func (e *ContinuityError) Error() string {
	return fmt.Sprintf("leg %d (%s): expects %s but previous leg yields %s",
		e.Index+1, e.Leg, e.Got, e.Want)
}

func (e *ContinuityError) Is(target error) bool {
	return target == ErrUnresolvedSymbol
}

// Hop is a leg with its currencies resolved.
type Hop struct {
	Leg   Leg
	Base  string
	Quote string
}

// In is the currency a leg consumes: base when selling, quote when buying.
func (h Hop) In() string {
	if h.Leg.Side == Sell {
		return h.Base
	}
	return h.Quote
}

// Out is the currency a leg produces.
func (h Hop) Out() string {
	if h.Leg.Side == Sell {
		return h.Quote
	}
	return h.Base
}

// Resolver maps legs to venue sides and native symbols.
type Resolver struct {
	separators map[adapter.Exchange]string
}

// NewResolver creates a Resolver knowing the built-in venues' symbol
// spellings.
func NewResolver() *Resolver {
	return &Resolver{separators: map[adapter.Exchange]string{
		adapter.ExchangeBinance:  "",
		adapter.ExchangeCoinTR:   "",
		adapter.ExchangeWhiteBit: "_",
		adapter.ExchangeOKX:      "-",
	}}
}

// ResolveSide returns the book side a leg trades against: sellers hit bids,
// buyers lift asks.
func (r *Resolver) ResolveSide(_ adapter.Exchange, side Side) BookSide {
	if side == Sell {
		return BookBids
	}
	return BookAsks
}

// FormatSymbol spells a canonical symbol ("ETHUSDT", "ETH/USDT") the way the
// exchange expects it. Unknown exchanges and unsplittable symbols are
// returned unchanged so the fetch can fail explicitly.
func (r *Resolver) FormatSymbol(exchange adapter.Exchange, canonical string) string {
	sep, ok := r.separators[exchange]
	if !ok {
		return canonical
	}
	base, quote, err := r.SplitSymbol(canonical)
	if err != nil {
		return canonical
	}
	return base + sep + quote
}

// SplitSymbol splits a symbol in any venue spelling into base and quote.
func (r *Resolver) SplitSymbol(symbol string) (base, quote string, err error) {
	s := strings.ToUpper(symbol)
	s = strings.NewReplacer("-", "", "_", "", "/", "").Replace(s)

	for _, q := range quoteSuffixes {
		if strings.HasSuffix(s, q) && len(s)-len(q) >= 2 {
			return s[:len(s)-len(q)], q, nil
		}
	}
	if len(s) >= 6 {
		return s[:len(s)-3], s[len(s)-3:], nil
	}
	return "", "", fmt.Errorf("%w: %q", ErrUnresolvedSymbol, symbol)
}

// ResolveChain splits every leg's symbol and checks that each leg consumes
// what the previous one produces.
func (r *Resolver) ResolveChain(legs []Leg) ([]Hop, error) {
	hops := make([]Hop, len(legs))
	for i, leg := range legs {
		base, quote, err := r.SplitSymbol(leg.Symbol)
		if err != nil {
			return nil, fmt.Errorf("leg %d: %w", i+1, err)
		}
		hops[i] = Hop{Leg: leg, Base: base, Quote: quote}

		if i > 0 && hops[i-1].Out() != hops[i].In() {
			return nil, &ContinuityError{Index: i, Leg: leg, Want: hops[i-1].Out(), Got: hops[i].In()}
		}
	}
	return hops, nil
}
