package engine

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/caesar-terminal/synthbook/internal/adapter"
)

// Precision is the number of decimal places of emitted prices and amounts.
const Precision = 8

// Composer turns a chain of leg order books into a synthetic ladder by
// walking each leg level by level. It is pure: inputs are never modified
// and identical inputs give identical output.
type Composer struct {
	resolver *Resolver
}

// NewComposer creates a Composer using r for side resolution.
func NewComposer(r *Resolver) *Composer {
	return &Composer{resolver: r}
}

// Compose builds both ladders. books and commissions (bps) are indexed like
// legs; a missing book is treated as empty. The result has no Pair set.
//
// Amounts flow in each leg's forward input units: a sell leg consumes base
// and yields quote (× price), a buy leg consumes quote and yields base
// (÷ price). The bid ladder reads each leg's resolved side, the ask ladder
// the opposite side. Downstream consumption is cumulative across ladder
// positions, so every emitted level is executable together with all levels
// before it.
func (c *Composer) Compose(legs []Leg, books []adapter.Orderbook, commissions []decimal.Decimal, depth int) SyntheticOrderbook {
	out := SyntheticOrderbook{Legs: make([]LegResult, len(legs))}

	factor := decimal.NewFromInt(1)
	for i, leg := range legs {
		bps := decimal.Zero
		if i < len(commissions) {
			bps = commissions[i]
		}
		factor = factor.Mul(BpsFactor(bps))
		out.Legs[i] = LegResult{Leg: leg, Available: true, CommissionBps: bps}
	}

	out.Bids = c.ladder(BookBids, legs, books, factor, depth, out.Legs)
	out.Asks = c.ladder(BookAsks, legs, books, factor, depth, out.Legs)
	return out
}

// ladder composes one target side. Legs with no levels on the side they
// need are marked unavailable in results and yield an empty ladder.
func (c *Composer) ladder(target BookSide, legs []Leg, books []adapter.Orderbook, factor decimal.Decimal, depth int, results []LegResult) []SyntheticLevel {
	if len(legs) == 0 {
		return nil
	}

	walks := make([]*hopBook, len(legs))
	empty := false
	for i, leg := range legs {
		side := c.resolver.ResolveSide(leg.Exchange, leg.Side)
		if target == BookAsks {
			side = side.Opposite()
		}

		var levels []adapter.PriceLevel
		if i < len(books) {
			levels = side.Levels(books[i])
		}
		if len(levels) == 0 {
			results[i].Available = false
			results[i].Reason = addReason(results[i].Reason, "no "+side.String())
			empty = true
			continue
		}
		walks[i] = &hopBook{side: leg.Side, levels: levels}
	}
	if empty {
		return nil
	}

	first := walks[0]
	downstream := walks[1:]

	var ladder []SyntheticLevel
	for k := 0; k < len(first.levels) && k < depth; k++ {
		start := first.levels[k]

		// Backward pass: the most each leg may take so that every leg after
		// it can absorb its output.
		var limit *decimal.Decimal
		for i := len(downstream) - 1; i >= 0; i-- {
			m := downstream[i].maxInput(limit)
			limit = &m
		}

		in := capacity(first.side, start)
		if limit != nil {
			if bound := invert(first.side, start, *limit); bound.LessThan(in) {
				in = bound
			}
		}
		if !in.IsPositive() {
			// A downstream leg is exhausted; no later position can fill either.
			break
		}

		// Forward pass commits the consumption.
		carried := convert(first.side, start, in)
		for _, h := range downstream {
			_, carried = h.consume(carried)
		}

		price := carried.Div(in).Mul(factor).Round(Precision)
		amount := in.Round(Precision)
		if !price.IsPositive() || !amount.IsPositive() {
			continue
		}
		ladder = append(ladder, SyntheticLevel{Price: price, Amount: amount})
	}
	return ladder
}

// hopBook is one leg's remaining liquidity on the side being read.
type hopBook struct {
	side   Side
	levels []adapter.PriceLevel
	cursor int
	used   decimal.Decimal // input already taken from levels[cursor]
}

// maxInput returns the largest input whose output does not exceed limit,
// bounded by the remaining liquidity. A nil limit means unbounded.
func (h *hopBook) maxInput(limit *decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	produced := decimal.Zero
	for j := h.cursor; j < len(h.levels); j++ {
		l := h.levels[j]
		avail := capacity(h.side, l)
		if j == h.cursor {
			avail = avail.Sub(h.used)
		}
		if !avail.IsPositive() {
			continue
		}
		if limit != nil {
			yield := convert(h.side, l, avail)
			if produced.Add(yield).GreaterThanOrEqual(*limit) {
				return total.Add(invert(h.side, l, limit.Sub(produced)))
			}
			produced = produced.Add(yield)
		}
		total = total.Add(avail)
	}
	return total
}

// consume takes up to in from the book, best level first, and returns the
// input actually filled and the output it produced.
func (h *hopBook) consume(in decimal.Decimal) (filled, produced decimal.Decimal) {
	for h.cursor < len(h.levels) && filled.LessThan(in) {
		l := h.levels[h.cursor]
		full := capacity(h.side, l)
		take := decimal.Min(full.Sub(h.used), in.Sub(filled))

		filled = filled.Add(take)
		produced = produced.Add(convert(h.side, l, take))
		h.used = h.used.Add(take)

		if h.used.GreaterThanOrEqual(full) {
			h.cursor++
			h.used = decimal.Zero
		}
	}
	return filled, produced
}

// capacity is a level's size in the leg's input units.
func capacity(side Side, l adapter.PriceLevel) decimal.Decimal {
	if side == Sell {
		return l.Size
	}
	return l.Size.Mul(l.Price)
}

// convert maps input units to output units at a level's price.
func convert(side Side, l adapter.PriceLevel, in decimal.Decimal) decimal.Decimal {
	if side == Sell {
		return in.Mul(l.Price)
	}
	return in.Div(l.Price)
}

// invert maps output units back to input units at a level's price.
func invert(side Side, l adapter.PriceLevel, out decimal.Decimal) decimal.Decimal {
	if side == Sell {
		return out.Div(l.Price)
	}
	return out.Mul(l.Price)
}

func addReason(reason, more string) string {
	if reason == "" {
		return more
	}
	if strings.Contains(reason, more) {
		return reason
	}
	return reason + "; " + more
}
