package engine

import (
	"github.com/shopspring/decimal"

	"github.com/caesar-terminal/synthbook/internal/adapter"
)

// DefaultCommissionBps applies to exchanges without a configured rate.
const DefaultCommissionBps = 10

var bpsUnit = decimal.New(1, -4)

// CommissionTable holds per-exchange taker commission in basis points. It
// is built at startup and read-only afterwards.
type CommissionTable struct {
	rates map[adapter.Exchange]decimal.Decimal
	def   decimal.Decimal
}

// NewCommissionTable copies rates; def is used for any other exchange.
func NewCommissionTable(rates map[adapter.Exchange]decimal.Decimal, def decimal.Decimal) *CommissionTable {
	ct := &CommissionTable{rates: make(map[adapter.Exchange]decimal.Decimal, len(rates)), def: def}
	for ex, bps := range rates {
		ct.rates[ex] = bps
	}
	return ct
}

// DefaultCommissionTable returns the standard venue rates.
func DefaultCommissionTable() *CommissionTable {
	return NewCommissionTable(map[adapter.Exchange]decimal.Decimal{
		adapter.ExchangeBinance:  decimal.NewFromInt(10),
		adapter.ExchangeCoinTR:   decimal.NewFromInt(15),
		adapter.ExchangeWhiteBit: decimal.NewFromInt(10),
		adapter.ExchangeOKX:      decimal.NewFromInt(10),
	}, decimal.NewFromInt(DefaultCommissionBps))
}

// RateBps never fails: unknown exchanges get the default rate.
func (c *CommissionTable) RateBps(exchange adapter.Exchange) decimal.Decimal {
	if bps, ok := c.rates[exchange]; ok {
		return bps
	}
	return c.def
}

// Factor returns 1 + bps × 0.0001.
func (c *CommissionTable) Factor(exchange adapter.Exchange) decimal.Decimal {
	return BpsFactor(c.RateBps(exchange))
}

// Default returns the rate for unconfigured exchanges.
func (c *CommissionTable) Default() decimal.Decimal {
	return c.def
}

// Rates returns a copy of the configured per-exchange rates.
func (c *CommissionTable) Rates() map[adapter.Exchange]decimal.Decimal {
	out := make(map[adapter.Exchange]decimal.Decimal, len(c.rates))
	for ex, bps := range c.rates {
		out[ex] = bps
	}
	return out
}

// BpsFactor converts basis points to a multiplier.
func BpsFactor(bps decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Add(bps.Mul(bpsUnit))
}
