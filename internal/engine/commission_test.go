package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/caesar-terminal/synthbook/internal/adapter"
)

func TestCommissionTable_Defaults(t *testing.T) {
	ct := DefaultCommissionTable()

	assert.True(t, ct.RateBps(adapter.ExchangeBinance).Equal(decimal.NewFromInt(10)))
	assert.True(t, ct.RateBps(adapter.ExchangeCoinTR).Equal(decimal.NewFromInt(15)))
	assert.True(t, ct.RateBps("kraken").Equal(decimal.NewFromInt(DefaultCommissionBps)), "unknown exchange falls back to default")
	assert.Equal(t, "1.0015", ct.Factor(adapter.ExchangeCoinTR).String())
}

func TestCommissionTable_IsolatedFromCaller(t *testing.T) {
	rates := map[adapter.Exchange]decimal.Decimal{adapter.ExchangeOKX: decimal.NewFromInt(8)}
	ct := NewCommissionTable(rates, decimal.NewFromInt(25))

	rates[adapter.ExchangeOKX] = decimal.NewFromInt(99)
	assert.True(t, ct.RateBps(adapter.ExchangeOKX).Equal(decimal.NewFromInt(8)))

	out := ct.Rates()
	out[adapter.ExchangeOKX] = decimal.NewFromInt(1)
	assert.True(t, ct.RateBps(adapter.ExchangeOKX).Equal(decimal.NewFromInt(8)))
	assert.True(t, ct.RateBps(adapter.ExchangeBinance).Equal(decimal.NewFromInt(25)))
}

func TestBpsFactor(t *testing.T) {
	assert.Equal(t, "1.0005", BpsFactor(decimal.NewFromInt(5)).String())
	assert.Equal(t, "1", BpsFactor(decimal.Zero).String())
}
