package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caesar-terminal/synthbook/internal/adapter"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func lv(price, size string) adapter.PriceLevel {
	return adapter.PriceLevel{Price: d(price), Size: d(size)}
}

func bps(vals ...int64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = decimal.NewFromInt(v)
	}
	return out
}

func sellChain() []Leg {
	return []Leg{
		{Exchange: adapter.ExchangeBinance, Symbol: "ETHUSDT", Side: Sell},
		{Exchange: adapter.ExchangeCoinTR, Symbol: "USDTTRY", Side: Sell},
	}
}

func newComposer() *Composer { return NewComposer(NewResolver()) }

func assertLevel(t *testing.T, lvl SyntheticLevel, price, amount string) {
	t.Helper()
	assert.True(t, lvl.Price.Equal(d(price)), "price: want %s, got %s", price, lvl.Price)
	assert.True(t, lvl.Amount.Equal(d(amount)), "amount: want %s, got %s", amount, lvl.Amount)
}

func TestCompose_ETHTRYScenario(t *testing.T) {
	books := []adapter.Orderbook{
		{Bids: []adapter.PriceLevel{lv("3000", "2")}, Asks: []adapter.PriceLevel{lv("3001", "1")}},
		{Bids: []adapter.PriceLevel{lv("34", "100000")}, Asks: []adapter.PriceLevel{lv("34.1", "100000")}},
	}

	got := newComposer().Compose(sellChain(), books, bps(5, 15), 20)

	require.Len(t, got.Bids, 1)
	assertLevel(t, got.Bids[0], "102204.0765", "2")

	require.Len(t, got.Asks, 1)
	assertLevel(t, got.Asks[0], "102538.84495058", "1")

	require.Len(t, got.Legs, 2)
	for _, lr := range got.Legs {
		assert.True(t, lr.Available, "leg %s", lr.Leg)
	}
	assert.True(t, got.Legs[0].CommissionBps.Equal(decimal.NewFromInt(5)))
	assert.True(t, got.Legs[1].CommissionBps.Equal(decimal.NewFromInt(15)))
}

func TestCompose_LevelZeroUsesWeightedSecondLeg(t *testing.T) {
	books := []adapter.Orderbook{
		{Bids: []adapter.PriceLevel{lv("3000", "2")}},
		{Bids: []adapter.PriceLevel{lv("34", "4000"), lv("33.9", "10000")}},
	}

	got := newComposer().Compose(sellChain(), books, bps(0, 0), 5)

	// 6000 USDT: 4000 @ 34 + 2000 @ 33.9 = 203800 TRY for 2 ETH.
	require.Len(t, got.Bids, 1)
	assertLevel(t, got.Bids[0], "101900", "2")
}

func TestCompose_TruncatesToDownstreamLiquidity(t *testing.T) {
	books := []adapter.Orderbook{
		{Bids: []adapter.PriceLevel{lv("3000", "2"), lv("2990", "5")}},
		{Bids: []adapter.PriceLevel{lv("34", "3000")}},
	}

	got := newComposer().Compose(sellChain(), books, bps(0, 0), 5)

	// Only 3000 USDT can be sold, which is 1 ETH at 3000; leg 2 is then
	// exhausted so no further level is emitted.
	require.Len(t, got.Bids, 1)
	assertLevel(t, got.Bids[0], "102000", "1")
}

func TestCompose_ConsumptionIsCumulative(t *testing.T) {
	books := []adapter.Orderbook{
		{Bids: []adapter.PriceLevel{lv("3000", "1"), lv("2990", "1")}},
		{Bids: []adapter.PriceLevel{lv("34", "4000"), lv("33", "10000")}},
	}

	got := newComposer().Compose(sellChain(), books, bps(0, 0), 5)

	require.Len(t, got.Bids, 2)
	assertLevel(t, got.Bids[0], "102000", "1")
	// Second position sees only the 1000 USDT left at 34: 34000 + 1990×33.
	assertLevel(t, got.Bids[1], "99670", "1")
	assert.True(t, got.Bids[0].Price.GreaterThan(got.Bids[1].Price), "bids stay descending")
}

func TestCompose_LiquidityConservation(t *testing.T) {
	leg1 := []adapter.PriceLevel{lv("3000", "1.5"), lv("2999", "0.7"), lv("2998", "3"), lv("2995", "2.2")}
	leg2 := []adapter.PriceLevel{lv("34", "2500"), lv("33.98", "1800"), lv("33.95", "4100")}
	books := []adapter.Orderbook{{Bids: leg1}, {Bids: leg2}}

	got := newComposer().Compose(sellChain(), books, bps(10, 15), 10)
	require.NotEmpty(t, got.Bids)

	leg2Total := decimal.Zero
	for _, l := range leg2 {
		leg2Total = leg2Total.Add(l.Size)
	}

	usdtUsed := decimal.Zero
	tolerance := d("0.000001")
	for k, lvl := range got.Bids {
		assert.True(t, lvl.Amount.LessThanOrEqual(leg1[k].Size), "position %d exceeds leg 1 level", k)
		usdtUsed = usdtUsed.Add(lvl.Amount.Mul(leg1[k].Price))
		assert.True(t, usdtUsed.LessThanOrEqual(leg2Total.Add(tolerance)),
			"position %d: %s USDT used but leg 2 only holds %s", k, usdtUsed, leg2Total)
	}
}

func TestCompose_CommissionIsMultiplicative(t *testing.T) {
	books := []adapter.Orderbook{
		{Bids: []adapter.PriceLevel{lv("100", "1")}},
		{Bids: []adapter.PriceLevel{lv("2", "1000")}},
	}

	got := newComposer().Compose(sellChain(), books, bps(10, 20), 1)

	require.Len(t, got.Bids, 1)
	// 200 × 1.001 × 1.002, not 200 × 1.003.
	assertLevel(t, got.Bids[0], "200.6004", "1")
	assert.False(t, got.Bids[0].Price.Equal(d("200.6")))
}

func TestCompose_EmptySideDegradesOneLadder(t *testing.T) {
	books := []adapter.Orderbook{
		{Bids: []adapter.PriceLevel{lv("3000", "1")}, Asks: []adapter.PriceLevel{lv("3001", "1")}},
		{Asks: []adapter.PriceLevel{lv("34.1", "100000")}},
	}

	got := newComposer().Compose(sellChain(), books, bps(10, 15), 5)

	assert.Empty(t, got.Bids)
	assert.NotEmpty(t, got.Asks, "asks do not depend on leg 2 bids")
	assert.True(t, got.Legs[0].Available)
	assert.False(t, got.Legs[1].Available)
	assert.Equal(t, "no bids", got.Legs[1].Reason)
}

func TestCompose_MissingBookIsUnavailable(t *testing.T) {
	books := []adapter.Orderbook{
		{Bids: []adapter.PriceLevel{lv("3000", "1")}, Asks: []adapter.PriceLevel{lv("3001", "1")}},
	}

	got := newComposer().Compose(sellChain(), books, bps(10, 15), 5)

	assert.Empty(t, got.Bids)
	assert.Empty(t, got.Asks)
	assert.False(t, got.Legs[1].Available)
	assert.Equal(t, "no bids; no asks", got.Legs[1].Reason)
}

func TestCompose_Idempotent(t *testing.T) {
	books := []adapter.Orderbook{
		{Bids: []adapter.PriceLevel{lv("3000", "1"), lv("2990", "1")}, Asks: []adapter.PriceLevel{lv("3001", "2")}},
		{Bids: []adapter.PriceLevel{lv("34", "4000"), lv("33", "10000")}, Asks: []adapter.PriceLevel{lv("34.2", "9000")}},
	}
	c := newComposer()

	first := c.Compose(sellChain(), books, bps(10, 15), 5)
	second := c.Compose(sellChain(), books, bps(10, 15), 5)

	assert.Equal(t, first, second)
	assert.True(t, books[1].Bids[0].Size.Equal(d("4000")), "input books must not be modified")
}

func TestCompose_DepthCap(t *testing.T) {
	books := []adapter.Orderbook{
		{Bids: []adapter.PriceLevel{lv("5", "1"), lv("4", "1"), lv("3", "1"), lv("2", "1")}},
		{Bids: []adapter.PriceLevel{lv("10", "1000")}},
	}

	got := newComposer().Compose(sellChain(), books, bps(0, 0), 2)

	require.Len(t, got.Bids, 2)
	assertLevel(t, got.Bids[0], "50", "1")
	assertLevel(t, got.Bids[1], "40", "1")
}

func TestCompose_BuyLegClosesLoop(t *testing.T) {
	legs := []Leg{
		{Exchange: adapter.ExchangeBinance, Symbol: "ETHUSDT", Side: Sell},
		{Exchange: adapter.ExchangeCoinTR, Symbol: "USDTTRY", Side: Sell},
		{Exchange: adapter.ExchangeWhiteBit, Symbol: "ETH_TRY", Side: Buy},
	}
	books := []adapter.Orderbook{
		{Bids: []adapter.PriceLevel{lv("3000", "1")}},
		{Bids: []adapter.PriceLevel{lv("34", "1000000")}},
		// The buy leg reads asks for the bid ladder. Only 0.5 ETH is offered.
		{Asks: []adapter.PriceLevel{lv("102000", "0.5")}},
	}

	got := newComposer().Compose(legs, books, bps(0, 0, 0), 5)

	// 51000 TRY buys the 0.5 ETH, which needs 1500 USDT, i.e. 0.5 ETH in.
	require.Len(t, got.Bids, 1)
	assertLevel(t, got.Bids[0], "1", "0.5")
	assert.Empty(t, got.Asks)
}

func TestCompose_SixLegChain(t *testing.T) {
	legs := []Leg{
		{Exchange: adapter.ExchangeBinance, Symbol: "ETHUSDT", Side: Sell},
		{Exchange: adapter.ExchangeCoinTR, Symbol: "USDTTRY", Side: Sell},
		{Exchange: adapter.ExchangeCoinTR, Symbol: "USDTTRY", Side: Buy},
		{Exchange: adapter.ExchangeBinance, Symbol: "ETHUSDT", Side: Buy},
		{Exchange: adapter.ExchangeOKX, Symbol: "ETH-USDT", Side: Sell},
		{Exchange: adapter.ExchangeWhiteBit, Symbol: "USDT_TRY", Side: Sell},
	}
	usdtTry := adapter.Orderbook{Bids: []adapter.PriceLevel{lv("34", "1000000")}, Asks: []adapter.PriceLevel{lv("34", "1000000")}}
	ethUsdt := adapter.Orderbook{Bids: []adapter.PriceLevel{lv("3000", "10")}, Asks: []adapter.PriceLevel{lv("3000", "10")}}
	books := []adapter.Orderbook{ethUsdt, usdtTry, usdtTry, ethUsdt, ethUsdt, usdtTry}

	got := newComposer().Compose(legs, books, bps(0, 0, 0, 0, 0, 0), 3)

	// Round trip back to ETH then out to TRY at flat prices.
	require.Len(t, got.Bids, 1)
	assertLevel(t, got.Bids[0], "102000", "10")
}
