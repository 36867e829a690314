package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caesar-terminal/synthbook/internal/adapter"
	"github.com/caesar-terminal/synthbook/internal/engine"
)

func TestParseLeg(t *testing.T) {
	leg, err := parseLeg("Binance:ETHUSDT:sell")
	require.NoError(t, err)
	assert.Equal(t, adapter.ExchangeBinance, leg.Exchange)
	assert.Equal(t, "ETHUSDT", leg.Symbol)
	assert.Equal(t, engine.Sell, leg.Side)

	_, err = parseLeg("binance:ETHUSDT")
	assert.Error(t, err)

	_, err = parseLeg("binance:ETHUSDT:hold")
	assert.Error(t, err)
}

func TestComposeLegs(t *testing.T) {
	legs, depth, err := composeLegs([]string{"binance:ETHUSDT:sell", "cointr:USDTTRY:sell"}, "")
	require.NoError(t, err)
	assert.Len(t, legs, 2)
	assert.Zero(t, depth)

	legs, depth, err = composeLegs(nil, "ETH/TRY via OKX")
	require.NoError(t, err)
	assert.Len(t, legs, 2)
	assert.Equal(t, 10, depth)
	assert.Equal(t, adapter.ExchangeOKX, legs[0].Exchange)

	_, _, err = composeLegs(nil, "no such preset")
	assert.Error(t, err)

	_, _, err = composeLegs(nil, "")
	assert.Error(t, err)
}

func TestPresetsCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := newPresetsCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "NAME"))
	assert.Contains(t, out.String(), "binance:ETHUSDT:sell -> cointr:USDTTRY:sell")
}
