// Package cointr implements the CoinTR spot order-book Fetcher.
package cointr

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caesar-terminal/synthbook/internal/adapter"
)

const (
	DefaultBaseURL = "https://api.cointr.com"

	maxLimit = 150

	codeOK = "00000"
)

type orderbookResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data *struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
		TS   string     `json:"ts"`
	} `json:"data"`
}

// Client fetches order books from GET /api/v2/spot/market/orderbook.
type Client struct {
	rest *adapter.RESTClient
}

func New(cfg adapter.RESTConfig) *Client {
	return &Client{rest: adapter.NewRESTClient(cfg)}
}

// FetchOrderbook implements adapter.Fetcher for native symbols like
// "USDTTRY". Levels are requested unaggregated (type=step0).
func (c *Client) FetchOrderbook(ctx context.Context, symbol string, limit int) (adapter.Orderbook, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	q.Set("type", "step0")
	q.Set("limit", strconv.Itoa(clampLimit(limit)))

	var resp orderbookResponse
	err := c.rest.GetJSON(ctx, "/api/v2/spot/market/orderbook", q, &resp)
	if err != nil {
		// Rejections come as 4xx with the usual envelope.
		var se *adapter.StatusError
		if !errors.As(err, &se) || se.DecodeBody(&resp) != nil || resp.Code == "" {
			return adapter.Orderbook{}, fmt.Errorf("cointr: orderbook %s: %w", symbol, err)
		}
	}
	if resp.Code != codeOK {
		if strings.Contains(strings.ToLower(resp.Msg), "symbol") {
			return adapter.Orderbook{}, fmt.Errorf("cointr: %w: %s (%s)", adapter.ErrSymbolNotFound, symbol, resp.Msg)
		}
		return adapter.Orderbook{}, errors.Join(
			fmt.Errorf("cointr: %w: code=%s msg=%s", adapter.ErrBadResponse, resp.Code, resp.Msg), err)
	}
	if err != nil {
		return adapter.Orderbook{}, fmt.Errorf("cointr: orderbook %s: %w", symbol, err)
	}
	if resp.Data == nil {
		return adapter.Orderbook{}, fmt.Errorf("cointr: %w: missing orderbook data", adapter.ErrBadResponse)
	}

	return adapter.Normalize(adapter.Orderbook{
		Exchange:  adapter.ExchangeCoinTR,
		Symbol:    symbol,
		Bids:      adapter.ParsePairs(resp.Data.Bids),
		Asks:      adapter.ParsePairs(resp.Data.Asks),
		Timestamp: parseMillis(resp.Data.TS),
	}, limit), nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxLimit {
		return maxLimit
	}
	return limit
}

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return time.Now()
	}
	return time.UnixMilli(ms)
}
