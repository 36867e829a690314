// Package binance implements the Binance spot order-book adapters: a REST
// Fetcher and a partial-depth WebSocket Stream.
package binance

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
	DefaultBaseURL = "https://api.binance.com"

	maxLimit = 5000

	// codeInvalidSymbol is returned with HTTP 400 for unknown markets.
	codeInvalidSymbol = -1121
)

type depthResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// Client fetches order books from GET /api/v3/depth.
type Client struct {
	rest *adapter.RESTClient
}

// New creates a Client using the given REST configuration.
func New(cfg adapter.RESTConfig) *Client {
	return &Client{rest: adapter.NewRESTClient(cfg)}
}

// FetchOrderbook implements adapter.Fetcher. symbol is the native form,
// e.g. "ETHUSDT".
func (c *Client) FetchOrderbook(ctx context.Context, symbol string, limit int) (adapter.Orderbook, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	q.Set("limit", strconv.Itoa(clampLimit(limit)))

	var resp depthResponse
	if err := c.rest.GetJSON(ctx, "/api/v3/depth", q, &resp); err != nil {
		return adapter.Orderbook{}, classify(symbol, err)
	}

	return adapter.Normalize(adapter.Orderbook{
		Exchange:  adapter.ExchangeBinance,
		Symbol:    symbol,
		Bids:      adapter.ParsePairs(resp.Bids),
		Asks:      adapter.ParsePairs(resp.Asks),
		Timestamp: time.Now(),
	}, limit), nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// classify maps Binance's invalid-symbol response to adapter.ErrSymbolNotFound.
func classify(symbol string, err error) error {
	var se *adapter.StatusError
	if errors.As(err, &se) && se.Code == 400 && strings.Contains(se.Body, strconv.Itoa(codeInvalidSymbol)) {
		return fmt.Errorf("binance: %w: %s", adapter.ErrSymbolNotFound, symbol)
	}
	return fmt.Errorf("binance: depth %s: %w", symbol, err)
}
