// Package whitebit implements the WhiteBIT v4 public order-book Fetcher.
package whitebit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caesar-terminal/synthbook/internal/adapter"
)

const (
	DefaultBaseURL = "https://whitebit.com"

	maxLimit = 100
)

type orderbookResponse struct {
	Ticker    string     `json:"ticker"`
	Timestamp int64      `json:"timestamp"`
	Bids      [][]string `json:"bids"`
	Asks      [][]string `json:"asks"`
}

// Client fetches order books from GET /api/v4/public/orderbook/{market}.
type Client struct {
	rest *adapter.RESTClient
}

func New(cfg adapter.RESTConfig) *Client {
	return &Client{rest: adapter.NewRESTClient(cfg)}
}

// FetchOrderbook implements adapter.Fetcher for native markets like
// "USDT_TRY".
func (c *Client) FetchOrderbook(ctx context.Context, symbol string, limit int) (adapter.Orderbook, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(clampLimit(limit)))

	var resp orderbookResponse
	path := "/api/v4/public/orderbook/" + url.PathEscape(strings.ToUpper(symbol))
	if err := c.rest.GetJSON(ctx, path, q, &resp); err != nil {
		var se *adapter.StatusError
		if errors.As(err, &se) && (se.Code == http.StatusNotFound || se.Code == http.StatusUnprocessableEntity) {
			return adapter.Orderbook{}, fmt.Errorf("whitebit: %w: %s", adapter.ErrSymbolNotFound, symbol)
		}
		return adapter.Orderbook{}, fmt.Errorf("whitebit: orderbook %s: %w", symbol, err)
	}

	ts := time.Now()
	if resp.Timestamp > 0 {
		ts = time.Unix(resp.Timestamp, 0)
	}

	return adapter.Normalize(adapter.Orderbook{
		Exchange:  adapter.ExchangeWhiteBit,
		Symbol:    symbol,
		Bids:      adapter.ParsePairs(resp.Bids),
		Asks:      adapter.ParsePairs(resp.Asks),
		Timestamp: ts,
	}, limit), nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxLimit {
		return maxLimit
	}
	return limit
}
