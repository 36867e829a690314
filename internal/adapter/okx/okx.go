// Package okx implements the OKX v5 order-book Fetcher.
package okx

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
	DefaultBaseURL = "https://www.okx.com"

	maxLimit = 400

	codeOK = "0"

	// codeInstrumentMissing is "Instrument ID does not exist".
	codeInstrumentMissing = "51001"
)

type booksResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		// Levels are [price, size, liquidated orders, order count].
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
		TS   string     `json:"ts"`
	} `json:"data"`
}

// Client fetches order books from GET /api/v5/market/books.
type Client struct {
	rest *adapter.RESTClient
}

func New(cfg adapter.RESTConfig) *Client {
	return &Client{rest: adapter.NewRESTClient(cfg)}
}

// FetchOrderbook implements adapter.Fetcher for instrument IDs like
// "USDT-TRY".
func (c *Client) FetchOrderbook(ctx context.Context, symbol string, limit int) (adapter.Orderbook, error) {
	q := url.Values{}
	q.Set("instId", strings.ToUpper(symbol))
	q.Set("sz", strconv.Itoa(clampLimit(limit)))

	var resp booksResponse
	err := c.rest.GetJSON(ctx, "/api/v5/market/books", q, &resp)
	if err != nil {
		var se *adapter.StatusError
		if !errors.As(err, &se) || se.DecodeBody(&resp) != nil || resp.Code == "" {
			return adapter.Orderbook{}, fmt.Errorf("okx: books %s: %w", symbol, err)
		}
	}

	switch {
	case resp.Code == codeInstrumentMissing:
		return adapter.Orderbook{}, fmt.Errorf("okx: %w: %s", adapter.ErrSymbolNotFound, symbol)
	case resp.Code != codeOK:
		return adapter.Orderbook{}, errors.Join(
			fmt.Errorf("okx: %w: code=%s msg=%s", adapter.ErrBadResponse, resp.Code, resp.Msg), err)
	case err != nil:
		return adapter.Orderbook{}, fmt.Errorf("okx: books %s: %w", symbol, err)
	case len(resp.Data) == 0:
		return adapter.Orderbook{}, fmt.Errorf("okx: %w: empty data", adapter.ErrBadResponse)
	}

	d := resp.Data[0]
	ts := time.Now()
	if ms, err := strconv.ParseInt(d.TS, 10, 64); err == nil && ms > 0 {
		ts = time.UnixMilli(ms)
	}

	return adapter.Normalize(adapter.Orderbook{
		Exchange:  adapter.ExchangeOKX,
		Symbol:    symbol,
		Bids:      adapter.ParsePairs(d.Bids),
		Asks:      adapter.ParsePairs(d.Asks),
		Timestamp: ts,
	}, limit), nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxLimit {
		return maxLimit
	}
	return limit
}
