package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caesar-terminal/synthbook/internal/adapter"
)

func TestClient_FetchOrderbook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/depth", r.URL.Path)
		assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "4", r.URL.Query().Get("limit"))
		w.Write([]byte(`{
			"lastUpdateId": 1027024,
			"bids": [["2999.50","3.1"],["3000.00","2.0"],["2998.00","0"]],
			"asks": [["3001.00","1.5"],["3000.50","0.7"]]
		}`))
	}))
	defer srv.Close()

	c := New(adapter.DefaultRESTConfig(srv.URL))
	book, err := c.FetchOrderbook(context.Background(), "ETHUSDT", 4)
	require.NoError(t, err)

	assert.Equal(t, adapter.ExchangeBinance, book.Exchange)
	require.Len(t, book.Bids, 2, "zero-size level dropped")
	assert.Equal(t, "3000", book.Bids[0].Price.String())
	assert.Equal(t, "2999.5", book.Bids[1].Price.String())
	require.Len(t, book.Asks, 2)
	assert.Equal(t, "3000.5", book.Asks[0].Price.String())
	assert.Equal(t, "0.7", book.Asks[0].Size.String())
}

func TestClient_InvalidSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	_, err := New(adapter.DefaultRESTConfig(srv.URL)).FetchOrderbook(context.Background(), "FOOBAR", 10)
	assert.True(t, errors.Is(err, adapter.ErrSymbolNotFound), "got %v", err)
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(adapter.DefaultRESTConfig(srv.URL)).FetchOrderbook(context.Background(), "ETHUSDT", 10)
	require.Error(t, err)
	assert.False(t, errors.Is(err, adapter.ErrSymbolNotFound))

	var se *adapter.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 100, clampLimit(0))
	assert.Equal(t, 40, clampLimit(40))
	assert.Equal(t, maxLimit, clampLimit(100000))
}
