package whitebit

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
		assert.Equal(t, "/api/v4/public/orderbook/USDT_TRY", r.URL.Path)
		assert.Equal(t, "40", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"ticker":"USDT_TRY","timestamp":1700000000,
			"asks":[["34.10","250.5"],["34.08","100"]],
			"bids":[["34.01","300"],["34.03","50"]]}`))
	}))
	defer srv.Close()

	book, err := New(adapter.DefaultRESTConfig(srv.URL)).FetchOrderbook(context.Background(), "USDT_TRY", 40)
	require.NoError(t, err)

	assert.Equal(t, adapter.ExchangeWhiteBit, book.Exchange)
	assert.Equal(t, "USDT_TRY", book.Symbol)
	assert.Equal(t, "34.03", book.Bids[0].Price.String())
	assert.Equal(t, "34.08", book.Asks[0].Price.String())
	assert.Equal(t, int64(1700000000), book.Timestamp.Unix())
}

func TestClient_UnknownMarket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"success":false,"message":"Market is not available"}`))
	}))
	defer srv.Close()

	_, err := New(adapter.DefaultRESTConfig(srv.URL)).FetchOrderbook(context.Background(), "FOO_TRY", 10)
	assert.True(t, errors.Is(err, adapter.ErrSymbolNotFound), "got %v", err)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 100, clampLimit(500))
	assert.Equal(t, 100, clampLimit(0))
	assert.Equal(t, 20, clampLimit(20))
}
