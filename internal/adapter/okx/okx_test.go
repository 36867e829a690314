package okx

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
		assert.Equal(t, "/api/v5/market/books", r.URL.Path)
		assert.Equal(t, "USDT-TRY", r.URL.Query().Get("instId"))
		assert.Equal(t, "2", r.URL.Query().Get("sz"))
		w.Write([]byte(`{"code":"0","msg":"","data":[{
			"asks":[["34.2","120","0","3"],["34.1","80","0","2"],["34.3","10","0","1"]],
			"bids":[["34.0","200","0","4"]],
			"ts":"1700000000123"}]}`))
	}))
	defer srv.Close()

	book, err := New(adapter.DefaultRESTConfig(srv.URL)).FetchOrderbook(context.Background(), "USDT-TRY", 2)
	require.NoError(t, err)

	assert.Equal(t, adapter.ExchangeOKX, book.Exchange)
	require.Len(t, book.Asks, 2, "truncated to limit")
	assert.Equal(t, "34.1", book.Asks[0].Price.String())
	assert.Equal(t, "80", book.Asks[0].Size.String())
	require.Len(t, book.Bids, 1)
	assert.Equal(t, int64(1700000000123), book.Timestamp.UnixMilli())
}

func TestClient_InstrumentMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"51001","msg":"Instrument ID does not exist","data":[]}`))
	}))
	defer srv.Close()

	_, err := New(adapter.DefaultRESTConfig(srv.URL)).FetchOrderbook(context.Background(), "FOO-TRY", 10)
	assert.True(t, errors.Is(err, adapter.ErrSymbolNotFound), "got %v", err)
}

func TestClient_EmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"0","msg":"","data":[]}`))
	}))
	defer srv.Close()

	_, err := New(adapter.DefaultRESTConfig(srv.URL)).FetchOrderbook(context.Background(), "USDT-TRY", 10)
	assert.True(t, errors.Is(err, adapter.ErrBadResponse), "got %v", err)
}

func TestClient_InstrumentMissingOnBadRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"51001","msg":"Instrument ID does not exist","data":[]}`))
	}))
	defer srv.Close()

	_, err := New(adapter.DefaultRESTConfig(srv.URL)).FetchOrderbook(context.Background(), "FOO-TRY", 10)
	assert.True(t, errors.Is(err, adapter.ErrSymbolNotFound), "got %v", err)
}
