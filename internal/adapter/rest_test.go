package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestRESTClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/depth" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("symbol") != "ETHUSDT" {
			t.Errorf("unexpected symbol %q", r.URL.Query().Get("symbol"))
		}
		w.Write([]byte(`{"lastUpdateId":1,"bids":[["3000","1"]]}`))
	}))
	defer srv.Close()

	c := NewRESTClient(DefaultRESTConfig(srv.URL + "/"))

	var out struct {
		Bids [][]string `json:"bids"`
	}
	if err := c.GetJSON(context.Background(), "/api/v3/depth", url.Values{"symbol": {"ETHUSDT"}}, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if len(out.Bids) != 1 || out.Bids[0][0] != "3000" {
		t.Fatalf("unexpected decode: %+v", out)
	}
}

func TestRESTClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	c := NewRESTClient(DefaultRESTConfig(srv.URL))

	var out map[string]any
	err := c.GetJSON(context.Background(), "/api/v3/depth", nil, &out)

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", se.Code)
	}
	if !se.ClientError() {
		t.Fatal("400 should be a client error")
	}

	var envelope struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := se.DecodeBody(&envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Code != -1121 {
		t.Fatalf("expected code -1121, got %d", envelope.Code)
	}
}

func TestStatusError_ClientError(t *testing.T) {
	cases := map[int]bool{400: true, 404: true, 422: true, 429: false, 500: false, 503: false}
	for code, want := range cases {
		if got := (&StatusError{Code: code}).ClientError(); got != want {
			t.Errorf("status %d: ClientError() = %v, want %v", code, got, want)
		}
	}
}

func TestRESTClient_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	c := NewRESTClient(DefaultRESTConfig(srv.URL))

	var out map[string]any
	if err := c.GetJSON(context.Background(), "/x", nil, &out); !errors.Is(err, ErrBadResponse) {
		t.Fatalf("expected ErrBadResponse, got %v", err)
	}
}

func TestRESTClient_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cfg := DefaultRESTConfig(srv.URL)
	cfg.RequestsPerSec = 0.5
	cfg.Burst = 1
	c := NewRESTClient(cfg)

	var out map[string]any
	if err := c.GetJSON(context.Background(), "/", nil, &out); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.GetJSON(ctx, "/", nil, &out); err == nil {
		t.Fatal("expected rate-limit wait to fail within the deadline")
	}
}
