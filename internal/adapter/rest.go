package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const maxErrorBody = 4 << 10

// RESTConfig holds tunable parameters for a RESTClient.
type RESTConfig struct {
	BaseURL string
	Timeout time.Duration

	// RequestsPerSec and Burst size the per-venue token bucket.
	RequestsPerSec float64
	Burst          int
}

// DefaultRESTConfig returns defaults suitable for public market-data
// endpoints.
func DefaultRESTConfig(baseURL string) RESTConfig {
	return RESTConfig{
		BaseURL:        baseURL,
		Timeout:        10 * time.Second,
		RequestsPerSec: 10,
		Burst:          20,
	}
}

// RESTClient issues rate-limited GET requests against one venue and decodes
// JSON responses.
type RESTClient struct {
	cfg     RESTConfig
	http    *http.Client
	limiter *rate.Limiter
}

// NewRESTClient creates a RESTClient for the given venue configuration.
func NewRESTClient(cfg RESTConfig) *RESTClient {
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RESTClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// StatusError is returned when a venue answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.Code, e.Body)
}

// ClientError reports a 4xx rejection of the request itself. 429 is the
// venue throttling us and does not count.
func (e *StatusError) ClientError() bool {
	return e.Code >= 400 && e.Code < 500 && e.Code != http.StatusTooManyRequests
}

// DecodeBody decodes the error body into out, for venues that wrap
// rejections in their usual JSON envelope.
func (e *StatusError) DecodeBody(out any) error {
	return json.Unmarshal([]byte(e.Body), out)
}

// GetJSON waits for a rate-limit token, performs GET {BaseURL}{path}?{query}
// and decodes the JSON body into out.
func (c *RESTClient) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	u := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("url", u).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("rest request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrBadResponse, path, err)
	}
	return nil
}
