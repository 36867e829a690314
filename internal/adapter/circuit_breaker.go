package adapter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// CircuitBreakerConfig holds tunable parameters for the CircuitBreaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failed fetches that opens
	// the circuit for a venue. Default: 3.
	MaxFailures uint32

	// OpenTimeout is how long an open circuit rejects fetches before letting
	// a probe through. Default: 30s.
	OpenTimeout time.Duration

	// Interval is the rolling window after which closed-state counts are
	// cleared. Default: 60s.
	Interval time.Duration

	// OnStateChange is called on every transition (optional).
	OnStateChange func(exchange Exchange, from, to string)
}

// DefaultCircuitBreakerConfig returns production-tuned defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures: 3,
		OpenTimeout: 30 * time.Second,
		Interval:    60 * time.Second,
	}
}

// CircuitBreaker keeps one gobreaker per venue so a failing exchange is
// short-circuited instead of burning the leg timeout on every request.
// Rejected fetches surface as errors and the leg is reported unavailable.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu       sync.RWMutex
	breakers map[Exchange]*gobreaker.CircuitBreaker
}

// NewCircuitBreaker creates a CircuitBreaker with no venues registered.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		cfg:      cfg,
		breakers: make(map[Exchange]*gobreaker.CircuitBreaker),
	}
}

// Wrap returns a Fetcher that routes every call for exchange through the
// venue's breaker.
func (cb *CircuitBreaker) Wrap(exchange Exchange, f Fetcher) Fetcher {
	b := cb.breaker(exchange)
	return FetcherFunc(func(ctx context.Context, symbol string, limit int) (Orderbook, error) {
		res, err := b.Execute(func() (any, error) {
			return f.FetchOrderbook(ctx, symbol, limit)
		})
		if err != nil {
			return Orderbook{}, err
		}
		return res.(Orderbook), nil
	})
}

// State returns the breaker state for a venue ("closed", "half-open",
// "open"). Venues never wrapped report "closed".
func (cb *CircuitBreaker) State(exchange Exchange) string {
	cb.mu.RLock()
	b, ok := cb.breakers[exchange]
	cb.mu.RUnlock()
	if !ok {
		return gobreaker.StateClosed.String()
	}
	return b.State().String()
}

// States reports the state of every wrapped venue.
func (cb *CircuitBreaker) States() map[Exchange]string {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	out := make(map[Exchange]string, len(cb.breakers))
	for ex, b := range cb.breakers {
		out[ex] = b.State().String()
	}
	return out
}

func (cb *CircuitBreaker) breaker(exchange Exchange) *gobreaker.CircuitBreaker {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if b, ok := cb.breakers[exchange]; ok {
		return b
	}

	maxFailures := cb.cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 1
	}

	st := gobreaker.Settings{
		Name:        string(exchange),
		MaxRequests: 1,
		Interval:    cb.cfg.Interval,
		Timeout:     cb.cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: isVenueHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("exchange", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("fetch circuit state change")
			if cb.cfg.OnStateChange != nil {
				cb.cfg.OnStateChange(Exchange(name), from.String(), to.String())
			}
		},
	}

	b := gobreaker.NewCircuitBreaker(st)
	cb.breakers[exchange] = b
	return b
}

// isVenueHealthy decides which errors count against a venue. A missing
// symbol, any other 4xx rejection of the caller's request or a cancelled
// caller does not; a timeout, a 5xx or a 429 does.
func isVenueHealthy(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, ErrSymbolNotFound) || errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.ClientError()
}
