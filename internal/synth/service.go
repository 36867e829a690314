// Package synth orchestrates a synthetic order-book build: validation,
// concurrent leg fetches, continuity resolution, composition and markups.
package synth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/caesar-terminal/synthbook/internal/adapter"
	"github.com/caesar-terminal/synthbook/internal/engine"
)

// Config holds tunable parameters for a Service.
type Config struct {
	// DefaultDepth is used by transports when a request omits depth.
	DefaultDepth int
	// MaxDepth caps the requested ladder depth.
	MaxDepth int
	// LegTimeout bounds each leg's fetch.
	LegTimeout time.Duration
	// Stages are applied to every composed book, in order.
	Stages []engine.Stage
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultDepth: 20,
		MaxDepth:     100,
		LegTimeout:   5 * time.Second,
	}
}

// FetcherSource looks up the Fetcher for an exchange. *adapter.Registry
// satisfies it.
type FetcherSource interface {
	Get(exchange adapter.Exchange) (adapter.Fetcher, error)
}

// Observer receives build telemetry (optional).
type Observer interface {
	LegFetched(exchange adapter.Exchange, err error, elapsed time.Duration)
	BuildCompleted(book engine.SyntheticOrderbook, elapsed time.Duration)
}

// Service is the single entry point for building synthetic books. It is
// safe for concurrent use; every call works on its own snapshots.
type Service struct {
	cfg         Config
	fetchers    FetcherSource
	commissions *engine.CommissionTable
	validator   *engine.Validator
	resolver    *engine.Resolver
	composer    *engine.Composer
	observer    Observer
}

// NewService wires a Service. A nil commissions table uses the defaults.
func NewService(cfg Config, fetchers FetcherSource, commissions *engine.CommissionTable) *Service {
	if commissions == nil {
		commissions = engine.DefaultCommissionTable()
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultConfig().MaxDepth
	}
	if cfg.DefaultDepth <= 0 {
		cfg.DefaultDepth = DefaultConfig().DefaultDepth
	}
	resolver := engine.NewResolver()
	return &Service{
		cfg:         cfg,
		fetchers:    fetchers,
		commissions: commissions,
		validator:   engine.NewValidator(),
		resolver:    resolver,
		composer:    engine.NewComposer(resolver),
	}
}

// SetObserver installs a telemetry observer. Must be called before the
// Service is shared.
func (s *Service) SetObserver(o Observer) {
	s.observer = o
}

// Config returns the service configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// Commissions returns the commission table in use.
func (s *Service) Commissions() *engine.CommissionTable {
	return s.commissions
}

// Resolver returns the symbol resolver in use.
func (s *Service) Resolver() *engine.Resolver {
	return s.resolver
}

type fetchResult struct {
	book adapter.Orderbook
	err  error
}

// Build validates legs, fetches every leg concurrently and composes the
// synthetic book. Only validation failures (engine.ErrValidation) are
// returned as errors; unavailable legs are reported in the result.
func (s *Service) Build(ctx context.Context, legs []engine.Leg, depth int) (engine.SyntheticOrderbook, error) {
	start := time.Now()

	if err := s.validator.Validate(legs); err != nil {
		return engine.SyntheticOrderbook{}, err
	}
	if depth <= 0 {
		return engine.SyntheticOrderbook{}, fmt.Errorf("%w: got %d", engine.ErrInvalidDepth, depth)
	}
	if depth > s.cfg.MaxDepth {
		depth = s.cfg.MaxDepth
	}

	results := s.fetchAll(ctx, legs, depth*2)

	books := make([]adapter.Orderbook, len(legs))
	commissions := make([]decimal.Decimal, len(legs))
	for i, leg := range legs {
		books[i] = results[i].book
		commissions[i] = s.commissions.RateBps(leg.Exchange)
	}

	var out engine.SyntheticOrderbook
	if _, err := s.resolver.ResolveChain(legs); err != nil {
		out = s.unresolved(legs, commissions, err)
	} else {
		out = s.composer.Compose(legs, books, commissions, depth)
	}

	for i, r := range results {
		if r.err != nil {
			out.Legs[i].Available = false
			out.Legs[i].Reason = r.err.Error()
		}
	}

	out.Base, out.Quote, out.Pair = s.pairLabel(legs)
	out = engine.ApplyStages(out, s.cfg.Stages)

	for _, lr := range out.Legs {
		log.Debug().
			Str("leg", lr.Leg.String()).
			Bool("available", lr.Available).
			Str("reason", lr.Reason).
			Msg("synthetic leg")
	}
	log.Info().
		Str("pair", out.Pair).
		Int("legs", len(legs)).
		Int("depth", depth).
		Int("bids", len(out.Bids)).
		Int("asks", len(out.Asks)).
		Dur("elapsed", time.Since(start)).
		Msg("synthetic orderbook built")

	if s.observer != nil {
		s.observer.BuildCompleted(out, time.Since(start))
	}
	return out, nil
}

// fetchAll fetches every leg concurrently; each fetch is bounded by the
// leg timeout and by ctx.
func (s *Service) fetchAll(ctx context.Context, legs []engine.Leg, limit int) []fetchResult {
	results := make([]fetchResult, len(legs))

	var wg sync.WaitGroup
	for i, leg := range legs {
		wg.Add(1)
		go func(i int, leg engine.Leg) {
			defer wg.Done()
			results[i] = s.fetchLeg(ctx, leg, limit)
		}(i, leg)
	}
	wg.Wait()

	return results
}

func (s *Service) fetchLeg(ctx context.Context, leg engine.Leg, limit int) fetchResult {
	start := time.Now()

	f, err := s.fetchers.Get(leg.Exchange)
	if err != nil {
		s.legFetched(leg, err, start)
		return fetchResult{err: err}
	}

	if s.cfg.LegTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.LegTimeout)
		defer cancel()
	}

	symbol := s.resolver.FormatSymbol(leg.Exchange, leg.Symbol)
	book, err := f.FetchOrderbook(ctx, symbol, limit)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("fetch timed out: %w", err)
		}
		log.Warn().Err(err).Str("leg", leg.String()).Msg("leg fetch failed")
		s.legFetched(leg, err, start)
		return fetchResult{err: err}
	}

	s.legFetched(leg, nil, start)
	return fetchResult{book: adapter.Normalize(book, limit)}
}

func (s *Service) legFetched(leg engine.Leg, err error, start time.Time) {
	if s.observer != nil {
		s.observer.LegFetched(leg.Exchange, err, time.Since(start))
	}
}

// unresolved builds the result for a chain that breaks currency
// continuity: both ladders are empty and the offending leg is flagged.
func (s *Service) unresolved(legs []engine.Leg, commissions []decimal.Decimal, err error) engine.SyntheticOrderbook {
	out := engine.SyntheticOrderbook{Legs: make([]engine.LegResult, len(legs))}
	for i, leg := range legs {
		out.Legs[i] = engine.LegResult{Leg: leg, Available: true, CommissionBps: commissions[i]}
	}

	idx := 0
	var ce *engine.ContinuityError
	if errors.As(err, &ce) {
		idx = ce.Index
	} else {
		for i, leg := range legs {
			if _, _, splitErr := s.resolver.SplitSymbol(leg.Symbol); splitErr != nil {
				idx = i
				break
			}
		}
	}
	out.Legs[idx].Available = false
	out.Legs[idx].Reason = err.Error()
	return out
}

// pairLabel joins the first leg's base and the last leg's quote.
func (s *Service) pairLabel(legs []engine.Leg) (base, quote, pair string) {
	if len(legs) == 0 {
		return "", "", ""
	}
	base, _, _ = s.resolver.SplitSymbol(legs[0].Symbol)
	_, quote, _ = s.resolver.SplitSymbol(legs[len(legs)-1].Symbol)
	return base, quote, base + quote
}
