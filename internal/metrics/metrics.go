// Package metrics exposes Prometheus collectors for synthetic builds and the
// adapter plumbing beneath them.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/caesar-terminal/synthbook/internal/adapter"
	"github.com/caesar-terminal/synthbook/internal/engine"
)

// Registry holds all synthbook collectors. It implements synth.Observer.
type Registry struct {
	reg *prometheus.Registry

	LegFetches    *prometheus.CounterVec
	LegDuration   *prometheus.HistogramVec
	Builds        *prometheus.CounterVec
	BuildDuration prometheus.Histogram
	LevelsEmitted *prometheus.HistogramVec
	BreakerState  *prometheus.GaugeVec
	StreamDrops   *prometheus.CounterVec
	StreamServes  *prometheus.CounterVec
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
}

// NewRegistry creates and registers every collector on a private registry,
// together with the Go runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		LegFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synthbook_leg_fetches_total",
				Help: "Leg order-book fetches by exchange and result",
			},
			[]string{"exchange", "result"},
		),

		LegDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synthbook_leg_fetch_duration_seconds",
				Help:    "Duration of leg order-book fetches in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"exchange"},
		),

		Builds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synthbook_builds_total",
				Help: "Synthetic order-book builds by outcome",
			},
			[]string{"outcome"},
		),

		BuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "synthbook_build_duration_seconds",
				Help:    "End-to-end synthetic build duration in seconds",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),

		LevelsEmitted: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synthbook_levels_emitted",
				Help:    "Synthetic levels emitted per ladder",
				Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
			},
			[]string{"side"},
		),

		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "synthbook_breaker_state",
				Help: "Circuit breaker state per exchange (0=closed, 1=half-open, 2=open)",
			},
			[]string{"exchange"},
		),

		StreamDrops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synthbook_stream_drops_total",
				Help: "Streamed book updates dropped for slow subscribers",
			},
			[]string{"exchange"},
		),

		StreamServes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synthbook_stream_serves_total",
				Help: "Fetches answered from the live book store (hit) or REST (miss)",
			},
			[]string{"exchange", "result"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synthbook_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synthbook_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.LegFetches,
		r.LegDuration,
		r.Builds,
		r.BuildDuration,
		r.LevelsEmitted,
		r.BreakerState,
		r.StreamDrops,
		r.StreamServes,
		r.HTTPRequests,
		r.HTTPDuration,
	)

	return r
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// LegFetched records one leg fetch.
func (r *Registry) LegFetched(exchange adapter.Exchange, err error, elapsed time.Duration) {
	r.LegFetches.WithLabelValues(string(exchange), fetchResult(err)).Inc()
	r.LegDuration.WithLabelValues(string(exchange)).Observe(elapsed.Seconds())
}

// BuildCompleted records a finished build.
func (r *Registry) BuildCompleted(book engine.SyntheticOrderbook, elapsed time.Duration) {
	outcome := "complete"
	for _, l := range book.Legs {
		if !l.Available {
			outcome = "degraded"
			break
		}
	}
	r.Builds.WithLabelValues(outcome).Inc()
	r.BuildDuration.Observe(elapsed.Seconds())
	r.LevelsEmitted.WithLabelValues("bids").Observe(float64(len(book.Bids)))
	r.LevelsEmitted.WithLabelValues("asks").Observe(float64(len(book.Asks)))
}

// BreakerStateChanged matches adapter.CircuitBreakerConfig.OnStateChange.
func (r *Registry) BreakerStateChanged(exchange adapter.Exchange, from, to string) {
	r.BreakerState.WithLabelValues(string(exchange)).Set(breakerStateValue(to))
}

// StreamDropped matches adapter.Broadcaster.OnDrop.
func (r *Registry) StreamDropped(exchange adapter.Exchange) {
	r.StreamDrops.WithLabelValues(string(exchange)).Inc()
	log.Debug().Str("exchange", string(exchange)).Msg("stream update dropped")
}

// StreamServed matches adapter.BookStore.OnServe.
func (r *Registry) StreamServed(exchange adapter.Exchange, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.StreamServes.WithLabelValues(string(exchange), result).Inc()
}

// ObserveHTTP records one served request.
func (r *Registry) ObserveHTTP(route string, code int, elapsed time.Duration) {
	r.HTTPRequests.WithLabelValues(route, httpCode(code)).Inc()
	r.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func fetchResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, adapter.ErrUnknownExchange):
		return "unknown_exchange"
	case errors.Is(err, adapter.ErrSymbolNotFound):
		return "symbol_not_found"
	default:
		return "error"
	}
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

func httpCode(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
