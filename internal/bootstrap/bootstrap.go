// Package bootstrap turns a loaded config into a running synthesis stack:
// venue adapters wrapped in stream, cache and breaker layers, the
// synth.Service on top and the metrics registry observing all of it.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/caesar-terminal/synthbook/internal/adapter"
	"github.com/caesar-terminal/synthbook/internal/adapter/binance"
	"github.com/caesar-terminal/synthbook/internal/adapter/cointr"
	"github.com/caesar-terminal/synthbook/internal/adapter/okx"
	"github.com/caesar-terminal/synthbook/internal/adapter/whitebit"
	"github.com/caesar-terminal/synthbook/internal/config"
	"github.com/caesar-terminal/synthbook/internal/engine"
	"github.com/caesar-terminal/synthbook/internal/metrics"
	"github.com/caesar-terminal/synthbook/internal/synth"
)

// SetupLogging configures the global zerolog logger.
func SetupLogging(cfg config.LogConfig, out io.Writer) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return fmt.Errorf("%w: log.level %q", config.ErrInvalidConfig, cfg.Level)
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Str("service", "synthbook").Logger()
	return nil
}

// Runtime is a wired stack. Start launches background streams; Close
// releases connections.
type Runtime struct {
	Registry *adapter.Registry
	Service  *synth.Service
	Metrics  *metrics.Registry
	Breaker  *adapter.CircuitBreaker

	cfg     *config.Config
	stream  *liveStream
	closers []func()
}

type liveStream struct {
	ws     *adapter.WSClient
	stream *binance.Stream
	bc     *adapter.Broadcaster
	store  *adapter.BookStore
}

// Build wires every venue fetcher as breaker(cache(stream(rest))) and the
// service over them. Layers whose config is absent are skipped.
func Build(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{
		Registry: adapter.NewRegistry(),
		Metrics:  metrics.NewRegistry(),
		cfg:      cfg,
	}

	breakerCfg := adapter.DefaultCircuitBreakerConfig()
	if cfg.Breaker.MaxFailures > 0 {
		breakerCfg.MaxFailures = cfg.Breaker.MaxFailures
	}
	if cfg.Breaker.OpenTimeout > 0 {
		breakerCfg.OpenTimeout = cfg.Breaker.OpenTimeout
	}
	breakerCfg.OnStateChange = rt.Metrics.BreakerStateChanged
	rt.Breaker = adapter.NewCircuitBreaker(breakerCfg)

	cache := rt.buildCache(ctx)

	if cfg.Stream.Enabled {
		rt.stream = rt.buildStream()
	}

	for _, ex := range adapter.KnownExchanges {
		rest, err := newVenueClient(ex, cfg.Exchanges[string(ex)], cfg.Synth.LegTimeout)
		if err != nil {
			return nil, err
		}

		var f adapter.Fetcher = rest
		if ex == adapter.ExchangeBinance && rt.stream != nil {
			f = rt.stream.store.Wrap(ex, f)
		}
		if cache != nil {
			f = cache.Wrap(ex, f)
		}
		f = rt.Breaker.Wrap(ex, f)
		rt.Registry.Register(ex, f)
	}

	rt.Service = synth.NewService(serviceConfig(cfg), rt.Registry, commissionTable(cfg))
	rt.Service.SetObserver(rt.Metrics)

	return rt, nil
}

// Start connects the live stream, if configured, and runs its pipeline until
// ctx is cancelled. A failed initial connection is logged and the stack
// keeps serving from REST.
func (rt *Runtime) Start(ctx context.Context) {
	if rt.stream == nil {
		return
	}
	s := rt.stream

	go s.bc.Run(ctx)
	go s.store.Run(ctx)
	go s.stream.Run(ctx)

	if err := s.ws.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("binance stream unavailable, serving from REST")
		return
	}
	log.Info().Strs("symbols", rt.cfg.Stream.BinanceSymbols).Msg("binance depth stream connected")
}

// Close releases network resources.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

func (rt *Runtime) buildCache(ctx context.Context) *adapter.SnapshotCache {
	if rt.cfg.Redis.Addr == "" || rt.cfg.Cache.TTL <= 0 {
		return nil
	}

	client := adapter.NewGoRedis(rt.cfg.Redis.Addr, rt.cfg.Redis.Password, rt.cfg.Redis.DB)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		log.Warn().Err(err).Str("addr", rt.cfg.Redis.Addr).Msg("redis unreachable, snapshot cache disabled")
		client.Close()
		return nil
	}

	rt.closers = append(rt.closers, func() { client.Close() })
	log.Info().Str("addr", rt.cfg.Redis.Addr).Dur("ttl", rt.cfg.Cache.TTL).Msg("snapshot cache enabled")
	return adapter.NewSnapshotCache(client, rt.cfg.Cache.TTL)
}

func (rt *Runtime) buildStream() *liveStream {
	url := rt.cfg.Stream.BinanceURL
	if url == "" {
		url = binance.DefaultStreamURL
	}

	ws := adapter.NewWSClient(adapter.DefaultWSConfig(url))
	stream := binance.NewStream(ws)
	stream.Subscribe(rt.cfg.Stream.BinanceSymbols...)

	bc := adapter.NewBroadcaster()
	bc.OnDrop = rt.Metrics.StreamDropped
	bc.Register(stream)

	store := adapter.NewBookStore(bc, rt.cfg.Stream.StaleAfter)
	store.OnServe = rt.Metrics.StreamServed
	store.FullDepth = binance.StreamLevels
	store.WatchConnection(adapter.ExchangeBinance, ws)

	rt.closers = append(rt.closers, ws.Close)
	return &liveStream{ws: ws, stream: stream, bc: bc, store: store}
}

func newVenueClient(ex adapter.Exchange, cfg config.ExchangeConfig, timeout time.Duration) (adapter.Fetcher, error) {
	var base string
	switch ex {
	case adapter.ExchangeBinance:
		base = binance.DefaultBaseURL
	case adapter.ExchangeCoinTR:
		base = cointr.DefaultBaseURL
	case adapter.ExchangeWhiteBit:
		base = whitebit.DefaultBaseURL
	case adapter.ExchangeOKX:
		base = okx.DefaultBaseURL
	default:
		return nil, fmt.Errorf("%w: %s", adapter.ErrUnknownExchange, ex)
	}
	if cfg.BaseURL != "" {
		base = cfg.BaseURL
	}

	rc := adapter.DefaultRESTConfig(base)
	if timeout > 0 {
		rc.Timeout = timeout
	}
	if cfg.RPS > 0 {
		rc.RequestsPerSec = cfg.RPS
	}
	if cfg.Burst > 0 {
		rc.Burst = cfg.Burst
	}

	switch ex {
	case adapter.ExchangeBinance:
		return binance.New(rc), nil
	case adapter.ExchangeCoinTR:
		return cointr.New(rc), nil
	case adapter.ExchangeWhiteBit:
		return whitebit.New(rc), nil
	default:
		return okx.New(rc), nil
	}
}

func serviceConfig(cfg *config.Config) synth.Config {
	sc := synth.DefaultConfig()
	if cfg.Synth.DefaultDepth > 0 {
		sc.DefaultDepth = cfg.Synth.DefaultDepth
	}
	if cfg.Synth.MaxDepth > 0 {
		sc.MaxDepth = cfg.Synth.MaxDepth
	}
	if cfg.Synth.LegTimeout > 0 {
		sc.LegTimeout = cfg.Synth.LegTimeout
	}
	sc.Stages = []engine.Stage{engine.MarkupStage("kdv", cfg.Synth.KDVBps)}
	return sc
}

func commissionTable(cfg *config.Config) *engine.CommissionTable {
	rates := make(map[adapter.Exchange]decimal.Decimal, len(cfg.Commission))
	for name, bps := range cfg.Commission {
		rates[adapter.Exchange(name)] = bps
	}
	return engine.NewCommissionTable(rates, cfg.Synth.DefaultCommissionBps)
}
