package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned when a value cannot be used.
var ErrInvalidConfig = errors.New("invalid config")

var maxBps = decimal.NewFromInt(10000)

// Exchanges with per-venue settings.
var exchangeNames = []string{"binance", "cointr", "whitebit", "okx"}

// Config holds all application configuration.
type Config struct {
	Env        string `mapstructure:"env"`
	Log        LogConfig
	HTTP       HTTPConfig
	RPC        RPCConfig
	Synth      SynthConfig
	Commission map[string]decimal.Decimal
	Exchanges  map[string]ExchangeConfig
	Breaker    BreakerConfig
	Cache      CacheConfig
	Redis      RedisConfig
	Stream     StreamConfig
}

// LogConfig selects log level and output format ("console" or "json").
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// HTTPConfig holds API server settings.
type HTTPConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// RPCConfig holds gRPC server settings.
type RPCConfig struct {
	SocketPath string `mapstructure:"socket_path"`
}

// SynthConfig holds composition settings.
type SynthConfig struct {
	DefaultDepth         int             `mapstructure:"default_depth"`
	MaxDepth             int             `mapstructure:"max_depth"`
	LegTimeout           time.Duration   `mapstructure:"leg_timeout"`
	DefaultCommissionBps decimal.Decimal `mapstructure:"default_commission_bps"`
	KDVBps               decimal.Decimal `mapstructure:"kdv_bps"`
}

// ExchangeConfig holds per-venue REST settings. An empty BaseURL uses the
// venue's public endpoint.
type ExchangeConfig struct {
	BaseURL string  `mapstructure:"base_url"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// BreakerConfig holds per-venue circuit breaker settings.
type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

// CacheConfig holds snapshot cache settings. A zero TTL disables caching.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// RedisConfig holds Redis connection settings. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StreamConfig holds live depth-stream settings.
type StreamConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BinanceURL     string        `mapstructure:"binance_url"`
	BinanceSymbols []string      `mapstructure:"binance_symbols"`
	StaleAfter     time.Duration `mapstructure:"stale_after"`
}

// Load reads configuration from an optional file, a .env file in the working
// directory and environment variables prefixed with SYNTHBOOK_, in increasing
// order of precedence.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("SYNTHBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg := &Config{}
	cfg.Env = v.GetString("env")

	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	cfg.HTTP = HTTPConfig{
		Addr:           v.GetString("http.addr"),
		ReadTimeout:    v.GetDuration("http.read_timeout"),
		WriteTimeout:   v.GetDuration("http.write_timeout"),
		RequestTimeout: v.GetDuration("http.request_timeout"),
	}

	cfg.RPC = RPCConfig{
		SocketPath: v.GetString("rpc.socket_path"),
	}

	defaultBps, err := decimalValue(v, "synth.default_commission_bps")
	if err != nil {
		return nil, err
	}
	kdvBps, err := decimalValue(v, "synth.kdv_bps")
	if err != nil {
		return nil, err
	}
	cfg.Synth = SynthConfig{
		DefaultDepth:         v.GetInt("synth.default_depth"),
		MaxDepth:             v.GetInt("synth.max_depth"),
		LegTimeout:           v.GetDuration("synth.leg_timeout"),
		DefaultCommissionBps: defaultBps,
		KDVBps:               kdvBps,
	}

	cfg.Commission = make(map[string]decimal.Decimal, len(exchangeNames))
	cfg.Exchanges = make(map[string]ExchangeConfig, len(exchangeNames))
	for _, name := range exchangeNames {
		bps, err := decimalValue(v, "commission."+name)
		if err != nil {
			return nil, err
		}
		cfg.Commission[name] = bps
		cfg.Exchanges[name] = ExchangeConfig{
			BaseURL: v.GetString("exchange." + name + ".base_url"),
			RPS:     v.GetFloat64("exchange." + name + ".rps"),
			Burst:   v.GetInt("exchange." + name + ".burst"),
		}
	}

	cfg.Breaker = BreakerConfig{
		MaxFailures: v.GetUint32("breaker.max_failures"),
		OpenTimeout: v.GetDuration("breaker.open_timeout"),
	}

	cfg.Cache = CacheConfig{
		TTL: v.GetDuration("cache.ttl"),
	}

	cfg.Redis = RedisConfig{
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
	}

	cfg.Stream = StreamConfig{
		Enabled:        v.GetBool("stream.enabled"),
		BinanceURL:     v.GetString("stream.binance_url"),
		BinanceSymbols: listValue(v, "stream.binance_symbols"),
		StaleAfter:     v.GetDuration("stream.stale_after"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("http.addr", "127.0.0.1:8080")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "15s")
	v.SetDefault("http.request_timeout", "10s")

	v.SetDefault("rpc.socket_path", "/var/run/synthbook/synthbook.sock")

	v.SetDefault("synth.default_depth", 20)
	v.SetDefault("synth.max_depth", 100)
	v.SetDefault("synth.leg_timeout", "5s")
	v.SetDefault("synth.default_commission_bps", "10")
	v.SetDefault("synth.kdv_bps", "0")

	v.SetDefault("commission.binance", "10")
	v.SetDefault("commission.cointr", "15")
	v.SetDefault("commission.whitebit", "10")
	v.SetDefault("commission.okx", "10")

	for _, name := range exchangeNames {
		v.SetDefault("exchange."+name+".base_url", "")
		v.SetDefault("exchange."+name+".rps", 10)
		v.SetDefault("exchange."+name+".burst", 20)
	}

	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.open_timeout", "30s")

	v.SetDefault("cache.ttl", "1s")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("stream.enabled", false)
	v.SetDefault("stream.binance_url", "wss://stream.binance.com:9443/stream")
	v.SetDefault("stream.binance_symbols", []string{"ETHUSDT", "BTCUSDT"})
	v.SetDefault("stream.stale_after", "3s")
}

// decimalValue parses a decimal setting; viper hands env values over as
// strings and file values as numbers.
func decimalValue(v *viper.Viper, key string) (decimal.Decimal, error) {
	raw := v.GetString(key)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, key, raw)
	}
	return d, nil
}

// listValue accepts a YAML list or a comma/space separated env string.
func listValue(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, strings.ToUpper(part))
			}
		}
	}
	return out
}

func (c *Config) validate() error {
	if c.Synth.DefaultDepth <= 0 {
		return fmt.Errorf("%w: synth.default_depth must be positive", ErrInvalidConfig)
	}
	if c.Synth.MaxDepth < c.Synth.DefaultDepth {
		return fmt.Errorf("%w: synth.max_depth must be >= synth.default_depth", ErrInvalidConfig)
	}
	if c.Synth.KDVBps.IsNegative() {
		return fmt.Errorf("%w: synth.kdv_bps must not be negative", ErrInvalidConfig)
	}
	// The markup lowers bids by kdv_bps, so 100% or more zeroes them.
	if c.Synth.KDVBps.GreaterThanOrEqual(maxBps) {
		return fmt.Errorf("%w: synth.kdv_bps must be below %s", ErrInvalidConfig, maxBps)
	}
	for name, bps := range c.Commission {
		if bps.IsNegative() {
			return fmt.Errorf("%w: commission.%s must not be negative", ErrInvalidConfig, name)
		}
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: log.format must be console or json", ErrInvalidConfig)
	}
	return nil
}
