package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Cache backends.
const (
	BackendInMemory  = "in_memory"
	BackendMemcached = "memcached"
	BackendValkey    = "valkey"
	BackendLevelDB   = "leveldb"
)

// Config holds service configuration loaded from YAML, .env and the environment.
type Config struct {
	ServerPort string `validate:"required,numeric"`

	GeocodingAPIURL string        `validate:"required,url"`
	ForecastAPIURL  string        `validate:"required,url"`
	UpstreamTimeout time.Duration `validate:"gte=0"`
	Breaker         BreakerConfig

	RequestTimeout time.Duration `validate:"gte=0"`
	MaxCityLength  int           `validate:"gte=0"`

	CacheTTL     time.Duration `validate:"gt=0"`
	CacheBackend string        `validate:"oneof=in_memory memcached valkey leveldb"`

	MemcachedAddrs        string        `validate:"required_if=CacheBackend memcached"`
	MemcachedTimeout      time.Duration `validate:"gte=0"`
	MemcachedMaxIdleConns int           `validate:"gte=0"`
	ValkeyAddr            string        `validate:"required_if=CacheBackend valkey"`
	LevelDBPath           string        `validate:"required_if=CacheBackend leveldb"`

	WarmCities   []string      `validate:"dive,required"`
	WarmInterval time.Duration `validate:"gte=0"`

	ShutdownTimeout time.Duration `validate:"gt=0"`

	TrackedCities []string
}

// BreakerConfig configures the optional per-stage upstream circuit breaker.
type BreakerConfig struct {
	Enabled          bool
	FailureThreshold uint32        `validate:"gte=1"`
	MaxRequests      uint32        `validate:"gte=1"`
	Interval         time.Duration `validate:"gte=0"`
	Timeout          time.Duration `validate:"gt=0"`
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Upstream struct {
		GeocodingURL   string `yaml:"geocoding_url"`
		ForecastURL    string `yaml:"forecast_url"`
		Timeout        string `yaml:"timeout"`
		CircuitBreaker struct {
			Enabled          bool   `yaml:"enabled"`
			FailureThreshold uint32 `yaml:"failure_threshold"`
			MaxRequests      uint32 `yaml:"max_requests"`
			Interval         string `yaml:"interval"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"upstream"`

	Request struct {
		Timeout       string `yaml:"timeout"`
		MaxCityLength *int   `yaml:"max_city_length"`
	} `yaml:"request"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Valkey struct {
			Addr string `yaml:"addr"`
		} `yaml:"valkey"`
		LevelDB struct {
			Path string `yaml:"path"`
		} `yaml:"leveldb"`
		Warming struct {
			Cities   []string `yaml:"cities"`
			Interval string   `yaml:"interval"`
		} `yaml:"warming"`
	} `yaml:"cache"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Metrics struct {
		TrackedCities []string `yaml:"tracked_cities"`
	} `yaml:"metrics"`
}

const (
	defaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	defaultForecastURL  = "https://api.open-meteo.com/v1/forecast"
)

var validate = validator.New()

// Load reads configuration from config/{ENV_NAME}.yaml (default dev). A .env
// file in the working directory is loaded first if present; variables already
// set in the environment win. Call from project root.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := fromFile(fc)
	applyEnv(cfg)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// fromFile applies defaults to the parsed YAML.
func fromFile(fc fileConfig) *Config {
	cfg := &Config{
		ServerPort:      stringOr(fc.Server.Port, "8080"),
		GeocodingAPIURL: stringOr(fc.Upstream.GeocodingURL, defaultGeocodingURL),
		ForecastAPIURL:  stringOr(fc.Upstream.ForecastURL, defaultForecastURL),
		UpstreamTimeout: parseDurationOrZero(fc.Upstream.Timeout, 0),
		RequestTimeout:  parseDurationOrZero(fc.Request.Timeout, 0),
		MaxCityLength:   100,
		CacheTTL:        parseDuration(fc.Cache.TTL, 60*time.Second),
		CacheBackend:    strings.TrimSpace(strings.ToLower(fc.Cache.Backend)),

		MemcachedAddrs:        strings.TrimSpace(fc.Cache.Memcached.Addrs),
		MemcachedTimeout:      parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond),
		MemcachedMaxIdleConns: fc.Cache.Memcached.MaxIdleConns,
		ValkeyAddr:            strings.TrimSpace(fc.Cache.Valkey.Addr),
		LevelDBPath:           strings.TrimSpace(fc.Cache.LevelDB.Path),

		WarmCities:   fc.Cache.Warming.Cities,
		WarmInterval: parseDurationOrZero(fc.Cache.Warming.Interval, 0),

		ShutdownTimeout: parseDuration(fc.Shutdown.Timeout, 30*time.Second),
		TrackedCities:   fc.Metrics.TrackedCities,
	}
	if fc.Request.MaxCityLength != nil {
		cfg.MaxCityLength = *fc.Request.MaxCityLength
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = BackendInMemory
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}
	if cfg.ValkeyAddr == "" {
		cfg.ValkeyAddr = "localhost:6379"
	}
	if cfg.LevelDBPath == "" {
		cfg.LevelDBPath = "data/weather-cache"
	}

	cb := fc.Upstream.CircuitBreaker
	cfg.Breaker = BreakerConfig{
		Enabled:          cb.Enabled,
		FailureThreshold: cb.FailureThreshold,
		MaxRequests:      cb.MaxRequests,
		Interval:         parseDurationOrZero(cb.Interval, 0),
		Timeout:          parseDuration(cb.Timeout, 30*time.Second),
	}
	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = 5
	}
	if cfg.Breaker.MaxRequests == 0 {
		cfg.Breaker.MaxRequests = 1
	}
	return cfg
}

// applyEnv overrides file values with non-empty environment variables.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND"))); v != "" {
		cfg.CacheBackend = v
	}
	overrideString(&cfg.MemcachedAddrs, "MEMCACHED_ADDRS")
	overrideString(&cfg.ValkeyAddr, "VALKEY_ADDR")
	overrideString(&cfg.LevelDBPath, "LEVELDB_PATH")
	overrideString(&cfg.GeocodingAPIURL, "GEOCODING_API_URL")
	overrideString(&cfg.ForecastAPIURL, "FORECAST_API_URL")
	overrideString(&cfg.ServerPort, "PORT")
}

func overrideString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func stringOr(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero and negative durations are returned as-is.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
