package server

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/tkrehbiel/activitysift/server/discovery"
	"github.com/tkrehbiel/activitysift/server/resolve"
	"github.com/tkrehbiel/activitysift/server/telemetry"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type serverConfig struct {
	HostName     string `yaml:"host"           env:"ACTIVITYSIFT_SERVER_HOST"`
	Certificate  string `yaml:"certificate"    env:"ACTIVITYSIFT_SERVER_CERTIFICATE"`
	PrivateKey   string `yaml:"privatekey"     env:"ACTIVITYSIFT_SERVER_PRIVATEKEY"`
	Port         int    `yaml:"port"           env:"ACTIVITYSIFT_SERVER_PORT"           validate:"min=0,max=65535"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" env:"ACTIVITYSIFT_SERVER_MAX_BODY_BYTES" validate:"gt=0"`
}

func (s serverConfig) useTLS() bool {
	return s.Certificate != "" && s.PrivateKey != ""
}

type discoveryConfig struct {
	Domains                []string `yaml:"domains"                  env:"ACTIVITYSIFT_DISCOVERY_DOMAINS" envSeparator:"," validate:"dive,required"`
	MaxRedirectFetches     int      `yaml:"max_redirect_fetches"     env:"ACTIVITYSIFT_DISCOVERY_MAX_REDIRECT_FETCHES"     validate:"min=0,max=100"`
	IncludeRedirectSources bool     `yaml:"include_redirect_sources" env:"ACTIVITYSIFT_DISCOVERY_INCLUDE_REDIRECT_SOURCES"`
	IncludeReservedHosts   bool     `yaml:"include_reserved_hosts"   env:"ACTIVITYSIFT_DISCOVERY_INCLUDE_RESERVED_HOSTS"`
}

type resolverConfig struct {
	Enabled      bool          `yaml:"enabled"       env:"ACTIVITYSIFT_RESOLVER_ENABLED"`
	Timeout      time.Duration `yaml:"timeout"       env:"ACTIVITYSIFT_RESOLVER_TIMEOUT"       validate:"min=0"`
	MaxRedirects int           `yaml:"max_redirects" env:"ACTIVITYSIFT_RESOLVER_MAX_REDIRECTS" validate:"min=0"`
	RequireHTML  bool          `yaml:"require_html"  env:"ACTIVITYSIFT_RESOLVER_REQUIRE_HTML"`
	CacheSize    int64         `yaml:"cache_size"    env:"ACTIVITYSIFT_RESOLVER_CACHE_SIZE"    validate:"min=0"`
	CacheTTL     time.Duration `yaml:"cache_ttl"     env:"ACTIVITYSIFT_RESOLVER_CACHE_TTL"     validate:"min=0"`
	Database     string        `yaml:"database"      env:"ACTIVITYSIFT_RESOLVER_DATABASE"` // empty keeps redirects in memory only
	StoreMaxAge  time.Duration `yaml:"store_max_age" env:"ACTIVITYSIFT_RESOLVER_STORE_MAX_AGE" validate:"min=0"` // 0 keeps stored redirects forever
}

type logConfig struct {
	Level  string `yaml:"level"  env:"ACTIVITYSIFT_LOG_LEVEL"  validate:"omitempty,oneof=trace debug info warn error"`
	Format string `yaml:"format" env:"ACTIVITYSIFT_LOG_FORMAT" validate:"logformat"`
}

type Config struct {
	URL       string          `yaml:"url" env:"ACTIVITYSIFT_URL" validate:"omitempty,http_url"` // public-facing URL, sent with outbound requests
	Server    serverConfig    `yaml:"server"`
	Discovery discoveryConfig `yaml:"discovery"`
	Resolver  resolverConfig  `yaml:"resolver"`
	Log       logConfig       `yaml:"log"`
}

// DefaultConfig is used for anything a config file or the environment leaves out
func DefaultConfig() Config {
	opts := discovery.DefaultOptions()
	return Config{
		Server: serverConfig{
			Port:         8080,
			MaxBodyBytes: 1 << 20,
		},
		Discovery: discoveryConfig{
			MaxRedirectFetches:     opts.MaxRedirectFetches,
			IncludeRedirectSources: opts.IncludeRedirectSources,
			IncludeReservedHosts:   opts.IncludeReservedHosts,
		},
		Resolver: resolverConfig{
			Timeout:      resolve.DefaultTimeout,
			MaxRedirects: resolve.DefaultMaxRedirects,
			RequireHTML:  true,
			CacheSize:    resolve.DefaultCacheSize,
			CacheTTL:     resolve.DefaultCacheTTL,
		},
		Log: logConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ReadConfig parses a yaml (or json) config on top of the defaults
func ReadConfig(b []byte) (Config, error) {
	config := DefaultConfig()
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return config, nil
	}
	if err := yaml.Unmarshal(b, &config); err != nil {
		return config, fmt.Errorf("parsing config: %w", err)
	}
	return config, nil
}

// ApplyEnv overrides config values from ACTIVITYSIFT_* variables.
// A nil environ reads the process environment.
func ApplyEnv(config *Config, environ map[string]string) error {
	if err := env.ParseWithOptions(config, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	return nil
}

// LoadConfig reads a config file, then the environment.
// A missing file is not an error, the defaults are used instead.
func LoadConfig(filename string) (Config, error) {
	config := DefaultConfig()
	if filename != "" {
		b, err := os.ReadFile(filename)
		switch {
		case errors.Is(err, os.ErrNotExist):
			telemetry.Log("config [%s] not found, using defaults", filename)
		case err != nil:
			return config, fmt.Errorf("opening config [%s]: %w", filename, err)
		default:
			if config, err = ReadConfig(b); err != nil {
				return config, err
			}
		}
	}
	if err := ApplyEnv(&config, nil); err != nil {
		return config, err
	}
	return config, config.Validate()
}

// Validate checks the validate tags.
// The max_redirect_fetches ceiling is discovery.MaxRedirectBudget.
func (c Config) Validate() error {
	return validateStruct(c, ErrInvalidConfig)
}

// DiscoveryOptions are the per-request defaults for original post discovery
func (c Config) DiscoveryOptions() discovery.Options {
	opts := discovery.DefaultOptions()
	opts.Domains = c.Discovery.Domains
	opts.MaxRedirectFetches = c.Discovery.MaxRedirectFetches
	opts.IncludeRedirectSources = c.Discovery.IncludeRedirectSources
	opts.IncludeReservedHosts = c.Discovery.IncludeReservedHosts
	return opts
}

// NewResolver builds the configured redirect resolver.
// It returns nil when resolution is disabled. The returned func releases
// the cache and database and is always safe to call.
func (c Config) NewResolver() (resolve.Resolver, func(), error) {
	if !c.Resolver.Enabled {
		return nil, func() {}, nil
	}
	h := resolve.NewHTTPResolver()
	h.Timeout = c.Resolver.Timeout
	h.MaxRedirects = c.Resolver.MaxRedirects
	h.RequireHTML = c.Resolver.RequireHTML
	if c.URL != "" {
		h.UserAgent = fmt.Sprintf("activitysift (+%s)", c.URL)
	}

	cache := resolve.NewCachingResolver(h, c.Resolver.CacheSize, c.Resolver.CacheTTL)
	if c.Resolver.Database == "" {
		return cache, cache.Stop, nil
	}
	store := resolve.NewSQLiteStore(c.Resolver.Database, c.Resolver.StoreMaxAge)
	if err := store.Open(); err != nil {
		cache.Stop()
		return nil, func() {}, err
	}
	cache.WithStore(store)
	return cache, func() {
		cache.Stop()
		store.Close()
	}, nil
}
