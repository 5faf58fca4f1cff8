package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jonesrussell/goassemble/internal/logger"
)

// Config holds all configuration for the goassemble gateway.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Backend BackendConfig `yaml:"backend"`
	Cache   CacheConfig   `yaml:"cache"`
	Local   LocalConfig   `yaml:"local"`
	Rewrite RewriteConfig `yaml:"rewrite"`
	Logging logger.Config `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Port    int    `yaml:"port"  env:"GATEWAY_PORT"`
	Debug   bool   `yaml:"debug" env:"GATEWAY_DEBUG"`
}

// BackendConfig describes the provider application fragments are fetched from.
type BackendConfig struct {
	// BaseURL is the URL prefix of the provider application, e.g.
	// "http://backend:8080/app/".
	BaseURL string `yaml:"base_url" env:"GATEWAY_BACKEND_URL"`
	// Timeout bounds a single backend fetch.
	Timeout Duration `yaml:"timeout" env:"GATEWAY_BACKEND_TIMEOUT"`
	// MaxIdleConnsPerHost tunes the connection pool toward the backend.
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`
}

// CacheConfig controls the fragment cache.
type CacheConfig struct {
	// RefreshDelay is how long a cached entry is considered fresh.
	RefreshDelay Duration `yaml:"refresh_delay" env:"GATEWAY_CACHE_REFRESH_DELAY"`
	// MaxCacheableSize caps the size of a response that may be cached.
	// Larger responses are still served, just never cached.
	MaxCacheableSize int64 `yaml:"max_cacheable_size" env:"GATEWAY_CACHE_MAX_SIZE"`
	// Store selects the cache backend: "memory" or "redis".
	Store string `yaml:"store" env:"GATEWAY_CACHE_STORE"`
	// MaxEntries bounds the in-memory store. Zero means unbounded.
	MaxEntries int         `yaml:"max_entries"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection configuration for the redis cache store.
type RedisConfig struct {
	Address   string `yaml:"address"    env:"REDIS_ADDRESS"`
	Password  string `yaml:"password"   env:"REDIS_PASSWORD"`
	DB        int    `yaml:"db"         env:"REDIS_DB"`
	KeyPrefix string `yaml:"key_prefix"`
}

// LocalConfig describes the local filesystem mirror used as a fallback source.
type LocalConfig struct {
	// BasePath is the directory holding mirrored provider content.
	// Empty disables the filesystem fallback.
	BasePath string `yaml:"base_path" env:"GATEWAY_LOCAL_BASE"`
	// WriteThrough mirrors every successful backend fetch to BasePath.
	WriteThrough bool `yaml:"write_through" env:"GATEWAY_WRITE_THROUGH"`
}

// RewriteConfig controls URL rewriting of aggregated HTML.
type RewriteConfig struct {
	// Mode is "absolute" or "relative".
	Mode string `yaml:"mode" env:"GATEWAY_REWRITE_MODE"`
	// VisibleBaseURL is the public URL prefix the gateway is reachable at.
	// Empty means the backend base URL is used.
	VisibleBaseURL string `yaml:"visible_base_url" env:"GATEWAY_VISIBLE_BASE_URL"`
}

// Default configuration values.
const (
	DefaultPort             = 8060
	DefaultBackendTimeout   = 30 * time.Second
	DefaultRefreshDelay     = 60 * time.Second
	DefaultMaxCacheableSize = 1 << 20 // 1 MiB
	DefaultStore            = "memory"
	DefaultRedisKeyPrefix   = "goassemble:"
	DefaultRewriteMode      = "relative"
)

// SetDefaults applies default values to the config.
func (c *Config) SetDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "goassemble"
	}
	if c.Service.Version == "" {
		c.Service.Version = "dev"
	}
	if c.Service.Port == 0 {
		c.Service.Port = DefaultPort
	}
	if c.Backend.Timeout.Duration == 0 {
		c.Backend.Timeout = Duration{DefaultBackendTimeout}
	}
	if c.Cache.RefreshDelay.Duration == 0 {
		c.Cache.RefreshDelay = Duration{DefaultRefreshDelay}
	}
	if c.Cache.MaxCacheableSize == 0 {
		c.Cache.MaxCacheableSize = DefaultMaxCacheableSize
	}
	if c.Cache.Store == "" {
		c.Cache.Store = DefaultStore
	}
	if c.Cache.Redis.KeyPrefix == "" {
		c.Cache.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if c.Rewrite.Mode == "" {
		c.Rewrite.Mode = DefaultRewriteMode
	}
}

// Validation errors.
var (
	ErrMissingBackendURL = errors.New("backend base_url is required")
	ErrInvalidStore      = errors.New(`cache store must be "memory" or "redis"`)
)

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return ErrMissingBackendURL
	}
	if _, err := url.Parse(c.Backend.BaseURL); err != nil {
		return fmt.Errorf("backend base_url: %w", err)
	}
	if c.Rewrite.VisibleBaseURL != "" {
		if _, err := url.Parse(c.Rewrite.VisibleBaseURL); err != nil {
			return fmt.Errorf("rewrite visible_base_url: %w", err)
		}
	}
	switch c.Cache.Store {
	case "memory":
	case "redis":
		if c.Cache.Redis.Address == "" {
			return errors.New("redis address is required when cache store is redis")
		}
	default:
		return ErrInvalidStore
	}
	switch c.Rewrite.Mode {
	case "absolute", "relative":
	default:
		return fmt.Errorf("rewrite mode %q: must be absolute or relative", c.Rewrite.Mode)
	}
	if c.Cache.MaxCacheableSize < 0 {
		return errors.New("cache max_cacheable_size must not be negative")
	}
	return nil
}
