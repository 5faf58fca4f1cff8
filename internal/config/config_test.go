package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfigFile(t, `
service:
  name: gateway-test
  port: 9000
backend:
  base_url: http://backend:8080/app/
  timeout: 5s
cache:
  refresh_delay: 90s
  max_cacheable_size: 2048
local:
  base_path: /var/lib/goassemble
  write_through: true
rewrite:
  mode: absolute
  visible_base_url: http://public/site/
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gateway-test", cfg.Service.Name)
	assert.Equal(t, 9000, cfg.Service.Port)
	assert.Equal(t, "http://backend:8080/app/", cfg.Backend.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout.Duration)
	assert.Equal(t, 90*time.Second, cfg.Cache.RefreshDelay.Duration)
	assert.Equal(t, int64(2048), cfg.Cache.MaxCacheableSize)
	assert.Equal(t, "/var/lib/goassemble", cfg.Local.BasePath)
	assert.True(t, cfg.Local.WriteThrough)
	assert.Equal(t, "absolute", cfg.Rewrite.Mode)
	assert.Equal(t, "http://public/site/", cfg.Rewrite.VisibleBaseURL)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, `
backend:
  base_url: http://backend/
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "goassemble", cfg.Service.Name)
	assert.Equal(t, DefaultPort, cfg.Service.Port)
	assert.Equal(t, DefaultBackendTimeout, cfg.Backend.Timeout.Duration)
	assert.Equal(t, DefaultRefreshDelay, cfg.Cache.RefreshDelay.Duration)
	assert.Equal(t, int64(DefaultMaxCacheableSize), cfg.Cache.MaxCacheableSize)
	assert.Equal(t, DefaultStore, cfg.Cache.Store)
	assert.Equal(t, DefaultRedisKeyPrefix, cfg.Cache.Redis.KeyPrefix)
	assert.Equal(t, DefaultRewriteMode, cfg.Rewrite.Mode)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
service:
  port: 9000
backend:
  base_url: http://from-file/
`)

	t.Setenv("GATEWAY_PORT", "7777")
	t.Setenv("GATEWAY_BACKEND_URL", "http://from-env/")
	t.Setenv("GATEWAY_BACKEND_TIMEOUT", "2s")
	t.Setenv("GATEWAY_CACHE_STORE", "memory")
	t.Setenv("GATEWAY_WRITE_THROUGH", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Service.Port)
	assert.Equal(t, "http://from-env/", cfg.Backend.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Backend.Timeout.Duration)
	assert.True(t, cfg.Local.WriteThrough)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "backend: [not a mapping")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Backend.BaseURL = "http://backend/"
		cfg.SetDefaults()
		return cfg
	}

	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("backend url is required", func(t *testing.T) {
		cfg := valid()
		cfg.Backend.BaseURL = ""
		assert.ErrorIs(t, cfg.Validate(), ErrMissingBackendURL)
	})

	t.Run("unknown store is rejected", func(t *testing.T) {
		cfg := valid()
		cfg.Cache.Store = "memcached"
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidStore)
	})

	t.Run("redis store needs an address", func(t *testing.T) {
		cfg := valid()
		cfg.Cache.Store = "redis"
		assert.Error(t, cfg.Validate())

		cfg.Cache.Redis.Address = "localhost:6379"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unknown rewrite mode is rejected", func(t *testing.T) {
		cfg := valid()
		cfg.Rewrite.Mode = "proxy"
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative cacheable size is rejected", func(t *testing.T) {
		cfg := valid()
		cfg.Cache.MaxCacheableSize = -1
		assert.Error(t, cfg.Validate())
	})
}

func TestDurationUnmarshalYAML(t *testing.T) {
	type doc struct {
		D Duration `yaml:"d"`
	}

	t.Run("string form", func(t *testing.T) {
		var d doc
		require.NoError(t, yaml.Unmarshal([]byte("d: 1500ms"), &d))
		assert.Equal(t, 1500*time.Millisecond, d.D.Duration)
	})

	t.Run("integer nanoseconds", func(t *testing.T) {
		var d doc
		require.NoError(t, yaml.Unmarshal([]byte("d: 1000000000"), &d))
		assert.Equal(t, time.Second, d.D.Duration)
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		var d doc
		assert.Error(t, yaml.Unmarshal([]byte("d: soon"), &d))
	})
}
