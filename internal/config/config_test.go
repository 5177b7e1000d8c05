package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	assert.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, "https://ollama.com/api", cfg.Upstream.BaseURL)
	assert.Equal(t, 3, cfg.Upstream.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Upstream.BaseDelay)
	assert.Equal(t, 120*time.Second, cfg.Upstream.RequestTimeout)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 10.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
}

func TestLoadConfig_KeyIndirectionResolvesFromEnvironment(t *testing.T) {
	t.Setenv("OLLAMA_API_KEYS", "alpha,beta,gamma")

	cfg, err := LoadConfig()
	assert.NoError(t, err)

	assert.Equal(t, "alpha,beta,gamma", cfg.Upstream.APIKeys)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, cfg.Upstream.KeyPool())
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("UPSTREAM_BASE_URL", "http://localhost:11434/api")

	cfg, err := LoadConfig()
	assert.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "http://localhost:11434/api", cfg.Upstream.BaseURL)
}

func TestKeyPool_Empty(t *testing.T) {
	u := UpstreamConfig{}
	assert.Nil(t, u.KeyPool())
}
