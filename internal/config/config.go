package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`

	// Static bearer keys the bridge itself accepts. Empty means open access.
	APIKeys []string `mapstructure:"api_keys"`
}

type UpstreamConfig struct {
	BaseURL string `mapstructure:"base_url"`

	// Comma-separated credential pool, or "ENV:VAR" indirection.
	APIKeys string `mapstructure:"api_keys"`

	MaxAttempts      int           `mapstructure:"max_attempts"`
	BaseDelay        time.Duration `mapstructure:"base_delay"`
	RotationPause    time.Duration `mapstructure:"rotation_pause"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	ModelCacheTTL    time.Duration `mapstructure:"model_cache_ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Default Values
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("upstream.base_url", "https://ollama.com/api")
	v.SetDefault("upstream.api_keys", "ENV:OLLAMA_API_KEYS")
	v.SetDefault("upstream.max_attempts", 3)
	v.SetDefault("upstream.base_delay", time.Second)
	v.SetDefault("upstream.rotation_pause", time.Second)
	v.SetDefault("upstream.request_timeout", 120*time.Second)
	v.SetDefault("upstream.model_cache_ttl", 5*time.Minute)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)

	// Environment Variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// Resolve key indirection
	if strings.HasPrefix(cfg.Upstream.APIKeys, "ENV:") {
		envVar := strings.TrimPrefix(cfg.Upstream.APIKeys, "ENV:")
		// Check process environment first (explicit override)
		val := os.Getenv(envVar)
		if val == "" {
			val = v.GetString(envVar)
		}
		cfg.Upstream.APIKeys = val
	}

	return &cfg, nil
}

// KeyPool splits the configured credential string into the ordered pool.
func (u UpstreamConfig) KeyPool() []string {
	if u.APIKeys == "" {
		return nil
	}
	return strings.Split(u.APIKeys, ",")
}
