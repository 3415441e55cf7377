package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

var ErrMissingDatabaseURL = errors.New("environment variable DATABASE_URL not found")

// Config is assembled once at startup and never mutated afterwards.
type Config struct {
	Port      string
	Env       string
	StaticDir string

	DatabaseURL string
	RedisAddr   string

	// TrustedProxies are IPs or CIDR ranges allowed to set X-Forwarded-For.
	TrustedProxies []string

	Decision  DecisionConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

type DecisionConfig struct {
	URL     string
	Key     string
	Timeout time.Duration
}

type RateLimitConfig struct {
	Capacity int
	Refill   int
	Interval time.Duration
}

type LogConfig struct {
	Level string
	File  string
}

func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

func (c Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "3000")
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("STATIC_DIR", "frontend/dist")
	v.SetDefault("DECISION_TIMEOUT", "2s")
	v.SetDefault("RATE_LIMIT_CAPACITY", 10)
	v.SetDefault("RATE_LIMIT_REFILL", 5)
	v.SetDefault("RATE_LIMIT_INTERVAL", "10s")
	v.SetDefault("LOG_LEVEL", "info")
}

// Load reads an optional .env file, then the process environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// a missing .env is fine; real environment variables win over it
		_ = godotenv.Load(f)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:           v.GetString("PORT"),
		Env:            strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV"))),
		StaticDir:      v.GetString("STATIC_DIR"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		RedisAddr:      v.GetString("REDIS_ADDR"),
		TrustedProxies: splitList(v.GetString("TRUSTED_PROXIES")),
		Decision: DecisionConfig{
			URL:     v.GetString("DECISION_URL"),
			Key:     v.GetString("DECISION_KEY"),
			Timeout: v.GetDuration("DECISION_TIMEOUT"),
		},
		RateLimit: RateLimitConfig{
			Capacity: v.GetInt("RATE_LIMIT_CAPACITY"),
			Refill:   v.GetInt("RATE_LIMIT_REFILL"),
			Interval: v.GetDuration("RATE_LIMIT_INTERVAL"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
			File:  v.GetString("LOG_FILE"),
		},
	}

	if cfg.DatabaseURL == "" {
		return Config{}, ErrMissingDatabaseURL
	}
	if cfg.Decision.URL != "" && cfg.Decision.Key == "" {
		return Config{}, errors.New("DECISION_KEY is required when DECISION_URL is set")
	}
	if cfg.RateLimit.Capacity <= 0 || cfg.RateLimit.Refill <= 0 || cfg.RateLimit.Interval <= 0 {
		return Config{}, fmt.Errorf("invalid rate limit settings: capacity=%d refill=%d interval=%s",
			cfg.RateLimit.Capacity, cfg.RateLimit.Refill, cfg.RateLimit.Interval)
	}

	return cfg, nil
}

// splitList reads a comma separated env value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
