package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (STORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"HTTP server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	Session      SessionConfig
	Holding      HoldingConfig
	Checkout     CheckoutConfig
	Events       EventsConfig
	RateLimit    RateLimitConfig
	Graceful     GracefulConfig
}

// SessionConfig controls cookie sessions.
type SessionConfig struct {
	Secret string        `usage:"HMAC secret for session cookie signing (STORE_SESSION_SECRET)" flag:"session-secret"`
	TTL    time.Duration `default:"24h" usage:"Session lifetime"`
}

// HoldingConfig controls where carts of logged-out users are kept.
type HoldingConfig struct {
	Backend  string        `default:"memory" usage:"Holding store backend: memory, postgres or redis"`
	TTL      time.Duration `default:"72h" usage:"How long a held cart survives (memory and redis backends)"`
	RedisURL string        `usage:"Redis connection URL (redis backend only)" flag:"holding-redis-url"`
}

// CheckoutConfig controls checkout persistence behaviour.
type CheckoutConfig struct {
	Atomic bool `default:"true" usage:"Write invoice, items and shipments in a single transaction"`
}

// EventsConfig controls the AMQP event publisher. Empty URL disables
// publishing.
type EventsConfig struct {
	AMQPURL string `usage:"RabbitMQ connection URL (STORE_EVENTS_AMQP_URL)" flag:"amqp-url"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STORE",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set STORE_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Session.Secret == "" {
		return nil, errors.New("session secret is required: set STORE_SESSION_SECRET")
	}
	switch cfg.Holding.Backend {
	case "memory", "postgres":
	case "redis":
		if cfg.Holding.RedisURL == "" {
			return nil, errors.New("redis holding backend requires STORE_HOLDING_REDIS_URL")
		}
	default:
		return nil, errors.Errorf("unknown holding backend %q", cfg.Holding.Backend)
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STORE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
