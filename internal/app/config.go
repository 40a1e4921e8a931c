package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/xenking/venue-orders/internal/domain/order"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (VENUE_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage      string `default:"postgres" usage:"Storage backend: postgres or memory"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (VENUE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (VENUE_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Orders       OrdersConfig
	Seed         SeedConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// OrdersConfig controls order placement.
type OrdersConfig struct {
	InitialStatus string `default:"ESTABLISHED" usage:"Status assigned to new orders" flag:"orders-initial-status"`
}

// SeedConfig controls seeding of the in-memory store at startup.
type SeedConfig struct {
	MenuFile string `usage:"Menu JSON (or .json.gz) to load; empty uses the embedded menu" flag:"seed-menu-file"`
	StaffKey string `usage:"Staff API key to register" flag:"seed-staff-key"`
}

// RateLimitConfig controls the per-client token bucket limiter.
type RateLimitConfig struct {
	Rate  float64       `default:"10" usage:"Requests per second per client"`
	Burst int           `default:"50" usage:"Burst size per client"`
	Idle  time.Duration `default:"5m" usage:"Idle time before a client bucket is evicted"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads .env (if present), then configuration from environment
// variables, flags and YAML config files, and applies platform defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}
	return loadConfig(aconfig.Config{
		EnvPrefix: "VENUE",
		Files:     []string{"config.yaml", "/etc/venue/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set VENUE_DATABASE_URL or DATABASE_URL")
		}
	case StorageMemory:
	default:
		return errors.Errorf("unknown storage %q: want %q or %q", c.Storage, StoragePostgres, StorageMemory)
	}

	status, err := order.ParseStatus(c.Orders.InitialStatus)
	if err != nil {
		return errors.Wrap(err, "orders initial status")
	}
	if status.Terminal() {
		return errors.Errorf("orders initial status %s is terminal", status)
	}
	c.Orders.InitialStatus = status.String()

	if c.RateLimit.Rate <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("rate limit rate and burst must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's VENUE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
