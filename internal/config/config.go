package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "PAINTSYNC"

const (
	StoreDriverFile     = "file"
	StoreDriverPostgres = "postgres"
)

// Config holds environment-driven configuration. Every field maps to a
// PAINTSYNC_* variable, e.g. Addr <- PAINTSYNC_ADDR.
type Config struct {
	Addr         string `envconfig:"ADDR" default:":3001"`
	StoreDriver  string `envconfig:"STORE_DRIVER" default:"file"`
	ProductsFile string `envconfig:"PRODUCTS_FILE" default:"data/paint-products.json"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`

	Bitrix BitrixConfig `envconfig:"BITRIX"`
	Queue  QueueConfig  `envconfig:"QUEUE"`

	AdminJWTSecret string `envconfig:"ADMIN_JWT_SECRET"`
	CORSOrigins    string `envconfig:"CORS_ORIGINS" default:"*"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string `envconfig:"LOG_FORMAT" default:"text"`
}

// BitrixConfig describes the CRM connection. WebhookURL is the inbound
// webhook base, e.g. https://example.bitrix24.com/rest/1/secret/.
type BitrixConfig struct {
	WebhookURL      string        `envconfig:"WEBHOOK_URL"`
	EntityTypeID    int           `envconfig:"ENTITY_TYPE_ID" default:"0"`
	AdminUserID     int           `envconfig:"ADMIN_USER_ID" default:"1"`
	AutoSync        bool          `envconfig:"AUTO_SYNC" default:"true"`
	SyncInterval    time.Duration `envconfig:"SYNC_INTERVAL" default:"0s"`
	WebhooksEnabled bool          `envconfig:"WEBHOOKS_ENABLED" default:"true"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	SyncConcurrency int           `envconfig:"SYNC_CONCURRENCY" default:"1"`
}

// QueueConfig sizes the background sync queue.
type QueueConfig struct {
	Size        int           `envconfig:"SIZE" default:"64"`
	Workers     int           `envconfig:"WORKERS" default:"1"`
	TaskTimeout time.Duration `envconfig:"TASK_TIMEOUT" default:"1m"`
}

// Configured reports whether enough is known to talk to the CRM.
func (b BitrixConfig) Configured() bool {
	return strings.TrimSpace(b.WebhookURL) != "" && b.EntityTypeID > 0
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv decodes and validates configuration from the environment only.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverFile:
		if c.ProductsFile == "" {
			return fmt.Errorf("config: %s_PRODUCTS_FILE must not be empty", envPrefix)
		}
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: %s_DATABASE_URL is required for the postgres store", envPrefix)
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.StoreDriver)
	}
	if c.Bitrix.SyncConcurrency <= 0 {
		return fmt.Errorf("config: sync concurrency must be positive, got %d", c.Bitrix.SyncConcurrency)
	}
	if c.Bitrix.RequestTimeout <= 0 {
		return fmt.Errorf("config: request timeout must be positive")
	}
	if c.Bitrix.SyncInterval < 0 {
		return fmt.Errorf("config: sync interval must not be negative")
	}
	if c.Queue.Size <= 0 || c.Queue.Workers <= 0 {
		return fmt.Errorf("config: queue size and workers must be positive")
	}
	return nil
}
