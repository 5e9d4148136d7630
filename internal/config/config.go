package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/harborline/storefront-search/pkg/config"
)

// Config holds all configuration for the storefront search service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort       int `env:"SEARCH_HTTP_PORT" envDefault:"8010"`
	RateLimitRPS   int `env:"SEARCH_RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int `env:"SEARCH_RATE_LIMIT_BURST" envDefault:"40"`

	// Catalogue source
	CatalogueURL string `env:"CATALOGUE_URL" envDefault:"http://localhost:8080/api/v1/catalogue"`

	// Index lifecycle
	IndexStaleAfter    time.Duration `env:"INDEX_STALE_AFTER" envDefault:"24h"`
	IndexSyncTimeout   time.Duration `env:"INDEX_SYNC_TIMEOUT" envDefault:"2m"`
	IndexWatchInterval time.Duration `env:"INDEX_WATCH_INTERVAL" envDefault:"15m"`

	// Live-result caching
	QueryCacheTTL     time.Duration `env:"QUERY_CACHE_TTL" envDefault:"5m"`
	SearchCacheMaxAge int           `env:"SEARCH_CACHE_MAX_AGE" envDefault:"30"`

	// CORS
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// PostgreSQL snapshot store
	PostgresEnabled  bool   `env:"POSTGRES_ENABLED" envDefault:"true"`
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"storefront_secret"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"storefront"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	// Redis snapshot store and query cache
	RedisEnabled       bool   `env:"REDIS_ENABLED" envDefault:"true"`
	RedisHost          string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort          int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword      string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB            int    `env:"REDIS_DB" envDefault:"0"`
	RedisSnapshotBytes int    `env:"REDIS_SNAPSHOT_MAX_BYTES" envDefault:"8388608"`

	// Kafka
	KafkaEnabled   bool          `env:"KAFKA_ENABLED" envDefault:"true"`
	KafkaBrokers   []string      `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaGroupID   string        `env:"KAFKA_GROUP_ID" envDefault:"storefront-search"`
	ResyncDebounce time.Duration `env:"RESYNC_DEBOUNCE" envDefault:"5s"`

	// Tracing
	TracingEnabled  bool    `env:"TRACING_ENABLED" envDefault:"false"`
	TracingEndpoint string  `env:"TRACING_ENDPOINT" envDefault:"localhost:4318"`
	TracingSample   float64 `env:"TRACING_SAMPLE_RATE" envDefault:"0.1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load search config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.CatalogueURL == "" {
		return fmt.Errorf("CATALOGUE_URL must not be empty")
	}
	if c.IndexStaleAfter <= 0 {
		return fmt.Errorf("INDEX_STALE_AFTER must be positive")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS must not be empty when Kafka is enabled")
	}
	return nil
}
