package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/md-rashed-zaman/tenantbook/libs/config"
)

const (
	storagePostgres = "postgres"
	storageMemory   = "memory"
)

type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"booking-service"`
	Port        string `env:"PORT" envDefault:"8083"`
	GRPCPort    string `env:"GRPC_PORT" envDefault:"9083"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	Storage         string        `env:"STORAGE" envDefault:"postgres"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	DBMaxConns      int           `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns      int           `env:"DB_MIN_CONNS" envDefault:"1"`
	MigrateOnStart  bool          `env:"MIGRATE_ON_START" envDefault:"false"`
	SeedFile        string        `env:"SEED_FILE"`
	OutboxPollEvery time.Duration `env:"OUTBOX_POLL_EVERY" envDefault:"2s"`
	OutboxBatchSize int           `env:"OUTBOX_BATCH_SIZE" envDefault:"50"`

	IdempotencyLease time.Duration `env:"IDEMPOTENCY_LEASE" envDefault:"30s"`

	RedisAddr         string        `env:"REDIS_ADDR"`
	RedisPassword     string        `env:"REDIS_PASSWORD"`
	RedisDB           int           `env:"REDIS_DB" envDefault:"0"`
	SettingsCacheTTL  time.Duration `env:"SETTINGS_CACHE_TTL" envDefault:"1m"`
	SettingsCacheSize int           `env:"SETTINGS_CACHE_SIZE" envDefault:"1024"`

	KafkaBrokers  []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaGroupID  string   `env:"KAFKA_GROUP_ID"`
	SettingsTopic string   `env:"SETTINGS_TOPIC" envDefault:"tenant.settings.updated.v1"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWKSURL   string        `env:"JWKS_URL"`
	JWKSTTL   time.Duration `env:"JWKS_TTL" envDefault:"5m"`

	RateLimitRPS       float64  `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst     int      `env:"RATE_LIMIT_BURST" envDefault:"40"`
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"600"`
	RateLimitFailOpen  bool     `env:"RATE_LIMIT_FAIL_OPEN" envDefault:"true"`
	CORSOrigins        []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	BodyLimitBytes int64         `env:"BODY_LIMIT_BYTES" envDefault:"1048576"`
	ShutdownGrace  time.Duration `env:"SHUTDOWN_GRACE" envDefault:"10s"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := config.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if err := config.CheckPort(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT: %w", err))
	}
	if err := config.CheckPort(c.GRPCPort); err != nil {
		errs = append(errs, fmt.Errorf("GRPC_PORT: %w", err))
	}
	switch c.Storage {
	case storagePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required with STORAGE=postgres"))
		}
	case storageMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE must be %s or %s (got %q)", storagePostgres, storageMemory, c.Storage))
	}
	if c.SettingsCacheTTL <= 0 {
		errs = append(errs, errors.New("SETTINGS_CACHE_TTL must be positive"))
	}
	return errors.Join(errs...)
}

// consumerGroup gives every replica its own group so each one sees every
// settings invalidation.
func (c *Config) consumerGroup() string {
	if c.KafkaGroupID != "" {
		return c.KafkaGroupID
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return c.ServiceName + "-" + host
}
