package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver string
	PostgresDSN   string
	AutoMigrate   bool

	GatewayBaseURL string
	GatewayTimeout time.Duration

	KafkaBrokers     string
	OrderEventsTopic string
	DLQTopic         string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int

	IdempotencyTTL             time.Duration
	IdempotencyCleanupInterval time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска:
// in-memory хранилище, mock каталога, без Kafka.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",

		StorageDriver: StorageMemory,
		AutoMigrate:   true,

		GatewayTimeout: 3 * time.Second,

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,

		IdempotencyTTL:             24 * time.Hour,
		IdempotencyCleanupInterval: 10 * time.Minute,
	}
}

// FromEnv накладывает переменные окружения ORDERS_* на DefaultConfig.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	cfg.HTTPAddr = envString("ORDERS_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = envString("ORDERS_METRICS_ADDR", cfg.MetricsAddr)

	cfg.StorageDriver = strings.ToLower(envString("ORDERS_STORAGE_DRIVER", cfg.StorageDriver))
	cfg.PostgresDSN = envString("ORDERS_POSTGRES_DSN", cfg.PostgresDSN)

	cfg.GatewayBaseURL = envString("ORDERS_PRODUCT_GATEWAY_URL", cfg.GatewayBaseURL)
	cfg.KafkaBrokers = envString("ORDERS_KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.OrderEventsTopic = envString("ORDERS_KAFKA_TOPIC", cfg.OrderEventsTopic)
	cfg.DLQTopic = envString("ORDERS_KAFKA_DLQ_TOPIC", cfg.DLQTopic)

	var err error
	if cfg.AutoMigrate, err = envBool("ORDERS_AUTO_MIGRATE", cfg.AutoMigrate); err != nil {
		return Config{}, err
	}
	if cfg.GatewayTimeout, err = envDuration("ORDERS_PRODUCT_GATEWAY_TIMEOUT", cfg.GatewayTimeout); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = envDuration("ORDERS_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval); err != nil {
		return Config{}, err
	}
	if cfg.OutboxBatchSize, err = envInt("ORDERS_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize); err != nil {
		return Config{}, err
	}
	if cfg.OutboxMaxAttempts, err = envInt("ORDERS_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = envDuration("ORDERS_IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyCleanupInterval, err = envDuration("ORDERS_IDEMPOTENCY_CLEANUP_INTERVAL", cfg.IdempotencyCleanupInterval); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

// Validate проверяет согласованность конфигурации.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageMemory:
	case StoragePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("ORDERS_POSTGRES_DSN is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}

	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP address must not be empty")
	}
	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("outbox batch size must be positive")
	}
	if c.OutboxMaxAttempts <= 0 {
		return fmt.Errorf("outbox max attempts must be positive")
	}
	if c.IdempotencyTTL <= 0 {
		return fmt.Errorf("idempotency TTL must be positive")
	}

	return nil
}

func envString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func envBool(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}

func envInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}
