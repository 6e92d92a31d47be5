package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// StorageDriver выбирает реализацию хранилища.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config описывает настройки запуска сервиса.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver string
	PostgresDSN   string
	AutoMigrate   bool

	KafkaBrokers []string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int

	IdempotencyTTL             time.Duration
	IdempotencyCleanupInterval time.Duration
	IdempotencyCleanupBatch    int
}

// DefaultConfig возвращает конфигурацию для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                   ":8080",
		MetricsAddr:                ":9090",
		StorageDriver:              StorageMemory,
		AutoMigrate:                true,
		OutboxPollInterval:         time.Second,
		OutboxBatchSize:            100,
		OutboxMaxAttempts:          3,
		IdempotencyTTL:             24 * time.Hour,
		IdempotencyCleanupInterval: 10 * time.Minute,
		IdempotencyCleanupBatch:    500,
	}
}

// ConfigFromEnv читает конфигурацию из переменных окружения поверх дефолтов.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("INFOPHARMA_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("INFOPHARMA_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("INFOPHARMA_STORAGE_DRIVER"); v != "" {
		cfg.StorageDriver = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("INFOPHARMA_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("INFOPHARMA_AUTO_MIGRATE"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.AutoMigrate = parsed
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = parseBrokers(v)
	}
	if v := envDuration("INFOPHARMA_OUTBOX_POLL_INTERVAL"); v > 0 {
		cfg.OutboxPollInterval = v
	}
	if v := envInt("INFOPHARMA_OUTBOX_BATCH_SIZE"); v > 0 {
		cfg.OutboxBatchSize = v
	}
	if v := envInt("INFOPHARMA_OUTBOX_MAX_ATTEMPTS"); v > 0 {
		cfg.OutboxMaxAttempts = v
	}
	if v := envDuration("INFOPHARMA_IDEMPOTENCY_TTL"); v > 0 {
		cfg.IdempotencyTTL = v
	}
	if v := envDuration("INFOPHARMA_IDEMPOTENCY_CLEANUP_INTERVAL"); v > 0 {
		cfg.IdempotencyCleanupInterval = v
	}
	if v := envInt("INFOPHARMA_IDEMPOTENCY_CLEANUP_BATCH"); v > 0 {
		cfg.IdempotencyCleanupBatch = v
	}

	return cfg
}

func parseBrokers(raw string) []string {
	chunks := strings.Split(raw, ",")
	brokers := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		broker := strings.TrimSpace(chunk)
		if broker == "" {
			continue
		}
		brokers = append(brokers, broker)
	}
	return brokers
}

func envDuration(name string) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(name string) int {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return parsed
}
