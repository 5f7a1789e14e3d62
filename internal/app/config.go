package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/vladislavdragonenkov/loja/internal/domain"
	"github.com/vladislavdragonenkov/loja/internal/messaging/kafka"
)

// EnvPrefix — префикс переменных окружения сервиса.
const EnvPrefix = "loja"

// Драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string `envconfig:"HTTP_ADDR"`
	GRPCAddr    string `envconfig:"GRPC_ADDR"`
	MetricsAddr string `envconfig:"METRICS_ADDR"`

	StorageDriver       string `envconfig:"STORAGE_DRIVER"`
	PostgresDSN         string `envconfig:"POSTGRES_DSN"`
	PostgresAutoMigrate bool   `envconfig:"POSTGRES_AUTO_MIGRATE"`

	KafkaBrokers  []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic    string   `envconfig:"KAFKA_TOPIC"`
	KafkaDLQTopic string   `envconfig:"KAFKA_DLQ_TOPIC"`

	OutboxPollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL"`
	OutboxBatchSize    int           `envconfig:"OUTBOX_BATCH_SIZE"`
	OutboxMaxAttempts  int           `envconfig:"OUTBOX_MAX_ATTEMPTS"`
	OutboxRetryDelay   time.Duration `envconfig:"OUTBOX_RETRY_DELAY"`
	// OutboxBreakerFailures — неудачных публикаций подряд до размыкания breaker; 0 отключает breaker.
	OutboxBreakerFailures int           `envconfig:"OUTBOX_BREAKER_FAILURES"`
	OutboxBreakerReset    time.Duration `envconfig:"OUTBOX_BREAKER_RESET"`

	IdempotencyTTL             time.Duration `envconfig:"IDEMPOTENCY_TTL"`
	IdempotencyCleanupInterval time.Duration `envconfig:"IDEMPOTENCY_CLEANUP_INTERVAL"`

	MaxPageSize        int      `envconfig:"MAX_PAGE_SIZE"`
	OrderStatusPolicy  string   `envconfig:"ORDER_STATUS_POLICY"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"`

	LogLevel  string `envconfig:"LOG_LEVEL"`
	LogFormat string `envconfig:"LOG_FORMAT"`
}

// DefaultConfig возвращает настройки для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                   ":8080",
		GRPCAddr:                   ":50051",
		MetricsAddr:                ":9090",
		StorageDriver:              StorageDriverMemory,
		PostgresAutoMigrate:        true,
		KafkaTopic:                 kafka.TopicOrderEvents,
		KafkaDLQTopic:              kafka.TopicDeadLetterQueue,
		OutboxPollInterval:         time.Second,
		OutboxBatchSize:            100,
		OutboxMaxAttempts:          3,
		OutboxRetryDelay:           50 * time.Millisecond,
		OutboxBreakerFailures:      5,
		OutboxBreakerReset:         30 * time.Second,
		IdempotencyTTL:             24 * time.Hour,
		IdempotencyCleanupInterval: 10 * time.Minute,
		MaxPageSize:                domain.DefaultMaxPageSize,
		OrderStatusPolicy:          domain.StatusPolicyOpen,
		LogLevel:                   "info",
		LogFormat:                  "text",
	}
}

// LoadConfig накладывает переменные окружения LOJA_* на DefaultConfig и проверяет результат.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	c.PostgresDSN = strings.TrimSpace(c.PostgresDSN)
	c.KafkaBrokers = compact(c.KafkaBrokers)
	c.CORSAllowedOrigins = compact(c.CORSAllowedOrigins)
}

// Validate отклоняет неизвестный драйвер, postgres без DSN и неположительные размеры.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres storage requires LOJA_POSTGRES_DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	if c.OutboxPollInterval <= 0 {
		errs = append(errs, errors.New("outbox poll interval must be positive"))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("outbox batch size must be positive"))
	}
	if c.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("outbox max attempts must be positive"))
	}
	if c.OutboxRetryDelay < 0 {
		errs = append(errs, errors.New("outbox retry delay must not be negative"))
	}
	if c.OutboxBreakerFailures < 0 {
		errs = append(errs, errors.New("outbox breaker failures must not be negative"))
	}
	if c.OutboxBreakerFailures > 0 && c.OutboxBreakerReset <= 0 {
		errs = append(errs, errors.New("outbox breaker reset must be positive"))
	}
	if c.IdempotencyTTL <= 0 {
		errs = append(errs, errors.New("idempotency ttl must be positive"))
	}
	if c.IdempotencyCleanupInterval <= 0 {
		errs = append(errs, errors.New("idempotency cleanup interval must be positive"))
	}
	if c.MaxPageSize <= 0 {
		errs = append(errs, errors.New("max page size must be positive"))
	}
	if _, err := domain.StatusPolicyByName(c.OrderStatusPolicy); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// compact убирает пробелы и пустые элементы списка.
func compact(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
