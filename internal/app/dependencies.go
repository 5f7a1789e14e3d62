package app

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/loja/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/loja/internal/health"
	"github.com/vladislavdragonenkov/loja/internal/storage/memory"
	"github.com/vladislavdragonenkov/loja/internal/storage/postgres"
)

const storageDegradedAfter = 500 * time.Millisecond

// runtimeDependencies — репозитории выбранного провайдера хранилища.
type runtimeDependencies struct {
	clients     domain.ClientRepository
	categories  domain.CategoryRepository
	products    domain.ProductRepository
	orders      domain.OrderRepository
	outbox      domain.OutboxRepository
	timeline    domain.TimelineRepository
	idempotency domain.IdempotencyRepository

	// storageChecker проверяет хранилище для /healthz и /readyz; nil для memory.
	storageChecker healthcheck.Checker
	closeFn        func() error
}

// initRuntimeDependencies создаёт репозитории по cfg.StorageDriver.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		logger.Info("using in-memory storage")
		return newMemoryDependencies(), nil
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage requires dsn")
		}
		return newPostgresDependencies(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func newMemoryDependencies() *runtimeDependencies {
	return &runtimeDependencies{
		clients:     memory.NewClientRepository(),
		categories:  memory.NewCategoryRepository(),
		products:    memory.NewProductRepository(),
		orders:      memory.NewOrderRepository(),
		outbox:      memory.NewOutboxRepository(),
		timeline:    memory.NewTimelineRepository(),
		idempotency: memory.NewIdempotencyRepository(),
	}
}

func newPostgresDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("postgres schema is up to date")
	}

	logger.Info("using postgres storage")
	return &runtimeDependencies{
		clients:        postgres.NewClientRepository(store),
		categories:     postgres.NewCategoryRepository(store),
		products:       postgres.NewProductRepository(store),
		orders:         postgres.NewOrderRepository(store),
		outbox:         postgres.NewOutboxRepository(store),
		timeline:       postgres.NewTimelineRepository(store),
		idempotency:    postgres.NewIdempotencyRepository(store),
		storageChecker: healthcheck.NewPingChecker("postgres", store, storageDegradedAfter),
		closeFn:        store.Close,
	}, nil
}

// close освобождает ресурсы хранилища.
func (d *runtimeDependencies) close(logger *log.Entry) {
	if d == nil || d.closeFn == nil {
		return
	}
	if err := d.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}
