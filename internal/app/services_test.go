package app

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/loja/internal/domain"
	"github.com/vladislavdragonenkov/loja/internal/dto"
	"github.com/vladislavdragonenkov/loja/internal/metrics"
)

func TestCreateServices_StrictPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OrderStatusPolicy = domain.StatusPolicyStrict
	cfg.MaxPageSize = 5

	deps := newMemoryDependencies()
	m := metrics.NewServiceMetricsWithRegisterer(prometheus.NewRegistry())
	services, err := createServices(cfg, deps, m, log.WithField("test", "services"))
	require.NoError(t, err)

	ctx := context.Background()
	created, err := services.Orders.Add(ctx, dto.Order{ClientID: 1, SellerID: 2})
	require.NoError(t, err)

	_, err = services.Orders.UpdateStatus(ctx, created.ID, string(domain.OrderStatusDelivered))
	assert.True(t, domain.IsValidation(err), "strict policy must reject created -> delivered, got %v", err)

	_, err = services.Clients.GetPaged(ctx, domain.PagingParameters{PageNumber: 1, PageSize: 6})
	assert.True(t, domain.IsValidation(err), "page size above configured limit must be rejected, got %v", err)

	pending, err := deps.outbox.PullPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestCreateServices_UnknownPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OrderStatusPolicy = "chaos"

	_, err := createServices(cfg, newMemoryDependencies(), nil, log.WithField("test", "services"))
	assert.Error(t, err)
}

func TestNewPublisherBreaker(t *testing.T) {
	cfg := DefaultConfig()
	logger := log.WithField("test", "breaker")

	assert.NotNil(t, newPublisherBreaker(cfg, logger))

	cfg.OutboxBreakerFailures = 0
	assert.Nil(t, newPublisherBreaker(cfg, logger))
}
