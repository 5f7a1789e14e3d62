package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/loja/internal/domain"
	"github.com/vladislavdragonenkov/loja/internal/metrics"
	"github.com/vladislavdragonenkov/loja/internal/service/category"
	"github.com/vladislavdragonenkov/loja/internal/service/client"
	"github.com/vladislavdragonenkov/loja/internal/service/crud"
	"github.com/vladislavdragonenkov/loja/internal/service/order"
	"github.com/vladislavdragonenkov/loja/internal/service/product"
	"github.com/vladislavdragonenkov/loja/internal/transport/httpapi"
)

// createServices собирает прикладные сервисы поверх репозиториев.
func createServices(cfg Config, deps *runtimeDependencies, m *metrics.ServiceMetrics, logger *log.Entry) (httpapi.Services, error) {
	policy, err := domain.StatusPolicyByName(cfg.OrderStatusPolicy)
	if err != nil {
		return httpapi.Services{}, err
	}

	options := func(component string) []crud.Option {
		return []crud.Option{
			crud.WithLogger(logger.WithField("component", component)),
			crud.WithMetrics(m),
			crud.WithMaxPageSize(cfg.MaxPageSize),
		}
	}

	return httpapi.Services{
		Clients:    client.NewService(deps.clients, options("client-service")...),
		Categories: category.NewService(deps.categories, options("category-service")...),
		Products:   product.NewService(deps.products, options("product-service")...),
		Orders: order.NewService(deps.orders, order.Dependencies{
			Products: deps.products,
			Outbox:   deps.outbox,
			Timeline: deps.timeline,
			Policy:   policy,
		}, options("order-service")...),
	}, nil
}
