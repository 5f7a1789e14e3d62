// Package httpapi отдаёт REST API магазина поверх gin.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/loja/internal/domain"
	"github.com/vladislavdragonenkov/loja/internal/metrics"
	"github.com/vladislavdragonenkov/loja/internal/service/category"
	"github.com/vladislavdragonenkov/loja/internal/service/client"
	"github.com/vladislavdragonenkov/loja/internal/service/order"
	"github.com/vladislavdragonenkov/loja/internal/service/product"
)

// BasePath — префикс всех маршрутов API.
const BasePath = "/api/v1"

// Services — прикладные сервисы, которые обслуживает API.
type Services struct {
	Clients    *client.Service
	Categories *category.Service
	Products   *product.Service
	Orders     *order.Service
}

// Options — параметры роутера.
type Options struct {
	Logger  *log.Entry
	Metrics *metrics.HTTPMetrics
	// Idempotency включает повторяемое создание по заголовку Idempotency-Key; nil отключает.
	Idempotency        domain.IdempotencyRepository
	IdempotencyTTL     time.Duration
	IdempotencyMetrics *metrics.IdempotencyMetrics
	// AllowedOrigins — разрешённые CORS origins; пусто означает любой origin.
	AllowedOrigins []string
}

// NewRouter собирает gin.Engine с middleware и маршрутами всех ресурсов.
func NewRouter(services Services, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "http")
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(
		requestID(),
		observe(opts.Metrics),
		accessLog(logger),
		recovery(logger),
		cors.New(corsConfig(opts.AllowedOrigins)),
	)
	if opts.Idempotency != nil {
		router.Use(idempotency(opts.Idempotency, opts.IdempotencyTTL, opts.IdempotencyMetrics, logger))
	}
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "route not found"})
	})

	api := router.Group(BasePath)
	if services.Clients != nil {
		newClientHandler(services.Clients, logger).RegisterRoutes(api)
	}
	if services.Categories != nil {
		newCategoryHandler(services.Categories, logger).RegisterRoutes(api)
	}
	if services.Products != nil {
		newProductHandler(services.Products, logger).RegisterRoutes(api)
	}
	if services.Orders != nil {
		newOrderHandler(services.Orders, logger).RegisterRoutes(api)
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", requestIDHeader, idempotencyKeyHeader},
		ExposeHeaders: []string{paginationHeader, requestIDHeader, "Location", idempotentReplayedHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
