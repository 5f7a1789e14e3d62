package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/loja/internal/domain"
	"github.com/vladislavdragonenkov/loja/internal/dto"
	"github.com/vladislavdragonenkov/loja/internal/service/category"
	"github.com/vladislavdragonenkov/loja/internal/service/client"
	"github.com/vladislavdragonenkov/loja/internal/service/order"
	"github.com/vladislavdragonenkov/loja/internal/service/product"
)

func newClientHandler(svc *client.Service, logger *log.Entry) *resource[dto.Client] {
	return newResource[dto.Client]("/clients", svc,
		func(c dto.Client) int64 { return c.ID },
		func(c *dto.Client, id int64) { c.ID = id },
		logger)
}

func newCategoryHandler(svc *category.Service, logger *log.Entry) *resource[dto.Category] {
	return newResource[dto.Category]("/categories", svc,
		func(c dto.Category) int64 { return c.ID },
		func(c *dto.Category, id int64) { c.ID = id },
		logger)
}

// productHandler добавляет к CRUD отбор по categoryId.
type productHandler struct {
	*resource[dto.Product]
	service *product.Service
}

func newProductHandler(svc *product.Service, logger *log.Entry) *productHandler {
	return &productHandler{
		resource: newResource[dto.Product]("/products", svc,
			func(p dto.Product) int64 { return p.ID },
			func(p *dto.Product, id int64) { p.ID = id },
			logger),
		service: svc,
	}
}

// RegisterRoutes регистрирует маршруты товаров.
func (h *productHandler) RegisterRoutes(api *gin.RouterGroup) {
	h.register(api, h.list)
}

func (h *productHandler) list(c *gin.Context) {
	params, ok := bindPaging(c)
	if !ok {
		return
	}
	categoryID, ok := queryID(c, "categoryId")
	if !ok {
		return
	}

	page, err := h.service.GetPagedByCategory(c.Request.Context(), params, categoryID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	writePage(c, page)
}

// orderHandler добавляет к CRUD отбор заказов, смену статуса, товары и историю.
type orderHandler struct {
	*resource[dto.Order]
	service *order.Service
}

func newOrderHandler(svc *order.Service, logger *log.Entry) *orderHandler {
	return &orderHandler{
		resource: newResource[dto.Order]("/orders", svc,
			func(o dto.Order) int64 { return o.ID },
			func(o *dto.Order, id int64) { o.ID = id },
			logger),
		service: svc,
	}
}

// RegisterRoutes регистрирует маршруты заказов.
func (h *orderHandler) RegisterRoutes(api *gin.RouterGroup) {
	orders := h.register(api, h.list)
	{
		orders.GET("/:id/products", h.products)
		orders.GET("/:id/timeline", h.timeline)
		orders.PATCH("/:id/status", h.updateStatus)
	}
}

func (h *orderHandler) list(c *gin.Context) {
	params, ok := bindPaging(c)
	if !ok {
		return
	}
	clientID, ok := queryID(c, "clientId")
	if !ok {
		return
	}
	sellerID, ok := queryID(c, "sellerId")
	if !ok {
		return
	}

	filter := domain.OrderFilter{
		ClientID: clientID,
		SellerID: sellerID,
		Status:   domain.OrderStatus(c.Query("status")),
	}
	page, err := h.service.GetPagedFiltered(c.Request.Context(), params, filter)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	writePage(c, page)
}

func (h *orderHandler) products(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.service.GetWithProducts(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *orderHandler) timeline(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	events, err := h.service.Timeline(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *orderHandler) updateStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var body dto.StatusUpdate
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "body", err)
		return
	}

	updated, err := h.service.UpdateStatus(c.Request.Context(), id, body.Status)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
