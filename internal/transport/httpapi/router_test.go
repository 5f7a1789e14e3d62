package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/loja/internal/domain"
	"github.com/vladislavdragonenkov/loja/internal/dto"
	"github.com/vladislavdragonenkov/loja/internal/metrics"
	"github.com/vladislavdragonenkov/loja/internal/service/category"
	"github.com/vladislavdragonenkov/loja/internal/service/client"
	"github.com/vladislavdragonenkov/loja/internal/service/order"
	"github.com/vladislavdragonenkov/loja/internal/service/product"
	"github.com/vladislavdragonenkov/loja/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	products := memory.NewProductRepository()
	services := Services{
		Clients:    client.NewService(memory.NewClientRepository()),
		Categories: category.NewService(memory.NewCategoryRepository()),
		Products:   product.NewService(products),
		Orders: order.NewService(memory.NewOrderRepository(), order.Dependencies{
			Products: products,
			Outbox:   memory.NewOutboxRepository(),
			Timeline: memory.NewTimelineRepository(),
		}),
	}
	return NewRouter(services, Options{Logger: log.WithField("test", "httpapi")})
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func clientPayload(name, cpf string) map[string]any {
	return map[string]any{
		"name":      name,
		"cpf":       cpf,
		"birthDate": "1990-05-01T00:00:00Z",
		"phone":     "+55 11 99999-0000",
		"email":     "maria@example.com",
	}
}

func TestClients_CRUD(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/clients", clientPayload("Maria Silva", "123.456.789-00"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[dto.Client](t, w)
	require.Positive(t, created.ID)
	assert.Equal(t, "/api/v1/clients/1", w.Header().Get("Location"))
	assert.False(t, created.RegisteredAt.IsZero())

	w = doJSON(t, router, http.MethodGet, "/api/v1/clients/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Maria Silva", decode[dto.Client](t, w).Name)

	update := clientPayload("Maria Souza", "123.456.789-00")
	w = doJSON(t, router, http.MethodPut, "/api/v1/clients/1", update)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[dto.Client](t, w)
	assert.Equal(t, "Maria Souza", updated.Name)
	assert.True(t, created.RegisteredAt.Equal(updated.RegisteredAt))

	w = doJSON(t, router, http.MethodDelete, "/api/v1/clients/1", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/clients/1", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decode[errorResponse](t, w).Error, "not found")
}

func TestClients_ListPaging(t *testing.T) {
	router := newTestRouter(t)

	for _, name := range []string{"Carla", "Ana", "Bruno"} {
		w := doJSON(t, router, http.MethodPost, "/api/v1/clients", clientPayload(name, name+"-cpf"))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/clients?pageNumber=1&pageSize=2&orderedBy=nome", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	page := decode[dto.Page[dto.Client]](t, w)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Ana", page.Items[0].Name)
	assert.Equal(t, "Bruno", page.Items[1].Name)
	assert.Equal(t, dto.PagingInfo{TotalItems: 3, TotalPages: 2, CurrentPage: 1, PageSize: 2}, page.Paging)

	var header dto.PagingInfo
	require.NoError(t, json.Unmarshal([]byte(w.Header().Get(paginationHeader)), &header))
	assert.Equal(t, page.Paging, header)

	w = doJSON(t, router, http.MethodGet, "/api/v1/clients?pageNumber=9", nil)
	require.Equal(t, http.StatusOK, w.Code)
	past := decode[dto.Page[dto.Client]](t, w)
	assert.NotNil(t, past.Items)
	assert.Empty(t, past.Items)
	assert.Equal(t, int64(3), past.Paging.TotalItems)
}

func TestBadRequests(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{name: "non numeric id", method: http.MethodGet, path: "/api/v1/clients/abc"},
		{name: "zero id", method: http.MethodGet, path: "/api/v1/clients/0"},
		{name: "page size too large", method: http.MethodGet, path: "/api/v1/clients?pageSize=500"},
		{name: "page number zero", method: http.MethodGet, path: "/api/v1/categories?pageNumber=0"},
		{name: "page size not a number", method: http.MethodGet, path: "/api/v1/products?pageSize=ten"},
		{name: "negative category", method: http.MethodGet, path: "/api/v1/products?categoryId=-1"},
		{name: "unknown order status filter", method: http.MethodGet, path: "/api/v1/orders?status=lost"},
		{name: "missing required fields", method: http.MethodPost, path: "/api/v1/clients", body: map[string]any{"name": "x"}},
		{name: "id mismatch", method: http.MethodPut, path: "/api/v1/categories/1", body: map[string]any{"id": 2, "name": "Books"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestBadRequest_MalformedBody(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/categories", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProducts_FilterByCategory(t *testing.T) {
	router := newTestRouter(t)

	for _, p := range []map[string]any{
		{"name": "Caneta", "price": "2.50", "stock": 10, "categoryId": 1},
		{"name": "Caderno", "price": "15.00", "stock": 5, "categoryId": 2},
		{"name": "Lapis", "price": "1.20", "stock": 50, "categoryId": 1},
	} {
		w := doJSON(t, router, http.MethodPost, "/api/v1/products", p)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/products?categoryId=1&orderedBy=preco", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	page := decode[dto.Page[dto.Product]](t, w)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Lapis", page.Items[0].Name)
	assert.Equal(t, "2.5", page.Items[1].Price.String())
}

func TestOrders_Lifecycle(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/products", map[string]any{
		"name": "Caneta", "price": "2.50", "stock": 10, "categoryId": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	productID := decode[dto.Product](t, w).ID

	w = doJSON(t, router, http.MethodPost, "/api/v1/orders", map[string]any{
		"clientId": 7,
		"sellerId": 3,
		"items": []map[string]any{
			{"productId": productID, "quantity": 4, "unitPrice": "2.50"},
			{"productId": 999, "quantity": 1, "unitPrice": "1.00"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[dto.Order](t, w)
	assert.Equal(t, string(domain.OrderStatusCreated), created.Status)
	assert.Equal(t, "11", created.Total.String())

	w = doJSON(t, router, http.MethodPatch, "/api/v1/orders/1/status", dto.StatusUpdate{Status: "PAID"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, string(domain.OrderStatusPaid), decode[dto.Order](t, w).Status)

	w = doJSON(t, router, http.MethodPatch, "/api/v1/orders/1/status", dto.StatusUpdate{Status: "lost"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/orders?status=paid&clientId=7", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[dto.Page[dto.Order]](t, w).Items, 1)

	w = doJSON(t, router, http.MethodGet, "/api/v1/orders?sellerId=4", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[dto.Page[dto.Order]](t, w).Items)

	w = doJSON(t, router, http.MethodGet, "/api/v1/orders/1/products", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	withProducts := decode[dto.OrderWithProducts](t, w)
	require.Len(t, withProducts.Products, 2)
	require.NotNil(t, withProducts.Products[0].Product)
	assert.Equal(t, "Caneta", withProducts.Products[0].Product.Name)
	assert.Nil(t, withProducts.Products[1].Product)

	w = doJSON(t, router, http.MethodGet, "/api/v1/orders/1/timeline", nil)
	require.Equal(t, http.StatusOK, w.Code)
	events := decode[[]dto.TimelineEvent](t, w)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventOrderCreated, events[0].Type)
	assert.Equal(t, domain.EventOrderStatusChanged, events[1].Type)

	w = doJSON(t, router, http.MethodDelete, "/api/v1/orders/1", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/orders/1/timeline", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequestID(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/categories", nil)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil)
	req.Header.Set(requestIDHeader, "req-42")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))
}

type failingClients struct{}

var errStorageDown = errors.New("connection refused")

func (failingClients) GetByID(context.Context, int64) (domain.Client, error) {
	return domain.Client{}, errStorageDown
}

func (failingClients) GetPaged(context.Context, domain.PagingParameters, domain.SortField, domain.ClientFilter) ([]domain.Client, domain.PagingInfo, error) {
	return nil, domain.PagingInfo{}, errStorageDown
}

func (failingClients) Create(context.Context, domain.Client) (domain.Client, error) {
	return domain.Client{}, errStorageDown
}

func (failingClients) Update(context.Context, domain.Client) error { return errStorageDown }

func (failingClients) Remove(context.Context, int64) error { return errStorageDown }

func TestInternalErrorIsNotLeaked(t *testing.T) {
	router := NewRouter(Services{Clients: client.NewService(failingClients{})}, Options{})

	w := doJSON(t, router, http.MethodGet, "/api/v1/clients/1", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	body := decode[errorResponse](t, w)
	assert.Equal(t, internalErrorMessage, body.Error)
	assert.NotEmpty(t, body.RequestID)
}

func TestConflictMapsTo409(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(domain.ErrConflict))
	assert.Equal(t, http.StatusNotFound, statusFor(domain.NewNotFound("order", 1)))
	assert.Equal(t, http.StatusBadRequest, statusFor(domain.NewValidation("id", "bad")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errStorageDown))
}

func TestRecoveryAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	router := NewRouter(Services{}, Options{Metrics: metrics.NewHTTPMetricsWithRegisterer(reg)})
	router.GET("/panic", func(*gin.Context) { panic("boom") })

	w := doJSON(t, router, http.MethodGet, "/panic", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, internalErrorMessage, decode[errorResponse](t, w).Error)

	w = doJSON(t, router, http.MethodGet, "/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	count, err := testutil.GatherAndCount(reg, "loja_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
