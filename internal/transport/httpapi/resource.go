package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/loja/internal/domain"
	"github.com/vladislavdragonenkov/loja/internal/dto"
)

var errIDMismatch = errors.New("does not match path")

// crudService — операции, общие для всех сущностей API.
type crudService[D any] interface {
	GetByID(ctx context.Context, id int64) (D, error)
	GetPaged(ctx context.Context, params domain.PagingParameters) (dto.Page[D], error)
	Add(ctx context.Context, in D) (D, error)
	Update(ctx context.Context, in D) (D, error)
	Remove(ctx context.Context, id int64) error
}

// resource обслуживает CRUD-маршруты одной сущности.
type resource[D any] struct {
	path    string
	service crudService[D]
	id      func(D) int64
	setID   func(*D, int64)
	logger  *log.Entry
}

func newResource[D any](path string, service crudService[D], id func(D) int64, setID func(*D, int64), logger *log.Entry) *resource[D] {
	return &resource[D]{
		path:    path,
		service: service,
		id:      id,
		setID:   setID,
		logger:  logger.WithField("resource", path),
	}
}

// register вешает CRUD-маршруты; list задаёт обработчик списка.
func (r *resource[D]) register(api *gin.RouterGroup, list gin.HandlerFunc) *gin.RouterGroup {
	group := api.Group(r.path)
	{
		group.GET("", list)
		group.GET("/:id", r.get)
		group.POST("", r.create)
		group.PUT("/:id", r.update)
		group.DELETE("/:id", r.remove)
	}
	return group
}

// RegisterRoutes регистрирует маршруты ресурса со списком без дополнительных параметров.
func (r *resource[D]) RegisterRoutes(api *gin.RouterGroup) {
	r.register(api, r.list)
}

func (r *resource[D]) list(c *gin.Context) {
	params, ok := bindPaging(c)
	if !ok {
		return
	}

	page, err := r.service.GetPaged(c.Request.Context(), params)
	if err != nil {
		writeError(c, r.logger, err)
		return
	}
	writePage(c, page)
}

func (r *resource[D]) get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	item, err := r.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, r.logger, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (r *resource[D]) create(c *gin.Context) {
	var in D
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "body", err)
		return
	}

	created, err := r.service.Add(c.Request.Context(), in)
	if err != nil {
		writeError(c, r.logger, err)
		return
	}
	c.Header("Location", BasePath+r.path+"/"+strconv.FormatInt(r.id(created), 10))
	c.JSON(http.StatusCreated, created)
}

// update берёт идентификатор из пути; id в теле допустим, только если совпадает.
func (r *resource[D]) update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var in D
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "body", err)
		return
	}
	if bodyID := r.id(in); bodyID != 0 && bodyID != id {
		badRequest(c, "id", errIDMismatch)
		return
	}
	r.setID(&in, id)

	updated, err := r.service.Update(c.Request.Context(), in)
	if err != nil {
		writeError(c, r.logger, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (r *resource[D]) remove(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := r.service.Remove(c.Request.Context(), id); err != nil {
		writeError(c, r.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
