package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/loja/internal/domain"
	"github.com/vladislavdragonenkov/loja/internal/dto"
)

const paginationHeader = "X-Pagination"

var errNotInteger = errors.New("must be an integer")

// pagingQuery — параметры выборки из query string.
type pagingQuery struct {
	PageNumber int    `form:"pageNumber,default=1"`
	PageSize   int    `form:"pageSize,default=10"`
	OrderedBy  string `form:"orderedBy"`
	Filter     string `form:"filter"`
}

func (q pagingQuery) params() domain.PagingParameters {
	return domain.PagingParameters{
		PageNumber: q.PageNumber,
		PageSize:   q.PageSize,
		OrderedBy:  q.OrderedBy,
		Filter:     q.Filter,
	}
}

// bindPaging разбирает параметры выборки; при ошибке уже отвечает 400.
func bindPaging(c *gin.Context) (domain.PagingParameters, bool) {
	var q pagingQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "paging", err)
		return domain.PagingParameters{}, false
	}
	return q.params(), true
}

// writePage отдаёт страницу в конверте {items, paging} и дублирует метаданные в X-Pagination.
func writePage[T any](c *gin.Context, page dto.Page[T]) {
	if page.Items == nil {
		page.Items = []T{}
	}
	if header, err := json.Marshal(page.Paging); err == nil {
		c.Header(paginationHeader, string(header))
	}
	c.JSON(http.StatusOK, page)
}

// pathID разбирает :id; при ошибке уже отвечает 400.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "id", errNotInteger)
		return 0, false
	}
	return id, true
}

// queryID разбирает необязательный числовой параметр (0, если не задан).
func queryID(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		badRequest(c, name, errNotInteger)
		return 0, false
	}
	return id, true
}
