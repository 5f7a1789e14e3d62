package domain

import (
	"fmt"
	"math"
)

const (
	// DefaultPageNumber — номер страницы по умолчанию.
	DefaultPageNumber = 1
	// DefaultPageSize — размер страницы по умолчанию.
	DefaultPageSize = 10
	// DefaultMaxPageSize — верхняя граница pageSize, если конфигурация не задаёт иную.
	DefaultMaxPageSize = 50
)

// PagingParameters — параметры постраничной выборки, переданные клиентом.
type PagingParameters struct {
	PageNumber int
	PageSize   int
	OrderedBy  string
	Filter     string
}

// NewPagingParameters возвращает параметры с заполненными значениями по умолчанию.
func NewPagingParameters() PagingParameters {
	return PagingParameters{
		PageNumber: DefaultPageNumber,
		PageSize:   DefaultPageSize,
	}
}

// Validate проверяет инварианты: pageNumber >= 1, 0 < pageSize <= maxPageSize.
// maxPageSize <= 0 означает DefaultMaxPageSize.
func (p PagingParameters) Validate(maxPageSize int) error {
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}

	var errs []error
	if p.PageNumber < 1 {
		errs = append(errs, NewValidation("pageNumber", "must be greater than or equal to 1"))
	}
	if p.PageSize <= 0 || p.PageSize > maxPageSize {
		errs = append(errs, NewValidation("pageSize", fmt.Sprintf("must be in range 1..%d", maxPageSize)))
	}
	return JoinValidation(errs)
}

// Offset — количество пропускаемых записей; при переполнении насыщается до math.MaxInt.
func (p PagingParameters) Offset() int {
	if p.PageNumber < 1 || p.PageSize <= 0 {
		return 0
	}
	if p.PageNumber-1 > math.MaxInt/p.PageSize {
		return math.MaxInt
	}
	return (p.PageNumber - 1) * p.PageSize
}

// PagingInfo — вычисляемые на каждый запрос метаданные выборки. Никогда не сохраняется.
type PagingInfo struct {
	TotalItems  int64
	TotalPages  int
	CurrentPage int
	PageSize    int
}

// NewPagingInfo считает totalPages = ceil(totalItems / pageSize).
func NewPagingInfo(totalItems int64, pageNumber, pageSize int) PagingInfo {
	if totalItems < 0 {
		totalItems = 0
	}
	var pages int
	if pageSize > 0 {
		pages = int((totalItems + int64(pageSize) - 1) / int64(pageSize))
	}
	return PagingInfo{
		TotalItems:  totalItems,
		TotalPages:  pages,
		CurrentPage: pageNumber,
		PageSize:    pageSize,
	}
}
