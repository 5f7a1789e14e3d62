// Package product содержит прикладной сервис товаров.
package product

import (
	"context"

	"github.com/vladislavdragonenkov/loja/internal/domain"
	"github.com/vladislavdragonenkov/loja/internal/dto"
	"github.com/vladislavdragonenkov/loja/internal/mapping"
	"github.com/vladislavdragonenkov/loja/internal/service/crud"
)

// Service — CRUD товаров с отбором по категории.
type Service struct {
	*crud.Service[domain.Product, dto.Product, domain.ProductFilter]
}

// NewService создаёт сервис товаров.
func NewService(repo domain.ProductRepository, options ...crud.Option) *Service {
	opts := crud.ApplyOptions(options...)

	return &Service{
		Service: crud.New(crud.Config[domain.Product, dto.Product, domain.ProductFilter]{
			Entity:  "product",
			Repo:    repo,
			Mapper:  mapping.ProductMapper{},
			Aliases: domain.ProductSortAliases,
			Filter: func(p domain.PagingParameters) domain.ProductFilter {
				return domain.ProductFilter{Text: p.Filter}
			},
			ID:          func(p domain.Product) int64 { return p.ID },
			SetID:       func(p *domain.Product, id int64) { p.ID = id },
			Validate:    (*domain.Product).Validate,
			MaxPageSize: opts.MaxPageSize,
			Logger:      opts.Logger,
			Metrics:     opts.Metrics,
		}),
	}
}

// GetPagedByCategory возвращает страницу товаров категории categoryID (0 — все категории).
func (s *Service) GetPagedByCategory(ctx context.Context, params domain.PagingParameters, categoryID int64) (dto.Page[dto.Product], error) {
	if categoryID < 0 {
		return dto.Page[dto.Product]{}, domain.NewValidation("categoryId", "must be non-negative")
	}
	return s.GetPagedFiltered(ctx, params, domain.ProductFilter{Text: params.Filter, CategoryID: categoryID})
}
