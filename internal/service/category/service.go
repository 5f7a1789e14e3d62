// Package category содержит прикладной сервис категорий.
package category

import (
	"github.com/vladislavdragonenkov/loja/internal/domain"
	"github.com/vladislavdragonenkov/loja/internal/dto"
	"github.com/vladislavdragonenkov/loja/internal/mapping"
	"github.com/vladislavdragonenkov/loja/internal/service/crud"
)

// Service — CRUD категорий.
type Service struct {
	*crud.Service[domain.Category, dto.Category, domain.CategoryFilter]
}

// NewService создаёт сервис категорий.
func NewService(repo domain.CategoryRepository, options ...crud.Option) *Service {
	opts := crud.ApplyOptions(options...)

	return &Service{
		Service: crud.New(crud.Config[domain.Category, dto.Category, domain.CategoryFilter]{
			Entity:  "category",
			Repo:    repo,
			Mapper:  mapping.CategoryMapper{},
			Aliases: domain.CategorySortAliases,
			Filter: func(p domain.PagingParameters) domain.CategoryFilter {
				return domain.CategoryFilter{Text: p.Filter}
			},
			ID:          func(c domain.Category) int64 { return c.ID },
			SetID:       func(c *domain.Category, id int64) { c.ID = id },
			Validate:    (*domain.Category).Validate,
			MaxPageSize: opts.MaxPageSize,
			Logger:      opts.Logger,
			Metrics:     opts.Metrics,
		}),
	}
}
