// Package client содержит прикладной сервис клиентов.
package client

import (
	"github.com/vladislavdragonenkov/loja/internal/domain"
	"github.com/vladislavdragonenkov/loja/internal/dto"
	"github.com/vladislavdragonenkov/loja/internal/mapping"
	"github.com/vladislavdragonenkov/loja/internal/service/crud"
)

// Service — CRUD клиентов. Дата регистрации выставляется при создании и не меняется.
type Service struct {
	*crud.Service[domain.Client, dto.Client, domain.ClientFilter]
}

// NewService создаёт сервис клиентов.
func NewService(repo domain.ClientRepository, options ...crud.Option) *Service {
	opts := crud.ApplyOptions(options...)

	return &Service{
		Service: crud.New(crud.Config[domain.Client, dto.Client, domain.ClientFilter]{
			Entity:  "client",
			Repo:    repo,
			Mapper:  mapping.ClientMapper{},
			Aliases: domain.ClientSortAliases,
			Filter: func(p domain.PagingParameters) domain.ClientFilter {
				return domain.ClientFilter{Text: p.Filter}
			},
			ID:       func(c domain.Client) int64 { return c.ID },
			SetID:    func(c *domain.Client, id int64) { c.ID = id },
			Validate: (*domain.Client).Validate,
			PrepareCreate: func(c *domain.Client) {
				c.RegisteredAt = opts.Now()
			},
			PrepareUpdate: func(current domain.Client, next *domain.Client) {
				next.RegisteredAt = current.RegisteredAt
			},
			MaxPageSize: opts.MaxPageSize,
			Logger:      opts.Logger,
			Metrics:     opts.Metrics,
		}),
	}
}
