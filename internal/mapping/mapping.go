// Package mapping переводит сущности домена в транспортные объекты и обратно.
package mapping

import (
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/loja/internal/domain"
	"github.com/vladislavdragonenkov/loja/internal/dto"
)

// moneyExp — количество знаков после запятой в денежных значениях.
const moneyExp = 2

// Mapper переводит сущность E в DTO D и обратно.
type Mapper[E any, D any] interface {
	ToDTO(E) D
	ToEntity(D) E
}

// ToDTOs применяет mapper к каждому элементу. Пустой ввод даёт пустой (не nil) срез.
func ToDTOs[E any, D any](m Mapper[E, D], entities []E) []D {
	result := make([]D, 0, len(entities))
	for _, e := range entities {
		result = append(result, m.ToDTO(e))
	}
	return result
}

// Paging переводит PagingInfo домена в DTO.
func Paging(info domain.PagingInfo) dto.PagingInfo {
	return dto.PagingInfo{
		TotalItems:  info.TotalItems,
		TotalPages:  info.TotalPages,
		CurrentPage: info.CurrentPage,
		PageSize:    info.PageSize,
	}
}

// MoneyFromMinor переводит минимальные единицы в десятичное значение.
func MoneyFromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -moneyExp)
}

// MoneyToMinor округляет значение до двух знаков и переводит в минимальные единицы.
func MoneyToMinor(amount decimal.Decimal) int64 {
	return amount.Shift(moneyExp).Round(0).IntPart()
}

// ClientMapper — правила перевода клиента.
type ClientMapper struct{}

func (ClientMapper) ToDTO(c domain.Client) dto.Client {
	return dto.Client{
		ID:           c.ID,
		Name:         c.Name,
		CPF:          c.CPF,
		BirthDate:    c.BirthDate,
		Address:      c.Address,
		Email:        c.Email,
		Phone:        c.Phone,
		RegisteredAt: c.RegisteredAt,
	}
}

func (ClientMapper) ToEntity(d dto.Client) domain.Client {
	return domain.Client{
		ID:           d.ID,
		Name:         d.Name,
		CPF:          d.CPF,
		BirthDate:    d.BirthDate,
		Address:      d.Address,
		Email:        d.Email,
		Phone:        d.Phone,
		RegisteredAt: d.RegisteredAt,
	}
}

// CategoryMapper — правила перевода категории.
type CategoryMapper struct{}

func (CategoryMapper) ToDTO(c domain.Category) dto.Category {
	return dto.Category{ID: c.ID, Name: c.Name, Description: c.Description}
}

func (CategoryMapper) ToEntity(d dto.Category) domain.Category {
	return domain.Category{ID: d.ID, Name: d.Name, Description: d.Description}
}

// ProductMapper — правила перевода товара.
type ProductMapper struct{}

func (ProductMapper) ToDTO(p domain.Product) dto.Product {
	return dto.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       MoneyFromMinor(p.PriceMinor),
		Stock:       p.Stock,
		Image:       p.Image,
		CategoryID:  p.CategoryID,
	}
}

func (ProductMapper) ToEntity(d dto.Product) domain.Product {
	return domain.Product{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		PriceMinor:  MoneyToMinor(d.Price),
		Stock:       d.Stock,
		Image:       d.Image,
		CategoryID:  d.CategoryID,
	}
}

// OrderMapper — правила перевода заказа и его позиций.
type OrderMapper struct{}

func (OrderMapper) ToDTO(o domain.Order) dto.Order {
	var items []dto.OrderItem
	if len(o.Items) > 0 {
		items = make([]dto.OrderItem, 0, len(o.Items))
		for _, item := range o.Items {
			items = append(items, dto.OrderItem{
				ID:        item.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: MoneyFromMinor(item.UnitPriceMinor),
			})
		}
	}
	return dto.Order{
		ID:        o.ID,
		ClientID:  o.ClientID,
		SellerID:  o.SellerID,
		Total:     MoneyFromMinor(o.TotalMinor),
		Status:    string(o.Status),
		Items:     items,
		CreatedAt: o.CreatedAt,
	}
}

func (OrderMapper) ToEntity(d dto.Order) domain.Order {
	var items []domain.OrderItem
	if len(d.Items) > 0 {
		items = make([]domain.OrderItem, 0, len(d.Items))
		for _, item := range d.Items {
			items = append(items, domain.OrderItem{
				ID:             item.ID,
				ProductID:      item.ProductID,
				Quantity:       item.Quantity,
				UnitPriceMinor: MoneyToMinor(item.UnitPrice),
			})
		}
	}
	return domain.Order{
		ID:         d.ID,
		ClientID:   d.ClientID,
		SellerID:   d.SellerID,
		TotalMinor: MoneyToMinor(d.Total),
		Status:     domain.OrderStatus(d.Status),
		Items:      items,
		CreatedAt:  d.CreatedAt,
	}
}

// Timeline переводит события истории заказа.
func Timeline(events []domain.TimelineEvent) []dto.TimelineEvent {
	result := make([]dto.TimelineEvent, 0, len(events))
	for _, e := range events {
		result = append(result, dto.TimelineEvent{Type: e.Type, Reason: e.Reason, Occurred: e.Occurred})
	}
	return result
}

var (
	_ Mapper[domain.Client, dto.Client]     = ClientMapper{}
	_ Mapper[domain.Category, dto.Category] = CategoryMapper{}
	_ Mapper[domain.Product, dto.Product]   = ProductMapper{}
	_ Mapper[domain.Order, dto.Order]       = OrderMapper{}
)
