package memory

import (
	"cmp"
	"context"
	"strings"
	"sync/atomic"

	"github.com/vladislavdragonenkov/loja/internal/domain"
)

func compareText(a, b string) int {
	return cmp.Compare(strings.ToLower(a), strings.ToLower(b))
}

// NewClientRepository возвращает in-memory репозиторий клиентов для локальной разработки и тестов.
func NewClientRepository() domain.ClientRepository {
	return newTable(tableSchema[domain.Client, domain.ClientFilter]{
		entity: "client",
		id:     func(c domain.Client) int64 { return c.ID },
		setID:  func(c *domain.Client, id int64) { c.ID = id },
		match:  domain.ClientFilter.Match,
		compares: map[domain.SortField]compareFunc[domain.Client]{
			domain.SortByName:  func(a, b domain.Client) int { return compareText(a.Name, b.Name) },
			domain.SortByCPF:   func(a, b domain.Client) int { return cmp.Compare(a.CPF, b.CPF) },
			domain.SortByEmail: func(a, b domain.Client) int { return compareText(a.Email, b.Email) },
			domain.SortByRegistered: func(a, b domain.Client) int {
				return a.RegisteredAt.Compare(b.RegisteredAt)
			},
		},
	})
}

// NewCategoryRepository возвращает in-memory репозиторий категорий.
func NewCategoryRepository() domain.CategoryRepository {
	return newTable(tableSchema[domain.Category, domain.CategoryFilter]{
		entity: "category",
		id:     func(c domain.Category) int64 { return c.ID },
		setID:  func(c *domain.Category, id int64) { c.ID = id },
		match:  domain.CategoryFilter.Match,
		compares: map[domain.SortField]compareFunc[domain.Category]{
			domain.SortByName: func(a, b domain.Category) int { return compareText(a.Name, b.Name) },
		},
	})
}

// NewProductRepository возвращает in-memory репозиторий товаров.
func NewProductRepository() domain.ProductRepository {
	return newTable(tableSchema[domain.Product, domain.ProductFilter]{
		entity: "product",
		id:     func(p domain.Product) int64 { return p.ID },
		setID:  func(p *domain.Product, id int64) { p.ID = id },
		match:  domain.ProductFilter.Match,
		compares: map[domain.SortField]compareFunc[domain.Product]{
			domain.SortByName:       func(a, b domain.Product) int { return compareText(a.Name, b.Name) },
			domain.SortByPrice:      func(a, b domain.Product) int { return cmp.Compare(a.PriceMinor, b.PriceMinor) },
			domain.SortByStock:      func(a, b domain.Product) int { return cmp.Compare(a.Stock, b.Stock) },
			domain.SortByCategoryID: func(a, b domain.Product) int { return cmp.Compare(a.CategoryID, b.CategoryID) },
		},
	})
}

// orderRepositoryInMemory хранит заказы вместе с позициями.
type orderRepositoryInMemory struct {
	*table[domain.Order, domain.OrderFilter]
	itemSeq atomic.Int64
}

// NewOrderRepository возвращает in-memory репозиторий заказов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		table: newTable(tableSchema[domain.Order, domain.OrderFilter]{
			entity: "order",
			id:     func(o domain.Order) int64 { return o.ID },
			setID:  func(o *domain.Order, id int64) { o.ID = id },
			match:  domain.OrderFilter.Match,
			clone:  cloneOrder,
			compares: map[domain.SortField]compareFunc[domain.Order]{
				domain.SortBySellerID:  func(a, b domain.Order) int { return cmp.Compare(a.SellerID, b.SellerID) },
				domain.SortByClientID:  func(a, b domain.Order) int { return cmp.Compare(a.ClientID, b.ClientID) },
				domain.SortByTotal:     func(a, b domain.Order) int { return cmp.Compare(a.TotalMinor, b.TotalMinor) },
				domain.SortByCreatedAt: func(a, b domain.Order) int { return a.CreatedAt.Compare(b.CreatedAt) },
			},
		}),
	}
}

// Create выдаёт идентификаторы позициям и сохраняет заказ.
func (r *orderRepositoryInMemory) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	order = cloneOrder(order)
	r.assignItemIDs(&order)
	return r.table.Create(ctx, order)
}

// Update перезаписывает заказ вместе с набором позиций.
func (r *orderRepositoryInMemory) Update(ctx context.Context, order domain.Order) error {
	order = cloneOrder(order)
	r.assignItemIDs(&order)
	return r.table.Update(ctx, order)
}

func (r *orderRepositoryInMemory) assignItemIDs(order *domain.Order) {
	for i := range order.Items {
		if order.Items[i].ID == 0 {
			order.Items[i].ID = r.itemSeq.Add(1)
		}
	}
}

func cloneOrder(src domain.Order) domain.Order {
	dst := src
	if src.Items != nil {
		dst.Items = append([]domain.OrderItem(nil), src.Items...)
	}
	return dst
}

var (
	_ domain.ClientRepository   = (*table[domain.Client, domain.ClientFilter])(nil)
	_ domain.CategoryRepository = (*table[domain.Category, domain.CategoryFilter])(nil)
	_ domain.ProductRepository  = (*table[domain.Product, domain.ProductFilter])(nil)
	_ domain.OrderRepository    = (*orderRepositoryInMemory)(nil)
)
