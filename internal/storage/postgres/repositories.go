package postgres

import (
	"time"

	"github.com/vladislavdragonenkov/loja/internal/domain"
)

type clientRow struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	CPF          string    `db:"cpf"`
	BirthDate    time.Time `db:"birth_date"`
	Address      string    `db:"address"`
	Email        string    `db:"email"`
	Phone        string    `db:"phone"`
	RegisteredAt time.Time `db:"registered_at"`
}

// NewClientRepository создаёт PostgreSQL-реализацию ClientRepository.
func NewClientRepository(store *Store) domain.ClientRepository {
	return newTable(store.DB(), tableSpec[domain.Client, domain.ClientFilter, clientRow]{
		entity:  "client",
		name:    "clients",
		id:      func(c domain.Client) int64 { return c.ID },
		columns: []string{"name", "cpf", "birth_date", "address", "email", "phone", "registered_at"},
		sorts: map[domain.SortField]string{
			domain.SortByID:         "id",
			domain.SortByName:       "name",
			domain.SortByCPF:        "cpf",
			domain.SortByEmail:      "email",
			domain.SortByRegistered: "registered_at",
		},
		where: func(f domain.ClientFilter) condition {
			var c condition
			if text := trimmed(f.Text); text != "" {
				p := containsPattern(text)
				c.add("(name ILIKE ? OR email ILIKE ? OR cpf ILIKE ?)", p, p, p)
			}
			return c
		},
		toRow: func(c domain.Client) clientRow {
			return clientRow{
				ID: c.ID, Name: c.Name, CPF: c.CPF, BirthDate: c.BirthDate,
				Address: c.Address, Email: c.Email, Phone: c.Phone, RegisteredAt: c.RegisteredAt,
			}
		},
		fromRow: func(r clientRow) domain.Client {
			return domain.Client{
				ID: r.ID, Name: r.Name, CPF: r.CPF, BirthDate: r.BirthDate.UTC(),
				Address: r.Address, Email: r.Email, Phone: r.Phone, RegisteredAt: r.RegisteredAt.UTC(),
			}
		},
	})
}

type categoryRow struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
}

// NewCategoryRepository создаёт PostgreSQL-реализацию CategoryRepository.
func NewCategoryRepository(store *Store) domain.CategoryRepository {
	return newTable(store.DB(), tableSpec[domain.Category, domain.CategoryFilter, categoryRow]{
		entity:  "category",
		name:    "categories",
		id:      func(c domain.Category) int64 { return c.ID },
		columns: []string{"name", "description"},
		sorts: map[domain.SortField]string{
			domain.SortByName: "name",
		},
		where: func(f domain.CategoryFilter) condition {
			var c condition
			if text := trimmed(f.Text); text != "" {
				c.add("name ILIKE ?", containsPattern(text))
			}
			return c
		},
		toRow: func(c domain.Category) categoryRow {
			return categoryRow{ID: c.ID, Name: c.Name, Description: c.Description}
		},
		fromRow: func(r categoryRow) domain.Category {
			return domain.Category{ID: r.ID, Name: r.Name, Description: r.Description}
		},
	})
}

type productRow struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	PriceMinor  int64  `db:"price_minor"`
	Stock       int32  `db:"stock"`
	Image       string `db:"image"`
	CategoryID  int64  `db:"category_id"`
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return newTable(store.DB(), tableSpec[domain.Product, domain.ProductFilter, productRow]{
		entity:  "product",
		name:    "products",
		id:      func(p domain.Product) int64 { return p.ID },
		columns: []string{"name", "description", "price_minor", "stock", "image", "category_id"},
		sorts: map[domain.SortField]string{
			domain.SortByName:       "name",
			domain.SortByPrice:      "price_minor",
			domain.SortByStock:      "stock",
			domain.SortByCategoryID: "category_id",
		},
		where: func(f domain.ProductFilter) condition {
			var c condition
			if f.CategoryID > 0 {
				c.add("category_id = ?", f.CategoryID)
			}
			if text := trimmed(f.Text); text != "" {
				c.add("name ILIKE ?", containsPattern(text))
			}
			return c
		},
		toRow: func(p domain.Product) productRow {
			return productRow{
				ID: p.ID, Name: p.Name, Description: p.Description, PriceMinor: p.PriceMinor,
				Stock: p.Stock, Image: p.Image, CategoryID: p.CategoryID,
			}
		},
		fromRow: func(r productRow) domain.Product {
			return domain.Product{
				ID: r.ID, Name: r.Name, Description: r.Description, PriceMinor: r.PriceMinor,
				Stock: r.Stock, Image: r.Image, CategoryID: r.CategoryID,
			}
		},
	})
}

var (
	_ domain.ClientRepository   = (*table[domain.Client, domain.ClientFilter, clientRow])(nil)
	_ domain.CategoryRepository = (*table[domain.Category, domain.CategoryFilter, categoryRow])(nil)
	_ domain.ProductRepository  = (*table[domain.Product, domain.ProductFilter, productRow])(nil)
)
