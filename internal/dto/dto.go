// Package dto содержит транспортные представления сущностей магазина.
package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// Client — представление клиента в API.
type Client struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	CPF          string    `json:"cpf"`
	BirthDate    time.Time `json:"birthDate"`
	Address      string    `json:"address,omitempty"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Category — представление категории.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Product — представление товара. Цена — десятичное число с двумя знаками.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int32           `json:"stock"`
	Image       string          `json:"image,omitempty"`
	CategoryID  int64           `json:"categoryId"`
}

// OrderItem — позиция заказа.
type OrderItem struct {
	ID        int64           `json:"id,omitempty"`
	ProductID int64           `json:"productId"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Order — представление заказа.
type Order struct {
	ID        int64           `json:"id"`
	ClientID  int64           `json:"clientId"`
	SellerID  int64           `json:"sellerId"`
	Total     decimal.Decimal `json:"total"`
	Status    string          `json:"status"`
	Items     []OrderItem     `json:"items,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// OrderProduct — позиция заказа с раскрытым товаром.
type OrderProduct struct {
	OrderItem
	Product *Product `json:"product,omitempty"`
}

// OrderWithProducts — заказ, у которого товары позиций загружены из каталога.
type OrderWithProducts struct {
	Order
	Products []OrderProduct `json:"products"`
}

// StatusUpdate — тело запроса смены статуса заказа.
type StatusUpdate struct {
	Status string `json:"status"`
}

// TimelineEvent — событие в истории заказа.
type TimelineEvent struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

// PagingInfo — метаданные постраничной выборки.
type PagingInfo struct {
	TotalItems  int64 `json:"totalItems"`
	TotalPages  int   `json:"totalPages"`
	CurrentPage int   `json:"currentPage"`
	PageSize    int   `json:"pageSize"`
}

// Page — страница результатов вместе с метаданными.
type Page[T any] struct {
	Items  []T        `json:"items"`
	Paging PagingInfo `json:"paging"`
}
