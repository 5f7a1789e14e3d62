package domain

import "context"

// Repository описывает требования к хранилищу сущности E с фильтром F.
// Идентификаторы всех сущностей магазина — int64, выдаются хранилищем.
type Repository[E any, F any] interface {
	// GetByID возвращает сущность или ошибку, удовлетворяющую IsNotFound.
	GetByID(ctx context.Context, id int64) (E, error)
	// GetPaged применяет фильтр, считает totalItems, сортирует по возрастанию sort
	// (с id в качестве второго ключа) и возвращает запрошенную страницу.
	GetPaged(ctx context.Context, params PagingParameters, sort SortField, filter F) ([]E, PagingInfo, error)
	// Create сохраняет новую сущность и возвращает её с выданным идентификатором.
	Create(ctx context.Context, entity E) (E, error)
	// Update перезаписывает существующую сущность; отсутствующая даёт NotFound.
	Update(ctx context.Context, entity E) error
	// Remove удаляет сущность; отсутствующая даёт NotFound.
	Remove(ctx context.Context, id int64) error
}

// ClientRepository — хранилище клиентов.
type ClientRepository interface {
	Repository[Client, ClientFilter]
}

// CategoryRepository — хранилище категорий.
type CategoryRepository interface {
	Repository[Category, CategoryFilter]
}

// ProductRepository — хранилище товаров.
type ProductRepository interface {
	Repository[Product, ProductFilter]
}

// OrderRepository — хранилище заказов. Позиции сохраняются и удаляются вместе с заказом.
type OrderRepository interface {
	Repository[Order, OrderFilter]
}
