package domain

import "strings"

// SortField — закрытый перечень полей, по которым провайдер хранилища умеет сортировать.
// Провайдер сам сопоставляет значение с колонкой или компаратором.
type SortField string

const (
	SortByID         SortField = "id"
	SortByName       SortField = "name"
	SortByCPF        SortField = "cpf"
	SortByEmail      SortField = "email"
	SortByRegistered SortField = "registered_at"
	SortBySellerID   SortField = "seller_id"
	SortByClientID   SortField = "client_id"
	SortByTotal      SortField = "total"
	SortByCreatedAt  SortField = "created_at"
	SortByPrice      SortField = "price"
	SortByStock      SortField = "stock"
	SortByCategoryID SortField = "category_id"
)

// SortAliases сопоставляет клиентские ключи сортировки (в нижнем регистре) с полями.
type SortAliases map[string]SortField

// Resolve возвращает поле для ключа без учёта регистра.
// Пустой или неизвестный ключ даёт SortByID: запрос никогда не падает из-за сортировки.
func (a SortAliases) Resolve(key string) SortField {
	if field, ok := a[strings.ToLower(strings.TrimSpace(key))]; ok {
		return field
	}
	return SortByID
}

var (
	// OrderSortAliases — двуязычные ключи сортировки заказов.
	OrderSortAliases = SortAliases{
		"vendedorid": SortBySellerID,
		"sellerid":   SortBySellerID,
		"clienteid":  SortByClientID,
		"clientid":   SortByClientID,
		"total":      SortByTotal,
		"data":       SortByCreatedAt,
		"date":       SortByCreatedAt,
	}

	// ClientSortAliases — ключи сортировки клиентов.
	ClientSortAliases = SortAliases{
		"nome":     SortByName,
		"name":     SortByName,
		"cpf":      SortByCPF,
		"email":    SortByEmail,
		"data":     SortByRegistered,
		"date":     SortByRegistered,
		"cadastro": SortByRegistered,
	}

	// CategorySortAliases — ключи сортировки категорий.
	CategorySortAliases = SortAliases{
		"nome": SortByName,
		"name": SortByName,
	}

	// ProductSortAliases — ключи сортировки товаров.
	ProductSortAliases = SortAliases{
		"nome":        SortByName,
		"name":        SortByName,
		"preco":       SortByPrice,
		"price":       SortByPrice,
		"estoque":     SortByStock,
		"stock":       SortByStock,
		"categoriaid": SortByCategoryID,
		"categoryid":  SortByCategoryID,
	}
)
