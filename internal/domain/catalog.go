package domain

import (
	"strings"
)

// Ограничения полей каталога.
const (
	CategoryNameMaxLen        = 100
	CategoryDescriptionMaxLen = 256
	ProductNameMaxLen         = 128
	ProductDescriptionMaxLen  = 512
	ProductImageMaxLen        = 256
)

// Category — категория товаров.
type Category struct {
	ID          int64
	Name        string
	Description string
}

// CategoryFilter отбирает категории по подстроке в названии.
type CategoryFilter struct {
	Text string
}

// Match применяет фильтр к категории.
func (f CategoryFilter) Match(c Category) bool {
	text := strings.ToLower(strings.TrimSpace(f.Text))
	return text == "" || strings.Contains(strings.ToLower(c.Name), text)
}

// Validate проверяет поля категории.
func (c *Category) Validate() []error {
	var errs []error
	errs = appendRequired(errs, "name", c.Name, CategoryNameMaxLen)
	errs = appendMaxLen(errs, "description", c.Description, CategoryDescriptionMaxLen)
	return errs
}

// Product — товар каталога. CategoryID — слабая ссылка на Category.
type Product struct {
	ID          int64
	Name        string
	Description string
	// PriceMinor — цена в минимальных денежных единицах (сентаво).
	PriceMinor int64
	Stock      int32
	Image      string
	CategoryID int64
}

// ProductFilter отбирает товары по подстроке в названии и, опционально, по категории.
type ProductFilter struct {
	Text       string
	CategoryID int64
}

// Match применяет фильтр к товару.
func (f ProductFilter) Match(p Product) bool {
	if f.CategoryID > 0 && p.CategoryID != f.CategoryID {
		return false
	}
	text := strings.ToLower(strings.TrimSpace(f.Text))
	return text == "" || strings.Contains(strings.ToLower(p.Name), text)
}

// Validate проверяет поля товара.
func (p *Product) Validate() []error {
	var errs []error

	errs = appendRequired(errs, "name", p.Name, ProductNameMaxLen)
	errs = appendMaxLen(errs, "description", p.Description, ProductDescriptionMaxLen)
	errs = appendMaxLen(errs, "image", p.Image, ProductImageMaxLen)
	if p.PriceMinor < 0 {
		errs = append(errs, NewValidation("price", "must be non-negative"))
	}
	if p.Stock < 0 {
		errs = append(errs, NewValidation("stock", "must be non-negative"))
	}
	if p.CategoryID <= 0 {
		errs = append(errs, NewValidation("categoryId", "is required"))
	}

	return errs
}
