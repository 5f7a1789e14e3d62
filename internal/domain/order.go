package domain

import (
	"math"
	"time"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusCreated — начальное состояние, выставляется при создании.
	OrderStatusCreated OrderStatus = "created"
	// OrderStatusPaid — оплата подтверждена.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ получен клиентом.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses перечисляет все поддерживаемые статусы в порядке жизненного цикла.
var OrderStatuses = []OrderStatus{
	OrderStatusCreated,
	OrderStatusPaid,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusCreated, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// OrderItem — позиция заказа. Принадлежит заказу и удаляется вместе с ним.
type OrderItem struct {
	ID        int64
	ProductID int64
	Quantity  int32
	// UnitPriceMinor — цена за единицу в минимальных денежных единицах.
	UnitPriceMinor int64
}

// Order агрегирует заказ и его позиции. ClientID и SellerID — ссылки только для поиска.
type Order struct {
	ID         int64
	ClientID   int64
	SellerID   int64
	TotalMinor int64
	Status     OrderStatus
	Items      []OrderItem
	CreatedAt  time.Time
}

// OrderFilter — условие отбора заказов. Нулевые поля не участвуют в отборе.
type OrderFilter struct {
	ClientID int64
	SellerID int64
	Status   OrderStatus
}

// Match применяет фильтр к заказу.
func (f OrderFilter) Match(o Order) bool {
	if f.ClientID > 0 && o.ClientID != f.ClientID {
		return false
	}
	if f.SellerID > 0 && o.SellerID != f.SellerID {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	return true
}

// ItemsTotal возвращает сумму qty * price по позициям; при переполнении int64 — math.MaxInt64.
func (o *Order) ItemsTotal() int64 {
	total, ok := o.itemsTotal()
	if !ok {
		return math.MaxInt64
	}
	return total
}

// itemsTotal считает сумму позиций; ok == false, если сумма не помещается в int64
// или в позициях есть отрицательные значения.
func (o *Order) itemsTotal() (int64, bool) {
	var total int64
	for _, item := range o.Items {
		if item.Quantity < 0 || item.UnitPriceMinor < 0 {
			return 0, false
		}
		if item.Quantity > 0 && item.UnitPriceMinor > math.MaxInt64/int64(item.Quantity) {
			return 0, false
		}
		line := int64(item.Quantity) * item.UnitPriceMinor
		if total > math.MaxInt64-line {
			return 0, false
		}
		total += line
	}
	return total, true
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.ClientID <= 0 {
		errs = append(errs, NewValidation("clientId", "is required"))
	}
	if o.SellerID <= 0 {
		errs = append(errs, NewValidation("sellerId", "is required"))
	}
	if o.TotalMinor < 0 {
		errs = append(errs, NewValidation("total", "must be non-negative"))
	}
	if o.Status != "" && !o.Status.Valid() {
		errs = append(errs, NewValidation("status", "unknown order status "+string(o.Status)))
	}

	for _, item := range o.Items {
		if item.ProductID <= 0 {
			errs = append(errs, NewValidation("items.productId", "is required"))
		}
		if item.Quantity <= 0 {
			errs = append(errs, NewValidation("items.quantity", "must be greater than zero"))
		}
		if item.UnitPriceMinor < 0 {
			errs = append(errs, NewValidation("items.unitPrice", "must be non-negative"))
		}
		if item.Quantity > 0 && item.UnitPriceMinor > math.MaxInt64/int64(item.Quantity) {
			errs = append(errs, NewValidation("items.unitPrice", "quantity * unitPrice is out of range"))
		}
	}
	// Сверяем сумму заказа с суммой позиций, только если позиции переданы.
	if len(o.Items) > 0 {
		total, ok := o.itemsTotal()
		switch {
		case !ok:
			errs = append(errs, NewValidation("total", "items sum is out of range"))
		case total != o.TotalMinor:
			errs = append(errs, NewValidation("total", "does not match items sum"))
		}
	}

	return errs
}

// UpdateStatus — единственный способ сменить статус заказа.
// Допустимость перехода проверяет policy; nil означает OpenStatusPolicy.
func (o *Order) UpdateStatus(next OrderStatus, policy StatusPolicy) error {
	if !next.Valid() {
		return NewValidation("status", "unknown order status "+string(next))
	}
	if policy == nil {
		policy = OpenStatusPolicy{}
	}
	if !policy.Allowed(o.Status, next) {
		return NewValidation("status", "transition "+string(o.Status)+" -> "+string(next)+" is not allowed")
	}
	o.Status = next
	return nil
}
