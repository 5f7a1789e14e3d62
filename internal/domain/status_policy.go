package domain

import (
	"fmt"
	"strings"
)

// StatusPolicy решает, допустим ли переход статуса заказа.
type StatusPolicy interface {
	Allowed(from, to OrderStatus) bool
}

// OpenStatusPolicy разрешает любой переход. Поведение по умолчанию: переходы не ограничены.
type OpenStatusPolicy struct{}

// Allowed всегда возвращает true.
func (OpenStatusPolicy) Allowed(_, _ OrderStatus) bool { return true }

// TransitionTable — явная таблица разрешённых переходов.
// Переход в тот же статус всегда разрешён.
type TransitionTable map[OrderStatus][]OrderStatus

// Allowed проверяет переход по таблице.
func (t TransitionTable) Allowed(from, to OrderStatus) bool {
	if from == to {
		return true
	}
	for _, candidate := range t[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// StrictStatusPolicy — консервативная таблица переходов для магазина.
var StrictStatusPolicy = TransitionTable{
	OrderStatusCreated: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped: {OrderStatusDelivered},
}

// Имена политик для конфигурации.
const (
	StatusPolicyOpen   = "open"
	StatusPolicyStrict = "strict"
)

// StatusPolicyByName возвращает политику по имени из конфигурации.
func StatusPolicyByName(name string) (StatusPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StatusPolicyOpen:
		return OpenStatusPolicy{}, nil
	case StatusPolicyStrict:
		return StrictStatusPolicy, nil
	default:
		return nil, fmt.Errorf("unknown order status policy %q", name)
	}
}
