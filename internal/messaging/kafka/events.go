package kafka

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/loja/internal/domain"
	"github.com/vladislavdragonenkov/loja/internal/mapping"
)

// EventType определяет тип события
type EventType string

// Order события
const (
	EventTypeOrderCreated       EventType = domain.EventOrderCreated
	EventTypeOrderStatusChanged EventType = domain.EventOrderStatusChanged
	EventTypeOrderRemoved       EventType = domain.EventOrderRemoved
)

// Topics для Kafka
const (
	TopicOrderEvents     = "loja.order.events"
	TopicDeadLetterQueue = "loja.dlq" // Dead Letter Queue для сообщений, не опубликованных из outbox
)

// Kafka headers
const (
	HeaderEventType = "x-event-type"
	HeaderOutboxID  = "x-outbox-id"
)

// OrderEvent — полезная нагрузка событий заказа.
type OrderEvent struct {
	EventType      EventType       `json:"event_type"`
	OrderID        int64           `json:"order_id"`
	ClientID       int64           `json:"client_id"`
	SellerID       int64           `json:"seller_id"`
	Status         string          `json:"status"`
	PreviousStatus string          `json:"previous_status,omitempty"`
	Total          decimal.Decimal `json:"total"`
	Timestamp      time.Time       `json:"timestamp"`
}

// NewOrderEvent создает событие заказа. previous заполняется только для смены статуса.
func NewOrderEvent(eventType EventType, order domain.Order, previous domain.OrderStatus) *OrderEvent {
	return &OrderEvent{
		EventType:      eventType,
		OrderID:        order.ID,
		ClientID:       order.ClientID,
		SellerID:       order.SellerID,
		Status:         string(order.Status),
		PreviousStatus: string(previous),
		Total:          mapping.MoneyFromMinor(order.TotalMinor),
		Timestamp:      time.Now().UTC(),
	}
}
