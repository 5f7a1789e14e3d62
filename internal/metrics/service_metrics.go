package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций сервиса.
const (
	ResultOK         = "ok"
	ResultNotFound   = "not_found"
	ResultValidation = "validation"
	ResultConflict   = "conflict"
	ResultError      = "error"
)

// ServiceMetrics содержит метрики прикладных сервисов.
// Методы безопасны для nil-получателя: сервисы в тестах работают без метрик.
type ServiceMetrics struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	statusTransitions *prometheus.CounterVec
	timelineEvents    prometheus.Counter
	outboxEnqueued    prometheus.Counter
}

// NewServiceMetrics регистрирует метрики сервисов в DefaultRegisterer.
func NewServiceMetrics() *ServiceMetrics {
	return NewServiceMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewServiceMetricsWithRegisterer регистрирует метрики сервисов в переданном registerer.
func NewServiceMetricsWithRegisterer(registerer prometheus.Registerer) *ServiceMetrics {
	return &ServiceMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "loja_service_operations_total",
			Help: "Total number of service operations grouped by entity, operation and result.",
		}, []string{"entity", "operation", "result"}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "loja_service_operation_duration_seconds",
			Help:    "Duration of service operations in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"entity", "operation"}),
		statusTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "loja_order_status_transitions_total",
			Help: "Total number of applied order status transitions.",
		}, []string{"from", "to"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "loja_timeline_events_total",
			Help: "Total number of order timeline events recorded.",
		}),
		outboxEnqueued: registerCounter(registerer, prometheus.CounterOpts{
			Name: "loja_outbox_enqueued_total",
			Help: "Total number of events enqueued into transactional outbox.",
		}),
	}
}

// ObserveOperation фиксирует результат и длительность операции сервиса.
func (m *ServiceMetrics) ObserveOperation(entity, operation, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(entity, operation, result).Inc()
	m.operationDuration.WithLabelValues(entity, operation).Observe(duration.Seconds())
}

// RecordStatusTransition увеличивает счётчик применённых переходов статуса.
func (m *ServiceMetrics) RecordStatusTransition(from, to string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(from, to).Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *ServiceMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordOutboxEnqueued увеличивает счётчик событий, поставленных в outbox.
func (m *ServiceMetrics) RecordOutboxEnqueued() {
	if m == nil {
		return
	}
	m.outboxEnqueued.Inc()
}
