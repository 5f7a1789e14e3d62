package metrics

import "github.com/prometheus/client_golang/prometheus"

// Результаты обработки запросов с Idempotency-Key.
const (
	IdempotencyStored   = "stored"
	IdempotencyReplayed = "replayed"
	IdempotencyConflict = "conflict"
	IdempotencyReleased = "released"
)

// IdempotencyMetrics содержит метрики ключей идемпотентности и их очистки.
type IdempotencyMetrics struct {
	requests       *prometheus.CounterVec
	cleanupRuns    *prometheus.CounterVec
	cleanupDeleted prometheus.Counter
	lastDeleted    prometheus.Gauge
}

// NewIdempotencyMetrics регистрирует метрики идемпотентности в DefaultRegisterer.
func NewIdempotencyMetrics() *IdempotencyMetrics {
	return NewIdempotencyMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewIdempotencyMetricsWithRegisterer регистрирует метрики идемпотентности в переданном registerer.
func NewIdempotencyMetricsWithRegisterer(registerer prometheus.Registerer) *IdempotencyMetrics {
	return &IdempotencyMetrics{
		requests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "loja_idempotency_requests_total",
			Help: "Total number of requests carrying Idempotency-Key grouped by outcome.",
		}, []string{"outcome"}),
		cleanupRuns: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "loja_idempotency_cleanup_runs_total",
			Help: "Total number of idempotency cleanup runs grouped by result.",
		}, []string{"result"}),
		cleanupDeleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "loja_idempotency_cleanup_deleted_total",
			Help: "Total number of deleted expired idempotency records.",
		}),
		lastDeleted: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "loja_idempotency_cleanup_last_deleted",
			Help: "Number of deleted records during the last cleanup run.",
		}),
	}
}

// RecordRequest фиксирует исход запроса с ключом идемпотентности.
func (m *IdempotencyMetrics) RecordRequest(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

// RecordCleanupRun фиксирует завершённый цикл очистки; deleted учитывается только при успехе.
func (m *IdempotencyMetrics) RecordCleanupRun(deleted int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.cleanupRuns.WithLabelValues(ResultError).Inc()
		return
	}
	m.cleanupRuns.WithLabelValues(ResultOK).Inc()
	m.lastDeleted.Set(float64(deleted))
}

// AddCleanupDeleted увеличивает счётчик удалённых записей.
func (m *IdempotencyMetrics) AddCleanupDeleted(deleted int) {
	if m == nil || deleted <= 0 {
		return
	}
	m.cleanupDeleted.Add(float64(deleted))
}
