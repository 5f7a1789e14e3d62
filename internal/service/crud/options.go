package crud

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/loja/internal/metrics"
)

// Options — общие параметры прикладных сервисов.
type Options struct {
	Logger      *log.Entry
	Metrics     *metrics.ServiceMetrics
	MaxPageSize int
	Now         func() time.Time
}

// Option настраивает сервис.
type Option func(*Options)

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики сервиса.
func WithMetrics(m *metrics.ServiceMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithMaxPageSize задаёт верхнюю границу pageSize.
func WithMaxPageSize(size int) Option {
	return func(opts *Options) {
		opts.MaxPageSize = size
	}
}

// WithClock задаёт источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(opts *Options) {
		opts.Now = now
	}
}

// ApplyOptions собирает Options с значениями по умолчанию.
func ApplyOptions(options ...Option) Options {
	opts := Options{
		Now: func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return opts
}
