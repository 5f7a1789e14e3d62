package domain

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// IdempotencyKeyMaxLen — предельная длина ключа, совпадает с колонкой idempotency_keys.key.
const IdempotencyKeyMaxLen = 128

// IdempotencyStatus описывает жизненный цикл ключа идемпотентности.
type IdempotencyStatus string

const (
	// IdempotencyStatusProcessing означает, что запрос принят и ещё обрабатывается.
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone означает, что запрос завершён успешно и ответ сохранён.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed означает, что запрос отклонён и сохранён ответ с ошибкой.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

var (
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key is already used with a different request")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
)

// IdempotencyRecord хранит состояние обработки запроса с Idempotency-Key.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseBody []byte
	HTTPStatus   int
	Status       IdempotencyStatus
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}

// NormalizeIdempotencyKey обрезает пробелы и проверяет длину ключа.
func NormalizeIdempotencyKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrIdempotencyKeyRequired
	}
	if utf8.RuneCountInString(key) > IdempotencyKeyMaxLen {
		return "", NewValidation("Idempotency-Key", "must be at most 128 characters")
	}
	return key, nil
}

// IdempotencyRepository хранит ответы на повторяемые запросы создания.
//
// CreateProcessing атомарно резервирует ключ. Если ключ уже занят, возвращается
// существующая запись вместе с ErrIdempotencyKeyAlreadyExists или ErrIdempotencyHashMismatch.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	// Delete освобождает ключ, чтобы запрос можно было повторить (после ошибки сервера).
	Delete(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}
