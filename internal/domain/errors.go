package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound — запрошенный идентификатор не соответствует ни одной сущности.
	ErrNotFound = errors.New("not found")
	// ErrValidation — некорректный ввод, отклоняется до обращения к хранилищу.
	ErrValidation = errors.New("validation failed")
	// ErrConflict — нарушение уникальности на стороне хранилища (например, повторный CPF).
	ErrConflict = errors.New("conflict")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// NotFoundError описывает отсутствующую сущность.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e NotFoundError) Error() string {
	if e.Entity == "" {
		return ErrNotFound.Error()
	}
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError описывает нарушение правила по конкретному полю.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	switch {
	case e.Field != "" && e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Field != "":
		return fmt.Sprintf("invalid %s", e.Field)
	default:
		return ErrValidation.Error()
	}
}

func (e ValidationError) Unwrap() error { return ErrValidation }

// NewNotFound возвращает NotFoundError для сущности entity с идентификатором id.
func NewNotFound(entity string, id int64) error {
	return NotFoundError{Entity: entity, ID: id}
}

// NewValidation возвращает ValidationError.
func NewValidation(field, msg string) error {
	return ValidationError{Field: field, Msg: msg}
}

// IsNotFound проверяет, относится ли ошибка к NotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation проверяет, относится ли ошибка к ValidationFailure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict проверяет, относится ли ошибка к конфликту уникальности.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// JoinValidation склеивает список нарушений в одну ошибку, которая остаётся ValidationFailure.
func JoinValidation(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}
