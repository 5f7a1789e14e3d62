package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Ограничения полей клиента, которые хранилище применяет на уровне схемы.
const (
	ClientNameMaxLen    = 128
	ClientCPFMaxLen     = 14
	ClientAddressMaxLen = 128
	ClientEmailMaxLen   = 128
	ClientPhoneMaxLen   = 32
)

// Client — покупатель магазина. Жизненный цикл независим от заказов.
type Client struct {
	ID           int64
	Name         string
	CPF          string
	BirthDate    time.Time
	Address      string
	Email        string
	Phone        string
	RegisteredAt time.Time
}

// ClientFilter — условие отбора клиентов: подстрока в имени, e-mail или CPF.
type ClientFilter struct {
	Text string
}

// Match применяет фильтр к клиенту (используется in-memory провайдером).
func (f ClientFilter) Match(c Client) bool {
	text := strings.ToLower(strings.TrimSpace(f.Text))
	if text == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.Name), text) ||
		strings.Contains(strings.ToLower(c.Email), text) ||
		strings.Contains(strings.ToLower(c.CPF), text)
}

// Validate проверяет обязательность и длину полей.
func (c *Client) Validate() []error {
	var errs []error

	errs = appendRequired(errs, "name", c.Name, ClientNameMaxLen)
	errs = appendRequired(errs, "cpf", c.CPF, ClientCPFMaxLen)
	errs = appendRequired(errs, "phone", c.Phone, ClientPhoneMaxLen)
	errs = appendMaxLen(errs, "address", c.Address, ClientAddressMaxLen)
	errs = appendMaxLen(errs, "email", c.Email, ClientEmailMaxLen)
	if c.BirthDate.IsZero() {
		errs = append(errs, NewValidation("birthDate", "is required"))
	}

	return errs
}

func appendRequired(errs []error, field, value string, maxLen int) []error {
	if strings.TrimSpace(value) == "" {
		return append(errs, NewValidation(field, "is required"))
	}
	return appendMaxLen(errs, field, value, maxLen)
}

func appendMaxLen(errs []error, field, value string, maxLen int) []error {
	if utf8.RuneCountInString(value) > maxLen {
		return append(errs, NewValidation(field, fmt.Sprintf("must be at most %d characters", maxLen)))
	}
	return errs
}
