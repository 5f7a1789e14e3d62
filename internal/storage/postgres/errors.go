package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/loja/internal/domain"
)

// Коды ошибок PostgreSQL, которые переводятся в доменные ошибки.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// translateError переводит ошибку драйвера в доменную. Для прочих ошибок возвращает nil.
func translateError(entity string, id int64, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewNotFound(entity, id)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s violates %s", domain.ErrConflict, entity, pgErr.ConstraintName)
	case codeForeignKeyViolation:
		return domain.NewValidation(pgErr.ConstraintName, "references a missing entity")
	case codeCheckViolation:
		return domain.NewValidation(pgErr.ConstraintName, "violates check constraint")
	default:
		return nil
	}
}
