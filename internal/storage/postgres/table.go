package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/vladislavdragonenkov/loja/internal/domain"
)

// condition — фрагмент WHERE с плейсхолдерами `?` и его аргументы.
type condition struct {
	clauses []string
	args    []any
}

func (c *condition) add(clause string, args ...any) {
	c.clauses = append(c.clauses, clause)
	c.args = append(c.args, args...)
}

func (c condition) sql() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

func trimmed(text string) string {
	return strings.TrimSpace(text)
}

// containsPattern строит шаблон ILIKE для поиска подстроки.
func containsPattern(text string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(text) + "%"
}

// tableSpec описывает отображение сущности E на таблицу через строку R с db-тегами.
type tableSpec[E any, F any, R any] struct {
	entity  string
	name    string
	id      func(E) int64
	columns []string
	sorts   map[domain.SortField]string
	where   func(F) condition
	toRow   func(E) R
	fromRow func(R) E
}

// table реализует domain.Repository[E, F] для одной таблицы с BIGSERIAL id.
type table[E any, F any, R any] struct {
	db   *sqlx.DB
	spec tableSpec[E, F, R]

	selectSQL string
	insertSQL string
	updateSQL string
}

func newTable[E any, F any, R any](db *sqlx.DB, spec tableSpec[E, F, R]) *table[E, F, R] {
	named := make([]string, len(spec.columns))
	assign := make([]string, len(spec.columns))
	for i, col := range spec.columns {
		named[i] = ":" + col
		assign[i] = col + " = :" + col
	}

	return &table[E, F, R]{
		db:        db,
		spec:      spec,
		selectSQL: fmt.Sprintf("SELECT id, %s FROM %s", strings.Join(spec.columns, ", "), spec.name),
		insertSQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
			spec.name, strings.Join(spec.columns, ", "), strings.Join(named, ", ")),
		updateSQL: fmt.Sprintf("UPDATE %s SET %s WHERE id = :id", spec.name, strings.Join(assign, ", ")),
	}
}

// GetByID возвращает сущность или NotFound.
func (t *table[E, F, R]) GetByID(ctx context.Context, id int64) (E, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var (
		zero E
		row  R
	)
	if err := t.db.GetContext(ctx, &row, t.selectSQL+" WHERE id = $1", id); err != nil {
		return zero, t.wrap("get", id, err)
	}
	return t.spec.fromRow(row), nil
}

// GetPaged считает записи под фильтром и читает запрошенную страницу, упорядоченную по sort и id.
func (t *table[E, F, R]) GetPaged(ctx context.Context, params domain.PagingParameters, sort domain.SortField, filter F) ([]E, domain.PagingInfo, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, info, err := t.selectPage(ctx, params, sort, filter)
	if err != nil {
		return nil, domain.PagingInfo{}, err
	}

	items := make([]E, 0, len(rows))
	for _, row := range rows {
		items = append(items, t.spec.fromRow(row))
	}
	return items, info, nil
}

func (t *table[E, F, R]) selectPage(ctx context.Context, params domain.PagingParameters, sort domain.SortField, filter F) ([]R, domain.PagingInfo, error) {
	var cond condition
	if t.spec.where != nil {
		cond = t.spec.where(filter)
	}

	var total int64
	countSQL := t.db.Rebind("SELECT COUNT(*) FROM " + t.spec.name + cond.sql())
	if err := t.db.GetContext(ctx, &total, countSQL, cond.args...); err != nil {
		return nil, domain.PagingInfo{}, fmt.Errorf("count %s: %w", t.spec.name, err)
	}

	info := domain.NewPagingInfo(total, params.PageNumber, params.PageSize)
	offset := params.Offset()
	if int64(offset) >= total {
		return []R{}, info, nil
	}

	query := t.db.Rebind(t.selectSQL + cond.sql() + " ORDER BY " + t.orderBy(sort) + " LIMIT ? OFFSET ?")
	args := append(cond.args, params.PageSize, offset)

	rows := make([]R, 0, params.PageSize)
	if err := t.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, domain.PagingInfo{}, fmt.Errorf("select %s page: %w", t.spec.name, err)
	}
	return rows, info, nil
}

func (t *table[E, F, R]) orderBy(sort domain.SortField) string {
	column, ok := t.spec.sorts[sort]
	if !ok || column == "id" {
		return "id"
	}
	return column + ", id"
}

// Create вставляет строку и возвращает сущность с выданным id.
func (t *table[E, F, R]) Create(ctx context.Context, entity E) (E, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var zero E
	id, err := insertReturningID(ctx, t.db, t.insertSQL, t.spec.toRow(entity))
	if err != nil {
		return zero, t.wrap("insert", 0, err)
	}
	return t.GetByID(ctx, id)
}

// Update перезаписывает строку; отсутствующая даёт NotFound.
func (t *table[E, F, R]) Update(ctx context.Context, entity E) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	id := t.spec.id(entity)
	res, err := t.db.NamedExecContext(ctx, t.updateSQL, t.spec.toRow(entity))
	if err != nil {
		return t.wrap("update", id, err)
	}
	return t.expectAffected(res, id)
}

// Remove удаляет строку; отсутствующая даёт NotFound.
func (t *table[E, F, R]) Remove(ctx context.Context, id int64) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := t.db.ExecContext(ctx, "DELETE FROM "+t.spec.name+" WHERE id = $1", id)
	if err != nil {
		return t.wrap("delete", id, err)
	}
	return t.expectAffected(res, id)
}

func (t *table[E, F, R]) expectAffected(res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", t.spec.name, err)
	}
	if affected == 0 {
		return domain.NewNotFound(t.spec.entity, id)
	}
	return nil
}

// wrap переводит ошибки драйвера в доменные; остальные дополняет контекстом.
func (t *table[E, F, R]) wrap(op string, id int64, err error) error {
	return wrapError(t.spec.entity, t.spec.name, op, id, err)
}

func wrapError(entity, tableName, op string, id int64, err error) error {
	if domainErr := translateError(entity, id, err); domainErr != nil {
		return domainErr
	}
	return fmt.Errorf("%s %s: %w", op, tableName, err)
}

// insertReturningID выполняет именованный INSERT ... RETURNING id.
func insertReturningID(ctx context.Context, ext sqlx.ExtContext, query string, arg any) (int64, error) {
	rows, err := sqlx.NamedQueryContext(ctx, ext, query, arg)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, sql.ErrNoRows
	}
	var id int64
	if err := rows.Scan(&id); err != nil {
		return 0, err
	}
	return id, rows.Err()
}
