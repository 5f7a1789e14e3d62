package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/vladislavdragonenkov/loja/internal/domain"
)

// compareFunc сравнивает две сущности по одному полю сортировки.
type compareFunc[E any] func(a, b E) int

// tableSchema описывает, как таблица работает с конкретной сущностью.
type tableSchema[E any, F any] struct {
	entity   string
	id       func(E) int64
	setID    func(*E, int64)
	match    func(F, E) bool
	clone    func(E) E
	compares map[domain.SortField]compareFunc[E]
}

// table — потокобезопасная in-memory таблица с автоинкрементным идентификатором.
// Реализует domain.Repository[E, F] для всех сущностей магазина.
type table[E any, F any] struct {
	mu     sync.RWMutex
	seq    int64
	rows   map[int64]E
	schema tableSchema[E, F]
}

func newTable[E any, F any](schema tableSchema[E, F]) *table[E, F] {
	if schema.clone == nil {
		schema.clone = func(e E) E { return e }
	}
	return &table[E, F]{
		rows:   make(map[int64]E),
		schema: schema,
	}
}

// GetByID возвращает копию сущности или NotFound.
func (t *table[E, F]) GetByID(ctx context.Context, id int64) (E, error) {
	var zero E
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	row, ok := t.rows[id]
	if !ok {
		return zero, domain.NewNotFound(t.schema.entity, id)
	}
	return t.schema.clone(row), nil
}

// GetPaged фильтрует, сортирует по возрастанию (id — второй ключ) и режет страницу.
func (t *table[E, F]) GetPaged(ctx context.Context, params domain.PagingParameters, sort domain.SortField, filter F) ([]E, domain.PagingInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.PagingInfo{}, err
	}

	t.mu.RLock()
	matched := make([]E, 0, len(t.rows))
	for _, row := range t.rows {
		if t.schema.match == nil || t.schema.match(filter, row) {
			matched = append(matched, t.schema.clone(row))
		}
	}
	t.mu.RUnlock()

	compare := t.schema.compares[sort]
	slices.SortStableFunc(matched, func(a, b E) int {
		if compare != nil {
			if c := compare(a, b); c != 0 {
				return c
			}
		}
		return cmp.Compare(t.schema.id(a), t.schema.id(b))
	})

	info := domain.NewPagingInfo(int64(len(matched)), params.PageNumber, params.PageSize)

	offset := params.Offset()
	if offset >= len(matched) || params.PageSize <= 0 {
		return []E{}, info, nil
	}
	end := min(offset+params.PageSize, len(matched))
	return matched[offset:end], info, nil
}

// Create выдаёт следующий идентификатор и сохраняет копию сущности.
func (t *table[E, F]) Create(ctx context.Context, entity E) (E, error) {
	if err := ctx.Err(); err != nil {
		var zero E
		return zero, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	t.schema.setID(&entity, t.seq)
	t.rows[t.seq] = t.schema.clone(entity)
	return t.schema.clone(entity), nil
}

// Update перезаписывает существующую сущность.
func (t *table[E, F]) Update(ctx context.Context, entity E) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.schema.id(entity)
	if _, ok := t.rows[id]; !ok {
		return domain.NewNotFound(t.schema.entity, id)
	}
	t.rows[id] = t.schema.clone(entity)
	return nil
}

// Remove удаляет сущность по идентификатору.
func (t *table[E, F]) Remove(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.rows[id]; !ok {
		return domain.NewNotFound(t.schema.entity, id)
	}
	delete(t.rows, id)
	return nil
}
