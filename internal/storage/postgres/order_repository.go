package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vladislavdragonenkov/loja/internal/domain"
)

const insertOrderItemsSQL = `
	INSERT INTO order_items (order_id, product_id, quantity, unit_price_minor)
	VALUES (:order_id, :product_id, :quantity, :unit_price_minor)`

type orderRow struct {
	ID         int64     `db:"id"`
	ClientID   int64     `db:"client_id"`
	SellerID   int64     `db:"seller_id"`
	TotalMinor int64     `db:"total_minor"`
	Status     string    `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
}

type orderItemRow struct {
	ID             int64 `db:"id"`
	OrderID        int64 `db:"order_id"`
	ProductID      int64 `db:"product_id"`
	Quantity       int32 `db:"quantity"`
	UnitPriceMinor int64 `db:"unit_price_minor"`
}

// orderRepository хранит заказ в orders, позиции в order_items (ON DELETE CASCADE).
type orderRepository struct {
	*table[domain.Order, domain.OrderFilter, orderRow]
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{table: newTable(store.DB(), tableSpec[domain.Order, domain.OrderFilter, orderRow]{
		entity:  "order",
		name:    "orders",
		id:      func(o domain.Order) int64 { return o.ID },
		columns: []string{"client_id", "seller_id", "total_minor", "status", "created_at"},
		sorts: map[domain.SortField]string{
			domain.SortBySellerID:  "seller_id",
			domain.SortByClientID:  "client_id",
			domain.SortByTotal:     "total_minor",
			domain.SortByCreatedAt: "created_at",
		},
		where: func(f domain.OrderFilter) condition {
			var c condition
			if f.ClientID > 0 {
				c.add("client_id = ?", f.ClientID)
			}
			if f.SellerID > 0 {
				c.add("seller_id = ?", f.SellerID)
			}
			if f.Status != "" {
				c.add("status = ?", string(f.Status))
			}
			return c
		},
		toRow: func(o domain.Order) orderRow {
			return orderRow{
				ID: o.ID, ClientID: o.ClientID, SellerID: o.SellerID, TotalMinor: o.TotalMinor,
				Status: string(o.Status), CreatedAt: o.CreatedAt,
			}
		},
		fromRow: func(r orderRow) domain.Order {
			return domain.Order{
				ID: r.ID, ClientID: r.ClientID, SellerID: r.SellerID, TotalMinor: r.TotalMinor,
				Status: domain.OrderStatus(r.Status), CreatedAt: r.CreatedAt.UTC(),
			}
		},
	})}
}

// GetByID возвращает заказ вместе с позициями.
func (r *orderRepository) GetByID(ctx context.Context, id int64) (domain.Order, error) {
	order, err := r.table.GetByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	items, err := r.loadItems(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items[id]
	return order, nil
}

// GetPaged возвращает страницу заказов; позиции догружаются одним запросом.
func (r *orderRepository) GetPaged(ctx context.Context, params domain.PagingParameters, sort domain.SortField, filter domain.OrderFilter) ([]domain.Order, domain.PagingInfo, error) {
	orders, info, err := r.table.GetPaged(ctx, params, sort, filter)
	if err != nil || len(orders) == 0 {
		return orders, info, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	ids := make([]int64, 0, len(orders))
	for _, order := range orders {
		ids = append(ids, order.ID)
	}
	items, err := r.loadItems(ctx, ids...)
	if err != nil {
		return nil, domain.PagingInfo{}, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, info, nil
}

// Create сохраняет заказ и позиции в одной транзакции.
func (r *orderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	id, err := insertReturningID(ctx, tx, r.insertSQL, r.spec.toRow(order))
	if err != nil {
		return domain.Order{}, r.wrap("insert", 0, err)
	}
	if err = insertItems(ctx, tx, id, order.Items); err != nil {
		return domain.Order{}, r.wrap("insert items", id, err)
	}
	if err = tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit create order: %w", err)
	}

	return r.GetByID(ctx, id)
}

// Update перезаписывает заказ и заменяет набор позиций в одной транзакции.
func (r *orderRepository) Update(ctx context.Context, order domain.Order) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.NamedExecContext(ctx, r.updateSQL, r.spec.toRow(order))
	if err != nil {
		return r.wrap("update", order.ID, err)
	}
	if err = r.expectAffected(res, order.ID); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, order.ID); err != nil {
		return fmt.Errorf("delete order items: %w", err)
	}
	if err = insertItems(ctx, tx, order.ID, order.Items); err != nil {
		return r.wrap("insert items", order.ID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update order: %w", err)
	}
	return nil
}

func insertItems(ctx context.Context, tx *sqlx.Tx, orderID int64, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	rows := make([]orderItemRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, orderItemRow{
			OrderID:        orderID,
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceMinor: item.UnitPriceMinor,
		})
	}
	_, err := tx.NamedExecContext(ctx, insertOrderItemsSQL, rows)
	return err
}

// loadItems возвращает позиции заказов, сгруппированные по order_id.
func (r *orderRepository) loadItems(ctx context.Context, orderIDs ...int64) (map[int64][]domain.OrderItem, error) {
	query, args, err := sqlx.In(`
		SELECT id, order_id, product_id, quantity, unit_price_minor
		FROM order_items
		WHERE order_id IN (?)
		ORDER BY order_id, id
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("build order items query: %w", err)
	}

	var rows []orderItemRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}

	result := make(map[int64][]domain.OrderItem, len(orderIDs))
	for _, row := range rows {
		result[row.OrderID] = append(result[row.OrderID], domain.OrderItem{
			ID:             row.ID,
			ProductID:      row.ProductID,
			Quantity:       row.Quantity,
			UnitPriceMinor: row.UnitPriceMinor,
		})
	}
	return result, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
