package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/venue-orders/internal/domain/catalog"
	"github.com/xenking/venue-orders/internal/domain/order"
)

const orderColumns = `id, customer_id, status, total, created_at, updated_at`

const (
	createOrderSQL = `INSERT INTO orders (customer_id, status, total)
	VALUES ($1, $2, $3)
	RETURNING id, created_at, updated_at`

	createOrderLineSQL = `INSERT INTO order_lines (order_id, menu_item_id, menu_item_name, quantity, price)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	lockOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
	WHERE ($1::text = '' OR status = $1) AND ($2::text = '' OR customer_id = $2)
	ORDER BY array_position(ARRAY['ESTABLISHED', 'PROCESSING', 'READY', 'DELIVERED'], status), id`

	listOrderLinesSQL = `SELECT order_id, id, menu_item_id, menu_item_name, quantity, price
	FROM order_lines WHERE order_id = ANY($1) ORDER BY order_id, id`

	updateOrderSQL = `UPDATE orders SET status = $2, customer_id = $3, updated_at = now()
	WHERE id = $1
	RETURNING updated_at`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// orderTx runs reservations and inserts inside one database transaction.
type orderTx struct {
	tx pgx.Tx
}

func (t *orderTx) Reserve(ctx context.Context, menuItemID int64, amount int) (*catalog.MenuItem, error) {
	return takeStock(ctx, t.tx, menuItemID, amount)
}

func (t *orderTx) Create(ctx context.Context, o *order.Order) error {
	if err := t.tx.QueryRow(ctx, createOrderSQL, o.CustomerID, string(o.Status), o.Total).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return wrap(err, "insert order")
	}
	for i := range o.Lines {
		l := &o.Lines[i]
		if err := t.tx.QueryRow(ctx, createOrderLineSQL,
			o.ID, l.MenuItemID, l.MenuItemName, l.Quantity, l.Price,
		).Scan(&l.ID); err != nil {
			return wrap(err, "insert order %d line %d", o.ID, i)
		}
	}
	return nil
}

// InTx runs fn in a transaction. Rolling back restores every quantity
// reserved through the tx.
func (r *OrderRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, &orderTx{tx: tx})
	})
	return classify(err)
}

// Get returns an order with its lines.
func (r *OrderRepository) Get(ctx context.Context, id int64) (*order.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, getOrderSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, wrap(err, "get order %d", id)
	}
	if err := loadLines(ctx, r.pool, o); err != nil {
		return nil, err
	}
	return o, nil
}

// List returns orders matching f with their lines.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, string(f.Status), f.CustomerID)
	if err != nil {
		return nil, wrap(err, "list orders")
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Order, error) {
		o, err := scanOrder(row)
		if err != nil {
			return order.Order{}, err
		}
		return *o, nil
	})
	if err != nil {
		return nil, wrap(err, "collect orders")
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ptrs := make([]*order.Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	if err := loadLines(ctx, r.pool, ptrs...); err != nil {
		return nil, err
	}
	return orders, nil
}

// Update locks the order row, applies fn and writes status and customer back.
func (r *OrderRepository) Update(ctx context.Context, id int64, fn func(o *order.Order) error) (*order.Order, error) {
	var updated *order.Order
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		o, err := scanOrder(tx.QueryRow(ctx, lockOrderSQL, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return wrap(err, "lock order %d", id)
		}
		if err := loadLines(ctx, tx, o); err != nil {
			return err
		}
		if err := fn(o); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, updateOrderSQL, id, string(o.Status), o.CustomerID).
			Scan(&o.UpdatedAt); err != nil {
			return wrap(err, "update order %d", id)
		}
		o.ID = id
		updated = o
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return updated, nil
}

// loadLines fills in the lines of every given order with a single query.
func loadLines(ctx context.Context, q querier, orders ...*order.Order) error {
	byID := make(map[int64]*order.Order, len(orders))
	ids := make([]int64, len(orders))
	for i, o := range orders {
		o.Lines = []order.Line{}
		byID[o.ID] = o
		ids[i] = o.ID
	}

	rows, err := q.Query(ctx, listOrderLinesSQL, ids)
	if err != nil {
		return wrap(err, "query order lines")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID int64
			l       order.Line
		)
		if err := rows.Scan(&orderID, &l.ID, &l.MenuItemID, &l.MenuItemName, &l.Quantity, &l.Price); err != nil {
			return wrap(err, "scan order line")
		}
		if o, ok := byID[orderID]; ok {
			o.Lines = append(o.Lines, l)
		}
	}
	if err := rows.Err(); err != nil {
		return wrap(err, "iterate order lines")
	}
	return nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o      order.Order
		status string
	)
	if err := row.Scan(&o.ID, &o.CustomerID, &status, &o.Total, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = order.Status(status)
	return &o, nil
}
