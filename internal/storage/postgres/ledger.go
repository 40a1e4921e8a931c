package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/venue-orders/internal/domain/catalog"
)

// The guarded decrement is a single statement: the row lock it takes is held
// until commit, and a concurrent writer blocked on it re-evaluates the
// quantity predicate against the committed row.
const (
	takeStockSQL = `UPDATE menu_items m
	SET quantity = m.quantity - $2, updated_at = now()
	FROM categories c
	WHERE m.id = $1 AND m.quantity >= $2 AND c.id = m.category_id
	RETURNING ` + menuItemColumns

	putStockSQL = `UPDATE menu_items m
	SET quantity = m.quantity + $2, updated_at = now()
	FROM categories c
	WHERE m.id = $1 AND c.id = m.category_id
	RETURNING ` + menuItemColumns

	probeStockSQL = `SELECT name, quantity FROM menu_items WHERE id = $1`
)

// Reserve decrements the item's quantity if enough is on hand.
func (r *CatalogRepository) Reserve(ctx context.Context, id int64, amount int) (*catalog.MenuItem, error) {
	return takeStock(ctx, r.pool, id, amount)
}

// Release returns amount units to the item.
func (r *CatalogRepository) Release(ctx context.Context, id int64, amount int) error {
	_, err := putStock(ctx, r.pool, id, amount)
	return err
}

// Reduce removes amount units from the item if enough is on hand.
func (r *CatalogRepository) Reduce(ctx context.Context, id int64, amount int) (*catalog.MenuItem, error) {
	return takeStock(ctx, r.pool, id, amount)
}

// Restock adds amount units to the item.
func (r *CatalogRepository) Restock(ctx context.Context, id int64, amount int) (*catalog.MenuItem, error) {
	return putStock(ctx, r.pool, id, amount)
}

func takeStock(ctx context.Context, q querier, id int64, amount int) (*catalog.MenuItem, error) {
	item, err := scanMenuItem(q.QueryRow(ctx, takeStockSQL, id, amount))
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, wrap(err, "take stock of menu item %d", id)
	}

	// No row matched: the item is missing or short.
	var (
		name      string
		available int
	)
	if err := q.QueryRow(ctx, probeStockSQL, id).Scan(&name, &available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrMenuItemNotFound
		}
		return nil, wrap(err, "probe stock of menu item %d", id)
	}
	return nil, &catalog.InsufficientStockError{
		MenuItemID: id,
		Name:       name,
		Requested:  amount,
		Available:  available,
	}
}

func putStock(ctx context.Context, q querier, id int64, amount int) (*catalog.MenuItem, error) {
	item, err := scanMenuItem(q.QueryRow(ctx, putStockSQL, id, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrMenuItemNotFound
		}
		if isOutOfRange(err) {
			return nil, catalog.ErrQuantityOverflow
		}
		return nil, wrap(err, "put stock to menu item %d", id)
	}
	return item, nil
}
