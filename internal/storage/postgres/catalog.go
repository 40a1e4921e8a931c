package postgres

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/venue-orders/internal/domain/catalog"
)

const menuItemColumns = `m.id, m.name, m.category_id, c.name, m.price, m.quantity, m.description, m.created_at, m.updated_at`

const (
	getMenuItemSQL = `SELECT ` + menuItemColumns + `
	FROM menu_items m JOIN categories c ON c.id = m.category_id
	WHERE m.id = $1`

	listMenuItemsSQL = `SELECT ` + menuItemColumns + `
	FROM menu_items m JOIN categories c ON c.id = m.category_id
	ORDER BY m.category_id, m.id`

	searchMenuItemsSQL = `SELECT ` + menuItemColumns + `
	FROM menu_items m JOIN categories c ON c.id = m.category_id
	WHERE m.category_id = $2 AND m.name ILIKE '%' || $1 || '%'
	ORDER BY m.id`

	upsertMenuItemSQL = `WITH m AS (
		INSERT INTO menu_items (name, category_id, price, quantity, description)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name, category_id) DO UPDATE
		SET price = EXCLUDED.price, quantity = EXCLUDED.quantity,
			description = EXCLUDED.description, updated_at = now()
		RETURNING *
	)
	SELECT ` + menuItemColumns + ` FROM m JOIN categories c ON c.id = m.category_id`

	getCategorySQL    = `SELECT id, name FROM categories WHERE id = $1`
	lockCategorySQL   = `SELECT id, name FROM categories WHERE id = $1 FOR UPDATE`
	listCategoriesSQL = `SELECT id, name FROM categories ORDER BY id`
	createCategorySQL = `INSERT INTO categories (name) VALUES ($1) RETURNING id, name`
	updateCategorySQL = `UPDATE categories SET name = $2 WHERE id = $1`
	upsertCategorySQL = `INSERT INTO categories (name) VALUES ($1)
	ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
	RETURNING id, name`
)

var (
	_ catalog.Repository = (*CatalogRepository)(nil)
	_ catalog.Ledger     = (*CatalogRepository)(nil)
)

// CatalogRepository implements catalog.Repository and catalog.Ledger backed
// by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetMenuItem returns a single menu item.
func (r *CatalogRepository) GetMenuItem(ctx context.Context, id int64) (*catalog.MenuItem, error) {
	item, err := scanMenuItem(r.pool.QueryRow(ctx, getMenuItemSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrMenuItemNotFound
		}
		return nil, wrap(err, "get menu item %d", id)
	}
	return item, nil
}

// ListMenuItems returns every menu item ordered by category and ID.
func (r *CatalogRepository) ListMenuItems(ctx context.Context) ([]catalog.MenuItem, error) {
	return r.queryMenuItems(ctx, listMenuItemsSQL)
}

// SearchMenuItems matches name case-insensitively as a substring within a
// single category.
func (r *CatalogRepository) SearchMenuItems(ctx context.Context, pattern string, categoryID int64) ([]catalog.MenuItem, error) {
	return r.queryMenuItems(ctx, searchMenuItemsSQL, escapeLike(pattern), categoryID)
}

// UpsertMenuItem inserts the item or overwrites price, quantity and
// description of the existing (name, category) pair. Used by seeding only.
func (r *CatalogRepository) UpsertMenuItem(ctx context.Context, item catalog.MenuItem) (*catalog.MenuItem, error) {
	got, err := scanMenuItem(r.pool.QueryRow(ctx, upsertMenuItemSQL,
		item.Name, item.CategoryID, item.Price, item.Quantity, item.Description,
	))
	if err != nil {
		return nil, wrap(err, "upsert menu item %q", item.Name)
	}
	return got, nil
}

func (r *CatalogRepository) queryMenuItems(ctx context.Context, sql string, args ...any) ([]catalog.MenuItem, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrap(err, "query menu items")
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.MenuItem, error) {
		item, err := scanMenuItem(row)
		if err != nil {
			return catalog.MenuItem{}, err
		}
		return *item, nil
	})
	if err != nil {
		return nil, wrap(err, "collect menu items")
	}
	return items, nil
}

// GetCategory returns a single category.
func (r *CatalogRepository) GetCategory(ctx context.Context, id int64) (*catalog.Category, error) {
	c, err := scanCategory(r.pool.QueryRow(ctx, getCategorySQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrCategoryNotFound
		}
		return nil, wrap(err, "get category %d", id)
	}
	return c, nil
}

// ListCategories returns every category ordered by ID.
func (r *CatalogRepository) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, wrap(err, "list categories")
	}
	categories, err := pgx.CollectRows(rows, pgx.RowToStructByPos[catalog.Category])
	if err != nil {
		return nil, wrap(err, "collect categories")
	}
	return categories, nil
}

// CreateCategory inserts a category, failing with catalog.ErrCategoryExists
// when the name is taken.
func (r *CatalogRepository) CreateCategory(ctx context.Context, name string) (*catalog.Category, error) {
	c, err := scanCategory(r.pool.QueryRow(ctx, createCategorySQL, name))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, catalog.ErrCategoryExists
		}
		return nil, wrap(err, "create category %q", name)
	}
	return c, nil
}

// UpsertCategory returns the category named name, creating it if needed.
func (r *CatalogRepository) UpsertCategory(ctx context.Context, name string) (*catalog.Category, error) {
	c, err := scanCategory(r.pool.QueryRow(ctx, upsertCategorySQL, name))
	if err != nil {
		return nil, wrap(err, "upsert category %q", name)
	}
	return c, nil
}

// UpdateCategory locks the category row, applies fn and writes the name back.
func (r *CatalogRepository) UpdateCategory(ctx context.Context, id int64, fn func(c *catalog.Category) error) (*catalog.Category, error) {
	var updated *catalog.Category
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		c, err := scanCategory(tx.QueryRow(ctx, lockCategorySQL, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return catalog.ErrCategoryNotFound
			}
			return wrap(err, "lock category %d", id)
		}
		if err := fn(c); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, updateCategorySQL, id, c.Name); err != nil {
			if isUniqueViolation(err) {
				return catalog.ErrCategoryExists
			}
			return wrap(err, "update category %d", id)
		}
		c.ID = id
		updated = c
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return updated, nil
}

func scanMenuItem(row pgx.Row) (*catalog.MenuItem, error) {
	var m catalog.MenuItem
	if err := row.Scan(
		&m.ID, &m.Name, &m.CategoryID, &m.CategoryName, &m.Price,
		&m.Quantity, &m.Description, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanCategory(row pgx.Row) (*catalog.Category, error) {
	var c catalog.Category
	if err := row.Scan(&c.ID, &c.Name); err != nil {
		return nil, err
	}
	return &c, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes pattern match literally inside a LIKE expression.
func escapeLike(pattern string) string {
	return likeEscaper.Replace(pattern)
}
