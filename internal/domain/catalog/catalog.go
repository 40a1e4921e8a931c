package catalog

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/venue-orders/internal/domain/apperr"
)

// MaxQuantity bounds both a single stock delta and the on-hand quantity of
// an item. It matches the INTEGER column in postgres.
const MaxQuantity = math.MaxInt32

var (
	// ErrQuantityOverflow is returned when a restock would push the on-hand
	// quantity past MaxQuantity.
	ErrQuantityOverflow = errors.Wrap(apperr.ErrInvalidInput, "quantity would exceed limit")
	// ErrMenuItemNotFound is returned when a requested menu item does not exist.
	ErrMenuItemNotFound = errors.Wrap(apperr.ErrNotFound, "menu item")
	// ErrCategoryNotFound is returned when a requested category does not exist.
	ErrCategoryNotFound = errors.Wrap(apperr.ErrNotFound, "category")
	// ErrCategoryExists is returned when a category name is already taken.
	ErrCategoryExists = errors.Wrap(apperr.ErrDuplicateName, "category name already exists")
	// ErrSameName is returned when a rename would not change the name.
	ErrSameName = errors.Wrap(apperr.ErrNoOp, "new name is the same as the current name")
)

// MenuItem is a sellable item with its on-hand quantity.
type MenuItem struct {
	ID           int64
	Name         string
	CategoryID   int64
	CategoryName string
	Price        decimal.Decimal
	Quantity     int
	Description  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Category groups menu items. Names are unique.
type Category struct {
	ID   int64
	Name string
}

// InsufficientStockError reports a reservation or reduction that the current
// on-hand quantity could not satisfy. The item's quantity is left untouched.
type InsufficientStockError struct {
	MenuItemID int64
	Name       string
	Requested  int
	Available  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough quantity available for %s: requested %d, available %d",
		e.Name, e.Requested, e.Available)
}

// Unwrap classifies the error as apperr.ErrInsufficientStock.
func (e *InsufficientStockError) Unwrap() error {
	return apperr.ErrInsufficientStock
}

// Repository defines read and category operations on the catalog. Quantity is
// never written through Repository; see Ledger.
type Repository interface {
	GetMenuItem(ctx context.Context, id int64) (*MenuItem, error)
	ListMenuItems(ctx context.Context) ([]MenuItem, error)
	// SearchMenuItems matches name case-insensitively as a substring and
	// category exactly.
	SearchMenuItems(ctx context.Context, pattern string, categoryID int64) ([]MenuItem, error)

	GetCategory(ctx context.Context, id int64) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	// CreateCategory returns ErrCategoryExists when the name is taken.
	CreateCategory(ctx context.Context, name string) (*Category, error)
	// UpdateCategory loads the category under a row lock, applies fn and
	// persists the result. An error from fn aborts the update.
	UpdateCategory(ctx context.Context, id int64, fn func(c *Category) error) (*Category, error)
}
