package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/venue-orders/internal/domain/apperr"
	"github.com/xenking/venue-orders/internal/domain/catalog"
)

var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.Wrap(apperr.ErrNotFound, "order")
	// ErrNotClaimable is returned when claiming an order that belongs to
	// another customer.
	ErrNotClaimable = errors.Wrap(apperr.ErrNotFound, "no unclaimed order")
)

// Order is a customer order with its lines. Total is derived from the lines
// at placement and never set independently.
type Order struct {
	ID         int64
	CustomerID string
	Status     Status
	Total      decimal.Decimal
	Lines      []Line
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Line is a single menu item in an order. Price is Quantity times the unit
// price captured at placement and does not follow later price changes.
type Line struct {
	ID           int64
	MenuItemID   int64
	MenuItemName string
	Quantity     int
	Price        decimal.Decimal
}

// SetStatus moves the order to next if the state machine allows it.
func (o *Order) SetStatus(next Status) error {
	if err := o.Status.CanTransitionTo(next); err != nil {
		return err
	}
	o.Status = next
	return nil
}

// Claim attaches customerID to an order placed without one. Claiming again
// with the same customer is a no-op.
func (o *Order) Claim(customerID string) error {
	switch o.CustomerID {
	case "":
		o.CustomerID = customerID
		return nil
	case customerID:
		return nil
	default:
		return ErrNotClaimable
	}
}

// Filter narrows ListOrders. Zero fields match everything.
type Filter struct {
	Status     Status
	CustomerID string
}

// Tx is the unit of work a placement runs in. Everything done through a Tx is
// committed together or not at all.
type Tx interface {
	// Reserve has the semantics of catalog.Ledger.Reserve.
	Reserve(ctx context.Context, menuItemID int64, amount int) (*catalog.MenuItem, error)
	// Create persists o and its lines, filling in generated IDs and timestamps.
	Create(ctx context.Context, o *Order) error
}

// Repository defines persistence operations for orders.
type Repository interface {
	// InTx runs fn in a transaction. The transaction commits if fn returns
	// nil and rolls back, releasing every reservation, otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Get(ctx context.Context, id int64) (*Order, error)
	// List returns matching orders with lines, ordered by status rank then ID.
	List(ctx context.Context, f Filter) ([]Order, error)
	// Update loads the order under a row lock, applies fn and persists status
	// and customer. An error from fn aborts the update.
	Update(ctx context.Context, id int64, fn func(o *Order) error) (*Order, error)
}

// MenuItemNotFoundError indicates a requested menu item does not exist.
type MenuItemNotFoundError struct {
	MenuItemID int64
}

func (e *MenuItemNotFoundError) Error() string {
	return fmt.Sprintf("menu item with id %d not found", e.MenuItemID)
}

// Unwrap classifies the error as apperr.ErrNotFound.
func (e *MenuItemNotFoundError) Unwrap() error {
	return apperr.ErrNotFound
}

// InvalidQuantityError indicates a line whose quantity is not in
// [1, catalog.MaxQuantity].
type InvalidQuantityError struct {
	MenuItemID int64
	Quantity   int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be between 1 and %d for menu item %d, got %d",
		catalog.MaxQuantity, e.MenuItemID, e.Quantity)
}

// Unwrap classifies the error as apperr.ErrInvalidInput.
func (e *InvalidQuantityError) Unwrap() error {
	return apperr.ErrInvalidInput
}
