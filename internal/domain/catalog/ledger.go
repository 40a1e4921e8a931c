package catalog

import "context"

// Ledger serializes quantity mutations on menu items. Every method is a
// single guarded delta, atomic with respect to concurrent callers on the same
// item; implementations must not read the quantity and write it back.
type Ledger interface {
	// Reserve decrements quantity by amount if at least amount is on hand and
	// returns the item as of the reservation. Otherwise it returns
	// *InsufficientStockError or ErrMenuItemNotFound and changes nothing.
	Reserve(ctx context.Context, id int64, amount int) (*MenuItem, error)
	// Release increments quantity by amount to compensate a reservation
	// made outside a transaction. Order placement does not use it: a failed
	// placement rolls its reservations back with the transaction.
	Release(ctx context.Context, id int64, amount int) error
	// Reduce has the guard of Reserve and records a manual stock-out.
	Reduce(ctx context.Context, id int64, amount int) (*MenuItem, error)
	// Restock increments quantity by amount. It fails with
	// ErrQuantityOverflow rather than exceed MaxQuantity.
	Restock(ctx context.Context, id int64, amount int) (*MenuItem, error)
}
