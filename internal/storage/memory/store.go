// Package memory implements the storage contracts in process memory.
//
// A single store-wide lock serializes every mutation, and an order placement
// holds it for the whole transaction, so the store behaves as if every
// transaction were serializable. It backs unit and handler tests and can run
// the server without a database.
package memory

import (
	"sync"
	"time"

	"github.com/xenking/venue-orders/internal/domain/auth"
	"github.com/xenking/venue-orders/internal/domain/catalog"
	"github.com/xenking/venue-orders/internal/domain/order"
)

var (
	_ catalog.Repository = (*Store)(nil)
	_ catalog.Ledger     = (*Store)(nil)
	_ order.Repository   = (*Store)(nil)
	_ auth.Repository    = (*Store)(nil)
)

// Store is an in-memory catalog, ledger, order and API key store.
type Store struct {
	mu sync.RWMutex

	categories map[int64]catalog.Category
	items      map[int64]catalog.MenuItem
	orders     map[int64]order.Order
	keys       map[string]auth.APIKeyInfo

	lastCategoryID int64
	lastItemID     int64
	lastOrderID    int64
	lastLineID     int64
	lastKeyID      int64

	now func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		categories: make(map[int64]catalog.Category),
		items:      make(map[int64]catalog.MenuItem),
		orders:     make(map[int64]order.Order),
		keys:       make(map[string]auth.APIKeyInfo),
		now:        func() time.Time { return time.Now().UTC() },
	}
}
