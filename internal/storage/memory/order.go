package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/xenking/venue-orders/internal/domain/catalog"
	"github.com/xenking/venue-orders/internal/domain/order"
)

// tx records compensations for everything done inside InTx so a failed
// transaction can be undone in reverse order. The store lock is held by InTx
// for the lifetime of a tx.
type tx struct {
	s    *Store
	undo []func()
}

func (t *tx) Reserve(_ context.Context, menuItemID int64, amount int) (*catalog.MenuItem, error) {
	item, err := t.s.take(menuItemID, amount)
	if err != nil {
		return nil, err
	}
	t.undo = append(t.undo, func() {
		_, _ = t.s.put(menuItemID, amount)
	})
	return item, nil
}

func (t *tx) Create(_ context.Context, o *order.Order) error {
	s := t.s
	s.lastOrderID++
	now := s.now()
	o.ID = s.lastOrderID
	o.CreatedAt = now
	o.UpdatedAt = now
	for i := range o.Lines {
		s.lastLineID++
		o.Lines[i].ID = s.lastLineID
	}
	s.orders[o.ID] = cloneOrder(*o)

	id := o.ID
	t.undo = append(t.undo, func() {
		delete(s.orders, id)
	})
	return nil
}

// InTx runs fn under the store lock and undoes its effects if fn fails.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{s: s}
	if err := fn(ctx, t); err != nil {
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		return err
	}
	return nil
}

// Get returns an order with its lines.
func (s *Store) Get(_ context.Context, id int64) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

// List returns orders matching f, ordered by status rank then ID.
func (s *Store) List(_ context.Context, f order.Filter) ([]order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	slices.SortFunc(out, func(a, b order.Order) int {
		return cmp.Or(cmp.Compare(a.Status.Rank(), b.Status.Rank()), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// Update applies fn to a copy of the order and stores it if fn succeeds.
func (s *Store) Update(_ context.Context, id int64, fn func(o *order.Order) error) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	o := cloneOrder(stored)
	if err := fn(&o); err != nil {
		return nil, err
	}
	// Only status and customer are mutable.
	stored.Status = o.Status
	stored.CustomerID = o.CustomerID
	stored.UpdatedAt = s.now()
	s.orders[id] = stored

	o = cloneOrder(stored)
	return &o, nil
}

func cloneOrder(o order.Order) order.Order {
	o.Lines = slices.Clone(o.Lines)
	return o
}
