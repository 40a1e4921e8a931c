package memory

import (
	"context"

	"github.com/xenking/venue-orders/internal/domain/catalog"
)

// Reserve decrements the item's quantity if enough is on hand.
func (s *Store) Reserve(_ context.Context, id int64, amount int) (*catalog.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.take(id, amount)
}

// Release returns amount units to the item.
func (s *Store) Release(_ context.Context, id int64, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.put(id, amount)
	return err
}

// Reduce removes amount units from the item if enough is on hand.
func (s *Store) Reduce(_ context.Context, id int64, amount int) (*catalog.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.take(id, amount)
}

// Restock adds amount units to the item.
func (s *Store) Restock(_ context.Context, id int64, amount int) (*catalog.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(id, amount)
}

// take is the guarded decrement. It must be called with s.mu held.
func (s *Store) take(id int64, amount int) (*catalog.MenuItem, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, catalog.ErrMenuItemNotFound
	}
	if item.Quantity < amount {
		return nil, &catalog.InsufficientStockError{
			MenuItemID: id,
			Name:       item.Name,
			Requested:  amount,
			Available:  item.Quantity,
		}
	}
	item.Quantity -= amount
	item.UpdatedAt = s.now()
	s.items[id] = item
	return s.menuItem(item), nil
}

// put must be called with s.mu held.
func (s *Store) put(id int64, amount int) (*catalog.MenuItem, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, catalog.ErrMenuItemNotFound
	}
	if amount < 0 || amount > catalog.MaxQuantity-item.Quantity {
		return nil, catalog.ErrQuantityOverflow
	}
	item.Quantity += amount
	item.UpdatedAt = s.now()
	s.items[id] = item
	return s.menuItem(item), nil
}
