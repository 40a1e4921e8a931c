package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/venue-orders/internal/domain/apperr"
	"github.com/xenking/venue-orders/internal/domain/catalog"
)

// ErrDuplicateMenuItem is returned by AddMenuItem when the (name, category)
// pair is taken.
var ErrDuplicateMenuItem = errors.Wrap(apperr.ErrDuplicateName, "menu item already exists in category")

// AddMenuItem inserts a menu item into an existing category. It is the
// in-memory stand-in for the menu CRUD collaborator.
func (s *Store) AddMenuItem(item catalog.MenuItem) (*catalog.MenuItem, error) {
	if item.Quantity < 0 || item.Price.IsNegative() {
		return nil, apperr.Invalid("quantity and price must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[item.CategoryID]; !ok {
		return nil, catalog.ErrCategoryNotFound
	}
	for _, existing := range s.items {
		if existing.CategoryID == item.CategoryID && existing.Name == item.Name {
			return nil, ErrDuplicateMenuItem
		}
	}

	s.lastItemID++
	now := s.now()
	item.ID = s.lastItemID
	item.CreatedAt = now
	item.UpdatedAt = now
	s.items[item.ID] = item
	return s.menuItem(item), nil
}

// UpsertMenuItem inserts the item or overwrites price, quantity and
// description of the existing (name, category) pair.
func (s *Store) UpsertMenuItem(_ context.Context, item catalog.MenuItem) (*catalog.MenuItem, error) {
	if item.Quantity < 0 || item.Price.IsNegative() {
		return nil, apperr.Invalid("quantity and price must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[item.CategoryID]; !ok {
		return nil, catalog.ErrCategoryNotFound
	}
	now := s.now()
	for id, existing := range s.items {
		if existing.CategoryID != item.CategoryID || existing.Name != item.Name {
			continue
		}
		existing.Price = item.Price
		existing.Quantity = item.Quantity
		existing.Description = item.Description
		existing.UpdatedAt = now
		s.items[id] = existing
		return s.menuItem(existing), nil
	}

	s.lastItemID++
	item.ID = s.lastItemID
	item.CreatedAt = now
	item.UpdatedAt = now
	s.items[item.ID] = item
	return s.menuItem(item), nil
}

// GetMenuItem returns a menu item by ID.
func (s *Store) GetMenuItem(_ context.Context, id int64) (*catalog.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, catalog.ErrMenuItemNotFound
	}
	return s.menuItem(item), nil
}

// ListMenuItems returns every menu item ordered by category and ID.
func (s *Store) ListMenuItems(_ context.Context) ([]catalog.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collectItems(func(catalog.MenuItem) bool { return true }), nil
}

// SearchMenuItems returns items of categoryID whose name contains pattern,
// ignoring case.
func (s *Store) SearchMenuItems(_ context.Context, pattern string, categoryID int64) ([]catalog.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pattern = strings.ToLower(pattern)
	return s.collectItems(func(item catalog.MenuItem) bool {
		return item.CategoryID == categoryID && strings.Contains(strings.ToLower(item.Name), pattern)
	}), nil
}

// GetCategory returns a category by ID.
func (s *Store) GetCategory(_ context.Context, id int64) (*catalog.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, catalog.ErrCategoryNotFound
	}
	return &c, nil
}

// ListCategories returns every category ordered by ID.
func (s *Store) ListCategories(_ context.Context) ([]catalog.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]catalog.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b catalog.Category) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// CreateCategory inserts a category with a unique name.
func (s *Store) CreateCategory(_ context.Context, name string) (*catalog.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.categoryNameTaken(name, 0) {
		return nil, catalog.ErrCategoryExists
	}
	s.lastCategoryID++
	c := catalog.Category{ID: s.lastCategoryID, Name: name}
	s.categories[c.ID] = c
	return &c, nil
}

// UpsertCategory returns the category named name, creating it if needed.
func (s *Store) UpsertCategory(_ context.Context, name string) (*catalog.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.categories {
		if c.Name == name {
			return &c, nil
		}
	}
	s.lastCategoryID++
	c := catalog.Category{ID: s.lastCategoryID, Name: name}
	s.categories[c.ID] = c
	return &c, nil
}

// UpdateCategory applies fn to the category and stores the result.
func (s *Store) UpdateCategory(_ context.Context, id int64, fn func(c *catalog.Category) error) (*catalog.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, catalog.ErrCategoryNotFound
	}
	if err := fn(&c); err != nil {
		return nil, err
	}
	if s.categoryNameTaken(c.Name, id) {
		return nil, catalog.ErrCategoryExists
	}
	c.ID = id
	s.categories[id] = c
	return &c, nil
}

func (s *Store) categoryNameTaken(name string, except int64) bool {
	for id, c := range s.categories {
		if id != except && c.Name == name {
			return true
		}
	}
	return false
}

// collectItems must be called with s.mu held.
func (s *Store) collectItems(match func(catalog.MenuItem) bool) []catalog.MenuItem {
	out := make([]catalog.MenuItem, 0, len(s.items))
	for _, item := range s.items {
		if match(item) {
			out = append(out, *s.menuItem(item))
		}
	}
	slices.SortFunc(out, func(a, b catalog.MenuItem) int {
		return cmp.Or(cmp.Compare(a.CategoryID, b.CategoryID), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// menuItem returns a copy of item with its category name resolved. It must
// be called with s.mu held.
func (s *Store) menuItem(item catalog.MenuItem) *catalog.MenuItem {
	item.CategoryName = s.categories[item.CategoryID].Name
	return &item
}
