package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/xenking/venue-orders/internal/domain/apperr"
)

// Service exposes catalog reads, category maintenance and manual inventory
// adjustments.
type Service struct {
	repo   Repository
	ledger Ledger
}

// NewService creates a catalog Service.
func NewService(repo Repository, ledger Ledger) *Service {
	return &Service{
		repo:   repo,
		ledger: ledger,
	}
}

// GetMenuItem returns a single menu item.
func (s *Service) GetMenuItem(ctx context.Context, id int64) (*MenuItem, error) {
	return s.repo.GetMenuItem(ctx, id)
}

// ListMenuItems returns every menu item.
func (s *Service) ListMenuItems(ctx context.Context) ([]MenuItem, error) {
	return s.repo.ListMenuItems(ctx)
}

// SearchMenuItems returns items of categoryID whose name contains pattern.
// Both filters are required: a blank pattern or a non-positive category
// yields an empty result.
func (s *Service) SearchMenuItems(ctx context.Context, pattern string, categoryID int64) ([]MenuItem, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || categoryID <= 0 {
		return []MenuItem{}, nil
	}
	return s.repo.SearchMenuItems(ctx, pattern, categoryID)
}

// GetCategory returns a single category.
func (s *Service) GetCategory(ctx context.Context, id int64) (*Category, error) {
	return s.repo.GetCategory(ctx, id)
}

// ListCategories returns every category.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// AddCategory creates a category with a unique name.
func (s *Service) AddCategory(ctx context.Context, name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("category name is required")
	}
	return s.repo.CreateCategory(ctx, name)
}

// RenameCategory changes a category's name. Renaming to the current name
// fails with ErrSameName, to a name held by another category with
// ErrCategoryExists.
func (s *Service) RenameCategory(ctx context.Context, id int64, name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("category name is required")
	}
	return s.repo.UpdateCategory(ctx, id, func(c *Category) error {
		if c.Name == name {
			return ErrSameName
		}
		c.Name = name
		return nil
	})
}

// Restock adds amount units to the item's on-hand quantity.
func (s *Service) Restock(ctx context.Context, id int64, amount int) (*MenuItem, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	return s.ledger.Restock(ctx, id, amount)
}

// Reduce removes amount units from the item's on-hand quantity, failing with
// *InsufficientStockError rather than going negative.
func (s *Service) Reduce(ctx context.Context, id int64, amount int) (*MenuItem, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	return s.ledger.Reduce(ctx, id, amount)
}

func validateAmount(amount int) error {
	if amount <= 0 {
		return apperr.Invalid(fmt.Sprintf("quantity must be greater than 0, got %d", amount))
	}
	if amount > MaxQuantity {
		return apperr.Invalid(fmt.Sprintf("quantity must be at most %d, got %d", MaxQuantity, amount))
	}
	return nil
}
