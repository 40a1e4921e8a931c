// Package seed loads a menu document into a catalog store.
package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/venue-orders/db"
	"github.com/xenking/venue-orders/internal/domain/auth"
	"github.com/xenking/venue-orders/internal/domain/catalog"
)

// Menu is the seed document: categories with their items.
type Menu struct {
	Categories []Category `json:"categories"`
}

// Category is a named group of seed items.
type Category struct {
	Name  string `json:"name"`
	Items []Item `json:"items"`
}

// Item is a seed menu item. Quantity is the initial on-hand stock.
type Item struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Description string          `json:"description"`
}

// Catalog receives the seeded categories and items.
type Catalog interface {
	UpsertCategory(ctx context.Context, name string) (*catalog.Category, error)
	UpsertMenuItem(ctx context.Context, item catalog.MenuItem) (*catalog.MenuItem, error)
}

// APIKeys receives seeded API keys.
type APIKeys interface {
	UpsertAPIKey(ctx context.Context, hash, name string, scopes []string) (*auth.APIKeyInfo, error)
}

// Stats counts what Apply wrote.
type Stats struct {
	Categories int
	Items      int
}

// Parse decodes and validates a menu document.
func Parse(r io.Reader) (*Menu, error) {
	var m Menu
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, errors.Wrap(err, "decode menu")
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Default returns the menu embedded in the binary.
func Default() (*Menu, error) {
	return Parse(bytes.NewReader(db.Menu))
}

// ReadFile reads a menu from path. Files ending in .gz are decompressed.
// An empty path yields the embedded default menu.
func ReadFile(path string) (*Menu, error) {
	if path == "" {
		return Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open menu file")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip stream")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}
	return Parse(r)
}

func (m *Menu) validate() error {
	for _, c := range m.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return errors.New("category name is required")
		}
		for _, it := range c.Items {
			switch {
			case strings.TrimSpace(it.Name) == "":
				return errors.Errorf("category %q: item name is required", c.Name)
			case it.Price.IsNegative():
				return errors.Errorf("item %q: negative price %s", it.Name, it.Price)
			case it.Quantity < 0:
				return errors.Errorf("item %q: negative quantity %d", it.Name, it.Quantity)
			}
		}
	}
	return nil
}

// Apply upserts every category and item of m. Existing items keep their IDs
// and get the seeded price, quantity and description.
func Apply(ctx context.Context, lg *zap.Logger, store Catalog, m *Menu) (Stats, error) {
	var stats Stats
	for _, c := range m.Categories {
		category, err := store.UpsertCategory(ctx, c.Name)
		if err != nil {
			return stats, errors.Wrapf(err, "upsert category %q", c.Name)
		}
		stats.Categories++

		for _, it := range c.Items {
			item, err := store.UpsertMenuItem(ctx, catalog.MenuItem{
				Name:        it.Name,
				CategoryID:  category.ID,
				Price:       it.Price,
				Quantity:    it.Quantity,
				Description: it.Description,
			})
			if err != nil {
				return stats, errors.Wrapf(err, "upsert menu item %q", it.Name)
			}
			stats.Items++
			lg.Debug("Upserted menu item",
				zap.Int64("id", item.ID),
				zap.String("name", item.Name),
				zap.String("category", c.Name),
			)
		}
	}
	return stats, nil
}

// StaffKey upserts key as a staff API key hashed with pepper.
func StaffKey(ctx context.Context, keys APIKeys, pepper []byte, name, key string) (*auth.APIKeyInfo, error) {
	if key == "" {
		return nil, errors.New("api key is empty")
	}
	info, err := keys.UpsertAPIKey(ctx, auth.HashKey(pepper, key), name, []string{auth.ScopeStaff})
	if err != nil {
		return nil, errors.Wrap(err, "upsert staff key")
	}
	return info, nil
}
