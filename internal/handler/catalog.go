package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/xenking/venue-orders/internal/domain/catalog"
)

// ListMenuItems returns the whole menu.
func (h *Handler) ListMenuItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.ListMenuItems(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeMenuItems(e, items) })
}

// SearchMenuItems filters the menu by name substring and category. A missing
// or malformed category yields an empty list.
func (h *Handler) SearchMenuItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	categoryID, _ := strconv.ParseInt(q.Get("category_id"), 10, 64)

	items, err := h.catalog.SearchMenuItems(r.Context(), q.Get("name"), categoryID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeMenuItems(e, items) })
}

// GetMenuItem returns a single menu item.
func (h *Handler) GetMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.catalog.GetMenuItem(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeMenuItem(e, item) })
}

// Restock adds quantity to a menu item.
func (h *Handler) Restock(w http.ResponseWriter, r *http.Request) {
	h.adjustStock(w, r, h.catalog.Restock)
}

// Reduce removes quantity from a menu item.
func (h *Handler) Reduce(w http.ResponseWriter, r *http.Request) {
	h.adjustStock(w, r, h.catalog.Reduce)
}

type stockAdjustment func(ctx context.Context, id int64, amount int) (*catalog.MenuItem, error)

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request, adjust stockAdjustment) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var quantity int
	if err := readBody(w, r, map[string]func(d *jx.Decoder) error{
		"quantity": intField(&quantity),
	}); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := adjust(r.Context(), id, quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeMenuItem(e, item) })
}

// ListCategories returns every category.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range categories {
				encodeCategory(e, &categories[i])
			}
		})
	})
}

// AddCategory creates a category.
func (h *Handler) AddCategory(w http.ResponseWriter, r *http.Request) {
	var name string
	if err := readBody(w, r, map[string]func(d *jx.Decoder) error{
		"name": strField(&name),
	}); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.catalog.AddCategory(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCategory(e, c) })
}

// RenameCategory changes a category's name.
func (h *Handler) RenameCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var name string
	if err := readBody(w, r, map[string]func(d *jx.Decoder) error{
		"name": strField(&name),
	}); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.catalog.RenameCategory(r.Context(), id, name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCategory(e, c) })
}
