package handler

import (
	"net/http"
	"strconv"

	"github.com/xenking/venue-orders/internal/domain/apperr"
	"github.com/xenking/venue-orders/internal/domain/auth"
	"github.com/xenking/venue-orders/internal/domain/catalog"
	"github.com/xenking/venue-orders/internal/domain/order"
)

// Handler serves the JSON API, delegating business logic to the catalog and
// order services.
type Handler struct {
	catalog *catalog.Service
	orders  *order.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(catalogService *catalog.Service, orderService *order.Service) *Handler {
	return &Handler{
		catalog: catalogService,
		orders:  orderService,
	}
}

// Register adds the API routes to mux under /api.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/menu", h.ListMenuItems)
	mux.HandleFunc("GET /api/menu/search", h.SearchMenuItems)
	mux.HandleFunc("GET /api/menu/{id}", h.GetMenuItem)
	mux.HandleFunc("PUT /api/menu/{id}/restock", staffOnly(h.Restock))
	mux.HandleFunc("PUT /api/menu/{id}/reduce", staffOnly(h.Reduce))

	mux.HandleFunc("GET /api/categories", h.ListCategories)
	mux.HandleFunc("POST /api/categories", staffOnly(h.AddCategory))
	mux.HandleFunc("PUT /api/categories/{id}", staffOnly(h.RenameCategory))

	mux.HandleFunc("POST /api/orders", h.PlaceOrder)
	mux.HandleFunc("GET /api/orders", h.ListOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
	mux.HandleFunc("PUT /api/orders/{id}/status", staffOnly(h.UpdateOrderStatus))
	mux.HandleFunc("PUT /api/orders/{id}/claim", h.ClaimOrder)
}

// staffOnly rejects callers without the staff capability.
func staffOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := auth.RequireStaff(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r)
	}
}

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("invalid id " + strconv.Quote(raw))
	}
	return id, nil
}
