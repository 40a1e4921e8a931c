package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/venue-orders/internal/domain/order"
)

// PlaceOrder reserves stock and creates an order. The customer is optional.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req order.PlaceOrderRequest
	if err := readBody(w, r, map[string]func(d *jx.Decoder) error{
		"customer_id": strField(&req.CustomerID),
		"lines":       linesField(&req.Lines),
	}); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// ListOrders returns orders filtered by the optional status and customer_id
// query parameters.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orders, err := h.orders.ListOrders(r.Context(), q.Get("status"), q.Get("customer_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range orders {
				encodeOrder(e, &orders[i])
			}
		})
	})
}

// GetOrder returns a single order with its lines.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// UpdateOrderStatus moves an order through its lifecycle.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var status string
	if err := readBody(w, r, map[string]func(d *jx.Decoder) error{
		"status": strField(&status),
	}); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), id, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// ClaimOrder attaches a customer to an order placed without one.
func (h *Handler) ClaimOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var customerID string
	if err := readBody(w, r, map[string]func(d *jx.Decoder) error{
		"customer_id": strField(&customerID),
	}); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.ClaimOrder(r.Context(), id, customerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}
