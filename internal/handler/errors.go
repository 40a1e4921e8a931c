package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/venue-orders/internal/domain/apperr"
	"github.com/xenking/venue-orders/internal/domain/catalog"
)

var kindStatus = map[apperr.Kind]int{
	apperr.KindNotFound:          http.StatusNotFound,
	apperr.KindDuplicateName:     http.StatusConflict,
	apperr.KindInsufficientStock: http.StatusConflict,
	apperr.KindInvalidStatus:     http.StatusUnprocessableEntity,
	apperr.KindInvalidInput:      http.StatusBadRequest,
	apperr.KindNoOp:              http.StatusConflict,
	apperr.KindUnauthorized:      http.StatusUnauthorized,
	apperr.KindForbidden:         http.StatusForbidden,
	apperr.KindTransient:         http.StatusServiceUnavailable,
}

// statusFor maps an error to its HTTP status code.
func statusFor(err error) (apperr.Kind, int) {
	kind := apperr.KindOf(err)
	if status, ok := kindStatus[kind]; ok {
		return kind, status
	}
	return apperr.KindInternal, http.StatusInternalServerError
}

// writeError writes the structured error body. Internal errors are logged and
// their details hidden from the caller.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind, status := statusFor(err)
	msg := err.Error()

	lg := zctx.From(r.Context())
	switch kind {
	case apperr.KindInternal:
		lg.Error("Request failed", zap.Error(err))
		msg = "internal server error"
	case apperr.KindTransient:
		lg.Warn("Transient storage failure", zap.Error(err))
		w.Header().Set("Retry-After", "1")
	}

	var stockErr *catalog.InsufficientStockError
	hasStock := errors.As(err, &stockErr)

	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("kind", func(e *jx.Encoder) { e.Str(string(kind)) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
			if hasStock {
				e.Field("menu_item_id", func(e *jx.Encoder) { e.Int64(stockErr.MenuItemID) })
				e.Field("requested", func(e *jx.Encoder) { e.Int(stockErr.Requested) })
				e.Field("available", func(e *jx.Encoder) { e.Int(stockErr.Available) })
			}
		})
	})
}
