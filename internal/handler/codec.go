package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/venue-orders/internal/domain/apperr"
	"github.com/xenking/venue-orders/internal/domain/catalog"
	"github.com/xenking/venue-orders/internal/domain/order"
)

const maxBodySize = 1 << 20

// writeJSON encodes the response with fn and writes it with status.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	fn(e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// readBody decodes a JSON object from the request body, dispatching each
// field to the matching callback. Unknown fields are skipped.
func readBody(w http.ResponseWriter, r *http.Request, fields map[string]func(d *jx.Decoder) error) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return errors.Wrap(apperr.ErrInvalidInput, "read body: "+err.Error())
	}
	if err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		fn, ok := fields[key]
		if !ok {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		return fn(d)
	}); err != nil {
		return errors.Wrap(apperr.ErrInvalidInput, "decode body: "+err.Error())
	}
	return nil
}

func strField(dst *string) func(d *jx.Decoder) error {
	return func(d *jx.Decoder) (err error) {
		*dst, err = d.Str()
		return err
	}
}

func intField(dst *int) func(d *jx.Decoder) error {
	return func(d *jx.Decoder) (err error) {
		*dst, err = d.Int()
		return err
	}
}

func int64Field(dst *int64) func(d *jx.Decoder) error {
	return func(d *jx.Decoder) (err error) {
		*dst, err = d.Int64()
		return err
	}
}

func linesField(dst *[]order.LineRequest) func(d *jx.Decoder) error {
	return func(d *jx.Decoder) error {
		return d.Arr(func(d *jx.Decoder) error {
			var l order.LineRequest
			fields := map[string]func(d *jx.Decoder) error{
				"menu_item_id": int64Field(&l.MenuItemID),
				"quantity":     intField(&l.Quantity),
			}
			if err := d.Obj(func(d *jx.Decoder, key string) error {
				fn, ok := fields[key]
				if !ok {
					return d.Skip()
				}
				return fn(d)
			}); err != nil {
				return err
			}
			*dst = append(*dst, l)
			return nil
		})
	}
}

func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Raw([]byte(d.StringFixed(2)))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeMenuItem(e *jx.Encoder, m *catalog.MenuItem) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(m.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(m.Name) })
		e.Field("category_id", func(e *jx.Encoder) { e.Int64(m.CategoryID) })
		e.Field("category", func(e *jx.Encoder) { e.Str(m.CategoryName) })
		e.Field("price", func(e *jx.Encoder) { encodeMoney(e, m.Price) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(m.Quantity) })
		e.Field("description", func(e *jx.Encoder) { e.Str(m.Description) })
		e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, m.CreatedAt) })
		e.Field("updated_at", func(e *jx.Encoder) { encodeTime(e, m.UpdatedAt) })
	})
}

func encodeMenuItems(e *jx.Encoder, items []catalog.MenuItem) {
	e.Arr(func(e *jx.Encoder) {
		for i := range items {
			encodeMenuItem(e, &items[i])
		}
	})
}

func encodeCategory(e *jx.Encoder, c *catalog.Category) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
		e.Field("customer_id", func(e *jx.Encoder) {
			if o.CustomerID == "" {
				e.Null()
				return
			}
			e.Str(o.CustomerID)
		})
		e.Field("status", func(e *jx.Encoder) { e.Str(o.Status.String()) })
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, o.Total) })
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range o.Lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Int64(l.ID) })
						e.Field("menu_item_id", func(e *jx.Encoder) { e.Int64(l.MenuItemID) })
						e.Field("menu_item_name", func(e *jx.Encoder) { e.Str(l.MenuItemName) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
						e.Field("price", func(e *jx.Encoder) { encodeMoney(e, l.Price) })
					})
				}
			})
		})
		e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
		e.Field("updated_at", func(e *jx.Encoder) { encodeTime(e, o.UpdatedAt) })
	})
}
