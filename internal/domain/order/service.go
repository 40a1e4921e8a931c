package order

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/venue-orders/internal/domain/apperr"
	"github.com/xenking/venue-orders/internal/domain/catalog"
)

// ErrEmptyLines is returned when an order is placed without lines.
var ErrEmptyLines = errors.Wrap(apperr.ErrInvalidInput, "lines required")

const instrumentationName = "github.com/xenking/venue-orders/internal/domain/order"

// LineRequest is one requested (menu item, quantity) pair.
type LineRequest struct {
	MenuItemID int64
	Quantity   int
}

// PlaceOrderRequest holds the input for placing an order. CustomerID may be
// empty; such orders can be claimed later.
type PlaceOrderRequest struct {
	CustomerID string
	Lines      []LineRequest
}

// Option configures a Service.
type Option func(*Service)

// WithInitialStatus sets the status new orders are created in.
func WithInitialStatus(s Status) Option {
	return func(svc *Service) {
		svc.initial = s
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(svc *Service) {
		svc.tracer = tp.Tracer(instrumentationName)
	}
}

// WithMeterProvider sets the meter provider. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(svc *Service) {
		svc.meter = mp.Meter(instrumentationName)
	}
}

// Service is the fulfillment engine: it places orders against the inventory
// ledger and drives the status lifecycle.
type Service struct {
	orders  Repository
	initial Status

	tracer   trace.Tracer
	meter    metric.Meter
	placed   metric.Int64Counter
	rejected metric.Int64Counter
}

// NewService creates an order Service. The initial status must be one of the
// non-terminal statuses.
func NewService(orders Repository, opts ...Option) (*Service, error) {
	s := &Service{
		orders:  orders,
		initial: StatusEstablished,
		tracer:  otel.GetTracerProvider().Tracer(instrumentationName),
		meter:   otel.GetMeterProvider().Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.initial.Valid() || s.initial.Terminal() {
		return nil, errors.Errorf("invalid initial status %q", s.initial)
	}

	var err error
	if s.placed, err = s.meter.Int64Counter("venue.orders.placed",
		metric.WithDescription("Orders placed successfully"),
	); err != nil {
		return nil, errors.Wrap(err, "orders placed counter")
	}
	if s.rejected, err = s.meter.Int64Counter("venue.orders.rejected",
		metric.WithDescription("Order placements rejected, by reason"),
	); err != nil {
		return nil, errors.Wrap(err, "orders rejected counter")
	}
	return s, nil
}

// PlaceOrder reserves stock for every line and persists the order in one
// transaction. Either the order and all its reservations are committed, or
// nothing is.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder",
		trace.WithAttributes(attribute.Int("order.lines", len(req.Lines))),
	)
	defer func() {
		if rerr != nil {
			s.rejected.Add(ctx, 1, metric.WithAttributes(
				attribute.String("reason", string(apperr.KindOf(rerr))),
			))
		}
		endSpan(span, rerr)
	}()

	if len(req.Lines) == 0 {
		return nil, ErrEmptyLines
	}
	for _, l := range req.Lines {
		if l.Quantity <= 0 || l.Quantity > catalog.MaxQuantity {
			return nil, &InvalidQuantityError{MenuItemID: l.MenuItemID, Quantity: l.Quantity}
		}
	}

	// Rows are locked in ascending item order so that concurrent orders
	// naming the same items in different orders cannot deadlock.
	reserveOrder := make([]int, len(req.Lines))
	for i := range reserveOrder {
		reserveOrder[i] = i
	}
	slices.SortStableFunc(reserveOrder, func(a, b int) int {
		return cmp.Compare(req.Lines[a].MenuItemID, req.Lines[b].MenuItemID)
	})

	var placed *Order
	if err := s.orders.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o := &Order{
			CustomerID: strings.TrimSpace(req.CustomerID),
			Status:     s.initial,
			Total:      decimal.Zero,
			Lines:      make([]Line, len(req.Lines)),
		}
		for _, i := range reserveOrder {
			l := req.Lines[i]
			item, err := tx.Reserve(ctx, l.MenuItemID, l.Quantity)
			if err != nil {
				if errors.Is(err, catalog.ErrMenuItemNotFound) {
					return &MenuItemNotFoundError{MenuItemID: l.MenuItemID}
				}
				return errors.Wrapf(err, "reserve menu item %d", l.MenuItemID)
			}

			o.Lines[i] = Line{
				MenuItemID:   item.ID,
				MenuItemName: item.Name,
				Quantity:     l.Quantity,
				Price:        item.Price.Mul(decimal.NewFromInt(int64(l.Quantity))),
			}
		}
		for _, l := range o.Lines {
			o.Total = o.Total.Add(l.Price)
		}

		if err := tx.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		placed = o
		return nil
	}); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int64("order.id", placed.ID))
	s.placed.Add(ctx, 1)
	return placed, nil
}

// UpdateStatus sets the order's status. It never touches inventory.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status string) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateStatus",
		trace.WithAttributes(
			attribute.Int64("order.id", id),
			attribute.String("order.status", status),
		),
	)
	defer func() { endSpan(span, rerr) }()

	next, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return s.orders.Update(ctx, id, func(o *Order) error {
		return o.SetStatus(next)
	})
}

// ClaimOrder attaches customerID to an order placed without one.
func (s *Service) ClaimOrder(ctx context.Context, id int64, customerID string) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.ClaimOrder",
		trace.WithAttributes(attribute.Int64("order.id", id)),
	)
	defer func() { endSpan(span, rerr) }()

	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, apperr.Invalid("customer_id is required")
	}
	o, err := s.orders.Update(ctx, id, func(o *Order) error {
		return o.Claim(customerID)
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotClaimable
	}
	return o, err
}

// GetOrder returns a single order with its lines.
func (s *Service) GetOrder(ctx context.Context, id int64) (*Order, error) {
	return s.orders.Get(ctx, id)
}

// ListOrders returns orders matching every set filter. status may be empty.
func (s *Service) ListOrders(ctx context.Context, status, customerID string) ([]Order, error) {
	var f Filter
	if strings.TrimSpace(status) != "" {
		st, err := ParseStatus(status)
		if err != nil {
			return nil, err
		}
		f.Status = st
	}
	f.CustomerID = strings.TrimSpace(customerID)
	return s.orders.List(ctx, f)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
