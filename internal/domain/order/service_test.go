package order_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/venue-orders/internal/domain/apperr"
	"github.com/xenking/venue-orders/internal/domain/catalog"
	"github.com/xenking/venue-orders/internal/domain/order"
	"github.com/xenking/venue-orders/internal/storage/memory"
)

// --- Fakes ---

type failingCreateRepo struct {
	order.Repository
	err error
}

func (r failingCreateRepo) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return r.Repository.InTx(ctx, func(ctx context.Context, tx order.Tx) error {
		return fn(ctx, failingCreateTx{Tx: tx, err: r.err})
	})
}

type failingCreateTx struct {
	order.Tx
	err error
}

func (t failingCreateTx) Create(context.Context, *order.Order) error {
	return t.err
}

type recordingRepo struct {
	order.Repository
	reserved *[]int64
}

func (r recordingRepo) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return r.Repository.InTx(ctx, func(ctx context.Context, tx order.Tx) error {
		return fn(ctx, recordingTx{Tx: tx, reserved: r.reserved})
	})
}

type recordingTx struct {
	order.Tx
	reserved *[]int64
}

func (t recordingTx) Reserve(ctx context.Context, menuItemID int64, amount int) (*catalog.MenuItem, error) {
	*t.reserved = append(*t.reserved, menuItemID)
	return t.Tx.Reserve(ctx, menuItemID, amount)
}

// --- Helpers ---

type fixture struct {
	store *memory.Store
	svc   *order.Service
	items map[string]*catalog.MenuItem
}

func newFixture(t *testing.T, opts ...order.Option) *fixture {
	t.Helper()

	store := memory.New()
	c, err := store.CreateCategory(context.Background(), "Mains")
	require.NoError(t, err)

	add := func(name, price string, qty int) *catalog.MenuItem {
		item, err := store.AddMenuItem(catalog.MenuItem{
			Name:       name,
			CategoryID: c.ID,
			Price:      decimal.RequireFromString(price),
			Quantity:   qty,
		})
		require.NoError(t, err)
		return item
	}

	svc, err := order.NewService(store, opts...)
	require.NoError(t, err)

	return &fixture{
		store: store,
		svc:   svc,
		items: map[string]*catalog.MenuItem{
			"A": add("Burger", "3.0", 5),
			"B": add("Fries", "1.25", 5),
		},
	}
}

func (f *fixture) quantity(t *testing.T, key string) int {
	t.Helper()
	item, err := f.store.GetMenuItem(context.Background(), f.items[key].ID)
	require.NoError(t, err)
	return item.Quantity
}

func (f *fixture) place(t *testing.T, customer string, lines ...order.LineRequest) *order.Order {
	t.Helper()
	o, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{CustomerID: customer, Lines: lines})
	require.NoError(t, err)
	return o
}

func (f *fixture) line(key string, qty int) order.LineRequest {
	return order.LineRequest{MenuItemID: f.items[key].ID, Quantity: qty}
}

func (f *fixture) orderCount(t *testing.T) int {
	t.Helper()
	orders, err := f.store.List(context.Background(), order.Filter{})
	require.NoError(t, err)
	return len(orders)
}

// --- Tests ---

func TestNewService_InitialStatus(t *testing.T) {
	store := memory.New()

	_, err := order.NewService(store, order.WithInitialStatus(order.StatusDelivered))
	require.Error(t, err)

	_, err = order.NewService(store, order.WithInitialStatus("WAITING"))
	require.Error(t, err)

	f := newFixture(t, order.WithInitialStatus(order.StatusProcessing))
	o := f.place(t, "", f.line("A", 1))
	assert.Equal(t, order.StatusProcessing, o.Status)
}

func TestPlaceOrder_EmptyLines(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{CustomerID: "c1"})
	require.ErrorIs(t, err, order.ErrEmptyLines)
	require.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestPlaceOrder_InvalidQuantity(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
		Lines: []order.LineRequest{f.line("A", 1), f.line("B", 0)},
	})

	var iqErr *order.InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, f.items["B"].ID, iqErr.MenuItemID)
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	assert.Equal(t, 5, f.quantity(t, "A"))
}

func TestPlaceOrder_QuantityAboveLimit(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
		Lines: []order.LineRequest{f.line("A", catalog.MaxQuantity+1)},
	})

	var iqErr *order.InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, catalog.MaxQuantity+1, iqErr.Quantity)
	assert.Equal(t, 5, f.quantity(t, "A"))
}

func TestPlaceOrder_ReservesInItemOrder(t *testing.T) {
	f := newFixture(t)
	var reserved []int64
	svc, err := order.NewService(recordingRepo{Repository: f.store, reserved: &reserved})
	require.NoError(t, err)

	o, err := svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
		Lines: []order.LineRequest{f.line("B", 1), f.line("A", 2), f.line("B", 1)},
	})
	require.NoError(t, err)

	a, b := f.items["A"].ID, f.items["B"].ID
	require.Less(t, a, b)
	assert.Equal(t, []int64{a, b, b}, reserved)

	require.Len(t, o.Lines, 3)
	assert.Equal(t, b, o.Lines[0].MenuItemID)
	assert.Equal(t, a, o.Lines[1].MenuItemID)
	assert.Equal(t, 2, o.Lines[1].Quantity)
	assert.True(t, decimal.RequireFromString("8.5").Equal(o.Total), "total %s", o.Total)
	assert.Equal(t, 3, f.quantity(t, "B"))
}

func TestPlaceOrder_Success(t *testing.T) {
	f := newFixture(t)

	o := f.place(t, "c1", f.line("A", 3))

	assert.NotZero(t, o.ID)
	assert.Equal(t, "c1", o.CustomerID)
	assert.Equal(t, order.StatusEstablished, o.Status)
	assert.True(t, decimal.RequireFromString("9.0").Equal(o.Total), "total %s", o.Total)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, "Burger", o.Lines[0].MenuItemName)
	assert.Equal(t, 3, o.Lines[0].Quantity)
	assert.Equal(t, 2, f.quantity(t, "A"))

	stored, err := f.svc.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, o.Total.Equal(stored.Total))
	assert.Len(t, stored.Lines, 1)
}

func TestPlaceOrder_TotalIsSumOfLines(t *testing.T) {
	f := newFixture(t)

	o := f.place(t, "", f.line("A", 2), f.line("B", 3))

	sum := decimal.Zero
	for _, l := range o.Lines {
		sum = sum.Add(l.Price)
	}
	assert.True(t, sum.Equal(o.Total))
	assert.True(t, decimal.RequireFromString("9.75").Equal(o.Total), "total %s", o.Total)
	assert.Equal(t, 3, f.quantity(t, "A"))
	assert.Equal(t, 2, f.quantity(t, "B"))
}

func TestPlaceOrder_InsufficientStockLeavesStockUnchanged(t *testing.T) {
	f := newFixture(t)

	f.place(t, "", f.line("A", 3))

	_, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
		Lines: []order.LineRequest{f.line("A", 3)},
	})
	var stockErr *catalog.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Burger", stockErr.Name)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 2, f.quantity(t, "A"))
	assert.Equal(t, 1, f.orderCount(t))
}

func TestPlaceOrder_LaterLineFailureRestoresEarlierReservations(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
		Lines: []order.LineRequest{f.line("A", 2), f.line("B", 1000)},
	})
	var stockErr *catalog.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, f.items["B"].ID, stockErr.MenuItemID)

	assert.Equal(t, 5, f.quantity(t, "A"))
	assert.Equal(t, 5, f.quantity(t, "B"))
	assert.Zero(t, f.orderCount(t))
}

func TestPlaceOrder_DuplicateLinesShareStock(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
		Lines: []order.LineRequest{f.line("A", 3), f.line("A", 3)},
	})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, 5, f.quantity(t, "A"))
}

func TestPlaceOrder_MenuItemNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
		Lines: []order.LineRequest{f.line("A", 1), {MenuItemID: 404, Quantity: 1}},
	})

	var nfErr *order.MenuItemNotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, int64(404), nfErr.MenuItemID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, 5, f.quantity(t, "A"))
	assert.Zero(t, f.orderCount(t))
}

func TestPlaceOrder_CreateErrorRollsBack(t *testing.T) {
	f := newFixture(t)
	svc, err := order.NewService(failingCreateRepo{
		Repository: f.store,
		err:        errors.New("db write failed"),
	})
	require.NoError(t, err)

	_, err = svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
		Lines: []order.LineRequest{f.line("A", 2), f.line("B", 2)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	assert.Equal(t, 5, f.quantity(t, "A"))
	assert.Equal(t, 5, f.quantity(t, "B"))
}

func TestPlaceOrder_ConcurrentNeverOversells(t *testing.T) {
	f := newFixture(t)

	var (
		g         errgroup.Group
		succeeded atomic.Int32
		rejected  atomic.Int32
	)
	for range 2 {
		g.Go(func() error {
			_, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
				Lines: []order.LineRequest{f.line("A", 3)},
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, apperr.ErrInsufficientStock):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(1), rejected.Load())
	assert.Equal(t, 2, f.quantity(t, "A"))
}

func TestPlaceOrder_ConcurrentDrainsExactly(t *testing.T) {
	f := newFixture(t)

	var (
		g         errgroup.Group
		succeeded atomic.Int32
	)
	for range 20 {
		g.Go(func() error {
			_, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
				Lines: []order.LineRequest{f.line("B", 1), f.line("A", 1)},
			})
			if err == nil {
				succeeded.Add(1)
				return nil
			}
			if errors.Is(err, apperr.ErrInsufficientStock) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(5), succeeded.Load())
	assert.Zero(t, f.quantity(t, "A"))
	assert.Zero(t, f.quantity(t, "B"))
	assert.Equal(t, 5, f.orderCount(t))
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.place(t, "", f.line("A", 1))

	tests := []struct {
		in   string
		want order.Status
	}{
		{in: "processing", want: order.StatusProcessing},
		{in: "READY", want: order.StatusReady},
		{in: "ESTABLISHED", want: order.StatusEstablished},
		{in: "Ready", want: order.StatusReady},
	}
	for _, tt := range tests {
		got, err := f.svc.UpdateStatus(ctx, o.ID, tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.Status)
	}
}

func TestUpdateStatus_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.place(t, "", f.line("A", 1))

	_, err := f.svc.UpdateStatus(ctx, o.ID, "COOKING")
	require.ErrorIs(t, err, apperr.ErrInvalidStatus)

	_, err = f.svc.UpdateStatus(ctx, 404, "READY")
	require.ErrorIs(t, err, order.ErrNotFound)

	_, err = f.svc.UpdateStatus(ctx, o.ID, "DELIVERED")
	require.NoError(t, err)

	for _, st := range []string{"ESTABLISHED", "PROCESSING", "READY", "DELIVERED"} {
		_, err = f.svc.UpdateStatus(ctx, o.ID, st)
		require.ErrorIs(t, err, apperr.ErrInvalidStatus, st)
	}

	stored, err := f.svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, stored.Status)
	assert.Equal(t, 4, f.quantity(t, "A"), "status changes never touch inventory")
}

func TestClaimOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	kiosk := f.place(t, "", f.line("A", 1))
	owned := f.place(t, "555-0100", f.line("A", 1))

	got, err := f.svc.ClaimOrder(ctx, kiosk.ID, " 555-0199 ")
	require.NoError(t, err)
	assert.Equal(t, "555-0199", got.CustomerID)

	got, err = f.svc.ClaimOrder(ctx, kiosk.ID, "555-0199")
	require.NoError(t, err)
	assert.Equal(t, "555-0199", got.CustomerID)

	_, err = f.svc.ClaimOrder(ctx, owned.ID, "555-0199")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.ClaimOrder(ctx, 404, "555-0199")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.ClaimOrder(ctx, kiosk.ID, "  ")
	require.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestListOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first := f.place(t, "c1", f.line("A", 1))
	second := f.place(t, "c2", f.line("B", 1))
	third := f.place(t, "c1", f.line("B", 1))

	_, err := f.svc.UpdateStatus(ctx, first.ID, "READY")
	require.NoError(t, err)

	all, err := f.svc.ListOrders(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{second.ID, third.ID, first.ID}, []int64{all[0].ID, all[1].ID, all[2].ID})
	for _, o := range all {
		assert.NotEmpty(t, o.Lines)
	}

	c1, err := f.svc.ListOrders(ctx, "", "c1")
	require.NoError(t, err)
	assert.Len(t, c1, 2)

	c1Ready, err := f.svc.ListOrders(ctx, "ready", "c1")
	require.NoError(t, err)
	require.Len(t, c1Ready, 1)
	assert.Equal(t, first.ID, c1Ready[0].ID)

	_, err = f.svc.ListOrders(ctx, "LOST", "")
	require.ErrorIs(t, err, apperr.ErrInvalidStatus)
}
