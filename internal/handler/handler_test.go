package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/venue-orders/internal/domain/apperr"
	"github.com/xenking/venue-orders/internal/domain/auth"
	"github.com/xenking/venue-orders/internal/domain/catalog"
	"github.com/xenking/venue-orders/internal/domain/order"
	"github.com/xenking/venue-orders/internal/storage/memory"
)

const (
	testPepper   = "test-pepper"
	staffKey     = "staff-key"
	customerKey  = "customer-key"
	unknownKey   = "nobody"
	jsonMimeType = "application/json"
)

// Response types decoded with encoding/json to check the wire format
// independently of the encoder.

type errorResponse struct {
	Code       int    `json:"code"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	MenuItemID int64  `json:"menu_item_id"`
	Requested  int    `json:"requested"`
	Available  int    `json:"available"`
}

type menuItemResponse struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	CategoryID int64       `json:"category_id"`
	Category   string      `json:"category"`
	Price      json.Number `json:"price"`
	Quantity   int         `json:"quantity"`
}

type categoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type orderResponse struct {
	ID         int64       `json:"id"`
	CustomerID *string     `json:"customer_id"`
	Status     string      `json:"status"`
	Total      json.Number `json:"total"`
	Lines      []struct {
		MenuItemID   int64       `json:"menu_item_id"`
		MenuItemName string      `json:"menu_item_name"`
		Quantity     int         `json:"quantity"`
		Price        json.Number `json:"price"`
	} `json:"lines"`
}

// --- Helpers ---

type testServer struct {
	store   *memory.Store
	handler http.Handler
	burger  *catalog.MenuItem
	fries   *catalog.MenuItem
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.New()
	c, err := store.CreateCategory(context.Background(), "Mains")
	require.NoError(t, err)
	burger, err := store.AddMenuItem(catalog.MenuItem{
		Name: "Burger", CategoryID: c.ID, Price: decimal.RequireFromString("3.00"), Quantity: 5,
	})
	require.NoError(t, err)
	fries, err := store.AddMenuItem(catalog.MenuItem{
		Name: "Fries", CategoryID: c.ID, Price: decimal.RequireFromString("1.50"), Quantity: 5,
	})
	require.NoError(t, err)

	store.AddAPIKey(auth.APIKeyInfo{
		KeyHash: auth.HashKey([]byte(testPepper), staffKey), Name: "till", Scopes: []string{auth.ScopeStaff},
	})
	store.AddAPIKey(auth.APIKeyInfo{
		KeyHash: auth.HashKey([]byte(testPepper), customerKey), Name: "app", Scopes: []string{"order"},
	})

	orderSvc, err := order.NewService(store)
	require.NoError(t, err)

	h := NewHandler(catalog.NewService(store, store), orderSvc)
	mux := http.NewServeMux()
	h.Register(mux)

	return &testServer{
		store:   store,
		handler: NewSecurityHandler(store, []byte(testPepper)).Middleware(mux),
		burger:  burger,
		fries:   fries,
	}
}

func (s *testServer) do(t *testing.T, method, path, body, key string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", jsonMimeType)
	}
	if key != "" {
		req.Header.Set("api_key", key)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) quantity(t *testing.T, id int64) int {
	t.Helper()
	item, err := s.store.GetMenuItem(context.Background(), id)
	require.NoError(t, err)
	return item.Quantity
}

// --- Tests ---

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{catalog.ErrMenuItemNotFound, http.StatusNotFound},
		{catalog.ErrCategoryExists, http.StatusConflict},
		{&catalog.InsufficientStockError{}, http.StatusConflict},
		{order.ErrTerminalStatus, http.StatusUnprocessableEntity},
		{order.ErrEmptyLines, http.StatusBadRequest},
		{catalog.ErrSameName, http.StatusConflict},
		{ErrInvalidAPIKey, http.StatusUnauthorized},
		{auth.ErrStaffOnly, http.StatusForbidden},
		{errors.Wrap(apperr.ErrTransient, "commit"), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			_, status := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestListMenuItems(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/menu", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, jsonMimeType, rec.Header().Get("Content-Type"))

	items := decode[[]menuItemResponse](t, rec)
	require.Len(t, items, 2)
	assert.Equal(t, "Burger", items[0].Name)
	assert.Equal(t, "Mains", items[0].Category)
	assert.Equal(t, "3.00", items[0].Price.String())
	assert.Equal(t, 5, items[0].Quantity)
}

func TestSearchMenuItems(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/menu/search?name=bur&category_id=1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]menuItemResponse](t, rec)
	require.Len(t, items, 1)
	assert.Equal(t, s.burger.ID, items[0].ID)

	rec = s.do(t, http.MethodGet, "/api/menu/search?name=bur", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/menu/search?category_id=abc&name=bur", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetMenuItem(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/menu/1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Burger", decode[menuItemResponse](t, rec).Name)

	rec = s.do(t, http.MethodGet, "/api/menu/99", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	errResp := decode[errorResponse](t, rec)
	assert.Equal(t, 404, errResp.Code)
	assert.Equal(t, "NotFound", errResp.Kind)

	rec = s.do(t, http.MethodGet, "/api/menu/abc", "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStockAdjustment_RequiresStaff(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPut, "/api/menu/1/restock", `{"quantity":5}`, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/menu/1/restock", `{"quantity":5}`, customerKey)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/menu/1/restock", `{"quantity":5}`, unknownKey)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", decode[errorResponse](t, rec).Kind)

	assert.Equal(t, 5, s.quantity(t, s.burger.ID))
}

func TestStockAdjustment(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPut, "/api/menu/1/restock", `{"quantity":5}`, staffKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, decode[menuItemResponse](t, rec).Quantity)

	rec = s.do(t, http.MethodPut, "/api/menu/1/reduce", `{"quantity":4}`, staffKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 6, decode[menuItemResponse](t, rec).Quantity)

	rec = s.do(t, http.MethodPut, "/api/menu/1/reduce", `{"quantity":7}`, staffKey)
	require.Equal(t, http.StatusConflict, rec.Code)
	errResp := decode[errorResponse](t, rec)
	assert.Equal(t, "InsufficientStock", errResp.Kind)
	assert.Equal(t, 7, errResp.Requested)
	assert.Equal(t, 6, errResp.Available)

	rec = s.do(t, http.MethodPut, "/api/menu/1/restock", `{"quantity":0}`, staffKey)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/menu/1/restock", `{"quantity":"five"}`, staffKey)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidInput", decode[errorResponse](t, rec).Kind)

	rec = s.do(t, http.MethodPut, "/api/menu/1/restock", `{"quantity":9223372036854775807}`, staffKey)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidInput", decode[errorResponse](t, rec).Kind)
	assert.Equal(t, 6, s.quantity(t, s.burger.ID))
}

func TestCategories(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/categories", `{"name":"Drinks"}`, customerKey)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/categories", `{"name":"Drinks"}`, staffKey)
	require.Equal(t, http.StatusCreated, rec.Code)
	drinks := decode[categoryResponse](t, rec)
	assert.Equal(t, "Drinks", drinks.Name)

	rec = s.do(t, http.MethodPost, "/api/categories", `{"name":"Drinks"}`, staffKey)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DuplicateName", decode[errorResponse](t, rec).Kind)

	rec = s.do(t, http.MethodPut, "/api/categories/2", `{"name":"Drinks"}`, staffKey)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NoOp", decode[errorResponse](t, rec).Kind)

	rec = s.do(t, http.MethodPut, "/api/categories/2", `{"name":"Mains"}`, staffKey)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DuplicateName", decode[errorResponse](t, rec).Kind)

	rec = s.do(t, http.MethodPut, "/api/categories/2", `{"name":"Beverages"}`, staffKey)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/categories", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]categoryResponse](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "Beverages", list[1].Name)
}

func TestPlaceOrder(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/orders", `{"lines":[{"menu_item_id":1,"quantity":3}]}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	o := decode[orderResponse](t, rec)
	assert.Nil(t, o.CustomerID)
	assert.Equal(t, "ESTABLISHED", o.Status)
	assert.Equal(t, "9.00", o.Total.String())
	require.Len(t, o.Lines, 1)
	assert.Equal(t, "Burger", o.Lines[0].MenuItemName)
	assert.Equal(t, 2, s.quantity(t, s.burger.ID))

	rec = s.do(t, http.MethodPost, "/api/orders", `{"lines":[{"menu_item_id":1,"quantity":3}]}`, "")
	require.Equal(t, http.StatusConflict, rec.Code)
	errResp := decode[errorResponse](t, rec)
	assert.Equal(t, "InsufficientStock", errResp.Kind)
	assert.Equal(t, s.burger.ID, errResp.MenuItemID)
	assert.Equal(t, 2, s.quantity(t, s.burger.ID))
}

func TestPlaceOrder_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{name: "empty lines", body: `{"lines":[]}`, status: http.StatusBadRequest, kind: "InvalidInput"},
		{name: "no lines", body: `{"customer_id":"c1"}`, status: http.StatusBadRequest, kind: "InvalidInput"},
		{name: "zero quantity", body: `{"lines":[{"menu_item_id":1,"quantity":0}]}`, status: http.StatusBadRequest, kind: "InvalidInput"},
		{name: "quantity above limit", body: `{"lines":[{"menu_item_id":1,"quantity":2147483648}]}`, status: http.StatusBadRequest, kind: "InvalidInput"},
		{name: "unknown item", body: `{"lines":[{"menu_item_id":1,"quantity":1},{"menu_item_id":42,"quantity":1}]}`, status: http.StatusNotFound, kind: "NotFound"},
		{name: "malformed", body: `{"lines":`, status: http.StatusBadRequest, kind: "InvalidInput"},
		{name: "not an object", body: `[1,2]`, status: http.StatusBadRequest, kind: "InvalidInput"},
		{name: "second line short", body: `{"lines":[{"menu_item_id":1,"quantity":2},{"menu_item_id":2,"quantity":1000}]}`, status: http.StatusConflict, kind: "InsufficientStock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/orders", tt.body, "")
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.kind, decode[errorResponse](t, rec).Kind)
		})
	}

	assert.Equal(t, 5, s.quantity(t, s.burger.ID))
	assert.Equal(t, 5, s.quantity(t, s.fries.ID))
}

func TestPlaceOrder_Concurrent(t *testing.T) {
	s := newTestServer(t)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[int]int{}
	)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := s.do(t, http.MethodPost, "/api/orders", `{"lines":[{"menu_item_id":1,"quantity":3}]}`, "")
			mu.Lock()
			codes[rec.Code]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, map[int]int{http.StatusCreated: 1, http.StatusConflict: 1}, codes)
	assert.Equal(t, 2, s.quantity(t, s.burger.ID))
}

func TestOrderLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/orders", `{"customer_id":null,"lines":[{"menu_item_id":2,"quantity":1}]}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[orderResponse](t, rec).ID

	rec = s.do(t, http.MethodPut, "/api/orders/1/status", `{"status":"READY"}`, customerKey)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/orders/1/status", `{"status":"cooking"}`, staffKey)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "InvalidStatus", decode[errorResponse](t, rec).Kind)

	rec = s.do(t, http.MethodPut, "/api/orders/1/status", `{"status":"ready"}`, staffKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "READY", decode[orderResponse](t, rec).Status)

	rec = s.do(t, http.MethodPut, "/api/orders/1/claim", `{"customer_id":"555-0100"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	claimed := decode[orderResponse](t, rec)
	require.NotNil(t, claimed.CustomerID)
	assert.Equal(t, "555-0100", *claimed.CustomerID)

	rec = s.do(t, http.MethodPut, "/api/orders/1/claim", `{"customer_id":"555-0199"}`, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/orders/1/status", `{"status":"DELIVERED"}`, staffKey)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/orders/1/status", `{"status":"PROCESSING"}`, staffKey)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/orders/1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[orderResponse](t, rec)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "DELIVERED", got.Status)

	rec = s.do(t, http.MethodGet, "/api/orders/7", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrders(t *testing.T) {
	s := newTestServer(t)

	for _, body := range []string{
		`{"customer_id":"c1","lines":[{"menu_item_id":1,"quantity":1}]}`,
		`{"customer_id":"c2","lines":[{"menu_item_id":1,"quantity":1}]}`,
		`{"customer_id":"c1","lines":[{"menu_item_id":2,"quantity":2}]}`,
	} {
		rec := s.do(t, http.MethodPost, "/api/orders", body, "")
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := s.do(t, http.MethodPut, "/api/orders/1/status", `{"status":"PROCESSING"}`, staffKey)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/orders", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]orderResponse](t, rec)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{2, 3, 1}, []int64{all[0].ID, all[1].ID, all[2].ID})

	rec = s.do(t, http.MethodGet, "/api/orders?customer_id=c1&status=established", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	filtered := decode[[]orderResponse](t, rec)
	require.Len(t, filtered, 1)
	assert.Equal(t, int64(3), filtered[0].ID)

	rec = s.do(t, http.MethodGet, "/api/orders?status=LOST", "", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSecurityHandler_BearerToken(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/categories", strings.NewReader(`{"name":"Sides"}`))
	req.Header.Set("Authorization", "Bearer "+staffKey)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

type failingKeys struct{}

func (failingKeys) FindByHash(context.Context, string) (*auth.APIKeyInfo, error) {
	return nil, errors.New("connection refused")
}

func TestSecurityHandler_RepositoryError(t *testing.T) {
	sh := NewSecurityHandler(failingKeys{}, []byte(testPepper))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next must not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/menu", nil)
	req.Header.Set("api_key", staffKey)
	rec := httptest.NewRecorder()
	sh.Middleware(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decode[errorResponse](t, rec).Message)
}

type mismatchedKeys struct{}

func (mismatchedKeys) FindByHash(context.Context, string) (*auth.APIKeyInfo, error) {
	return &auth.APIKeyInfo{KeyHash: auth.HashKey([]byte("x"), "y"), Scopes: []string{auth.ScopeStaff}}, nil
}

func TestSecurityHandler_HashMismatch(t *testing.T) {
	sh := NewSecurityHandler(mismatchedKeys{}, []byte(testPepper))

	_, err := sh.Identify(context.Background(), staffKey)
	require.ErrorIs(t, err, ErrInvalidAPIKey)
}
