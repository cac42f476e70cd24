package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront/internal/auth"
	"storefront/internal/cartsync"
	"storefront/internal/checkout"
	"storefront/internal/gateway"
	"storefront/internal/localstore"
	"storefront/internal/model"
)

// guestSignal keeps the engine in guest mode.
type guestSignal struct{}

func (guestSignal) IsAuthenticated() bool                     { return false }
func (guestSignal) ForceSignOut()                             {}
func (guestSignal) Subscribe(func(bool)) (unsubscribe func()) { return func() {} }

// mockCatalog serves a fixed product set.
type mockCatalog struct {
	products map[model.ProductRef]model.Product
	listFunc func(ctx context.Context, category string) ([]model.Product, error)
}

func (m *mockCatalog) List(ctx context.Context) ([]model.Product, error) {
	return m.listFunc(ctx, "")
}

func (m *mockCatalog) ByCategory(ctx context.Context, category string) ([]model.Product, error) {
	return m.listFunc(ctx, category)
}

func (m *mockCatalog) Get(ctx context.Context, ref model.ProductRef) (model.Product, error) {
	p, ok := m.products[ref]
	if !ok {
		return model.Product{}, model.NewNotFoundError("product")
	}
	return p, nil
}

func (m *mockCatalog) BestSellers(ctx context.Context) ([]model.Product, error) {
	return m.listFunc(ctx, "bestsellers")
}

// mockCheckout is a Checkout with func fields.
type mockCheckout struct {
	BeginFunc func(ctx context.Context) (*checkout.Summary, error)
	PlaceFunc func(ctx context.Context, req checkout.Request) (*model.Order, error)
}

func (m *mockCheckout) Begin(ctx context.Context) (*checkout.Summary, error) {
	return m.BeginFunc(ctx)
}

func (m *mockCheckout) Place(ctx context.Context, req checkout.Request) (*model.Order, error) {
	return m.PlaceFunc(ctx, req)
}

// mockOrders is an Orders with func fields.
type mockOrders struct {
	ListFunc       func(ctx context.Context) ([]model.Order, error)
	GetFunc        func(ctx context.Context, id model.OrderID) (*model.Order, error)
	CancelFunc     func(ctx context.Context, id model.OrderID) error
	CancelItemFunc func(ctx context.Context, id, itemID model.OrderID) error
}

func (m *mockOrders) List(ctx context.Context) ([]model.Order, error) { return m.ListFunc(ctx) }

func (m *mockOrders) Get(ctx context.Context, id model.OrderID) (*model.Order, error) {
	return m.GetFunc(ctx, id)
}

func (m *mockOrders) Cancel(ctx context.Context, id model.OrderID) error {
	return m.CancelFunc(ctx, id)
}

func (m *mockOrders) CancelItem(ctx context.Context, id, itemID model.OrderID) error {
	return m.CancelItemFunc(ctx, id, itemID)
}

// mockSession signs in when the password is "secret".
type mockSession struct {
	user *auth.User
}

func (m *mockSession) SignIn(ctx context.Context, email, password string) (*auth.User, error) {
	if password != "secret" {
		return nil, model.NewUnauthorizedError("invalid credentials")
	}
	m.user = &auth.User{ID: "1", Email: email}
	return m.user, nil
}

func (m *mockSession) SignUp(ctx context.Context, req auth.SignUpRequest) (*auth.User, error) {
	m.user = &auth.User{ID: "2", Email: req.Email, FirstName: req.FirstName}
	return m.user, nil
}

func (m *mockSession) SignOut()              { m.user = nil }
func (m *mockSession) IsAuthenticated() bool { return m.user != nil }
func (m *mockSession) User() *auth.User      { return m.user }

type testEnv struct {
	handler  *Handler
	mux      *http.ServeMux
	engine   *cartsync.Engine
	checkout *mockCheckout
	orders   *mockOrders
	session  *mockSession
}

func testHandler(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine := cartsync.New(localstore.NewMemory(), gateway.NewMemory(), guestSignal{}, logger, cartsync.Options{})
	engine.Start(context.Background())
	t.Cleanup(engine.Close)

	catalog := &mockCatalog{
		products: map[model.ProductRef]model.Product{
			"7": {ID: "7", Name: "Teapot", Price: 1250},
			"9": {ID: "9", Name: "Mug", Price: 400},
		},
		listFunc: func(ctx context.Context, category string) ([]model.Product, error) {
			return []model.Product{{ID: "7", Name: "Teapot", Category: category}}, nil
		},
	}

	env := &testEnv{
		engine:   engine,
		checkout: &mockCheckout{},
		orders:   &mockOrders{},
		session:  &mockSession{},
	}
	env.handler = New(Deps{
		Cart:     engine,
		Catalog:  catalog,
		Checkout: env.checkout,
		Orders:   env.orders,
		Session:  env.session,
	}, logger)
	env.mux = http.NewServeMux()
	env.handler.RegisterRoutes(env.mux)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) cartsync.Snapshot {
	t.Helper()
	var snap cartsync.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v\nBody: %s", err, w.Body.String())
	}
	return snap
}

// getErrorCode extracts the error code from an error response body.
func getErrorCode(body []byte) string {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	return resp.Error.Code
}

func TestHandleHealth(t *testing.T) {
	env := testHandler(t)

	for _, path := range []string{"/health", "/healthz"} {
		w := env.do(t, "GET", path, "")
		if w.Code != http.StatusOK {
			t.Errorf("%s: Status = %d, want %d", path, w.Code, http.StatusOK)
		}
		var resp healthResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Status != "ok" {
			t.Errorf("%s: Status = %q, want ok", path, resp.Status)
		}
	}
}

func TestHandleGetCart_Empty(t *testing.T) {
	env := testHandler(t)

	w := env.do(t, "GET", "/cart", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	snap := decodeSnapshot(t, w)
	if snap.State != "Guest" {
		t.Errorf("State = %q, want Guest", snap.State)
	}
	if len(snap.Lines) != 0 {
		t.Errorf("Lines = %v, want empty", snap.Lines)
	}
	if got := w.Header().Get(NoticesHeader); got != "" {
		t.Errorf("%s = %q, want empty", NoticesHeader, got)
	}
}

func TestHandleAddItem(t *testing.T) {
	env := testHandler(t)

	w := env.do(t, "POST", "/cart/items", `{"product_id":"7","quantity":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d\nBody: %s", w.Code, http.StatusOK, w.Body.String())
	}

	snap := decodeSnapshot(t, w)
	if len(snap.Lines) != 1 || snap.Lines[0].Quantity != 2 {
		t.Fatalf("Lines = %+v, want one line of quantity 2", snap.Lines)
	}
	if snap.TotalItems != 2 {
		t.Errorf("TotalItems = %d, want 2", snap.TotalItems)
	}
	if snap.TotalPrice != 2500 {
		t.Errorf("TotalPrice = %d, want 2500", snap.TotalPrice)
	}
	if len(snap.Selected) != 1 || snap.Selected[0] != "7" {
		t.Errorf("Selected = %v, want [7]", snap.Selected)
	}

	notices, err := DecodeNotices(w.Header().Values(NoticesHeader))
	if err != nil {
		t.Fatalf("DecodeNotices: %v", err)
	}
	if len(notices) != 1 || notices[0].Message != "Added Teapot to cart" {
		t.Errorf("notices = %+v, want one 'Added Teapot to cart'", notices)
	}
}

func TestHandleAddItem_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"invalid json", `{`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing product", `{"quantity":1}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown product", `{"product_id":"404"}`, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testHandler(t)
			w := env.do(t, "POST", "/cart/items", tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("Status = %d, want %d\nBody: %s", w.Code, tt.wantCode, w.Body.String())
			}
			if got := getErrorCode(w.Body.Bytes()); got != tt.wantErr {
				t.Errorf("error code = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestHandleSetQuantityAndRemove(t *testing.T) {
	env := testHandler(t)
	env.do(t, "POST", "/cart/items", `{"product_id":"7"}`)
	env.do(t, "POST", "/cart/items", `{"product_id":"9"}`)

	w := env.do(t, "PUT", "/cart/items/7", `{"quantity":5}`)
	snap := decodeSnapshot(t, w)
	if snap.Lines[0].Quantity != 5 {
		t.Errorf("Quantity = %d, want 5", snap.Lines[0].Quantity)
	}

	w = env.do(t, "PUT", "/cart/items/9", `{"quantity":0}`)
	snap = decodeSnapshot(t, w)
	if len(snap.Lines) != 1 {
		t.Fatalf("Lines = %+v, want one line after zero quantity", snap.Lines)
	}

	w = env.do(t, "DELETE", "/cart/items/7", "")
	snap = decodeSnapshot(t, w)
	if len(snap.Lines) != 0 {
		t.Errorf("Lines = %+v, want empty", snap.Lines)
	}
}

func TestHandleSelection(t *testing.T) {
	env := testHandler(t)
	env.do(t, "POST", "/cart/items", `{"product_id":"7"}`)
	env.do(t, "POST", "/cart/items", `{"product_id":"9"}`)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   []model.ProductRef
	}{
		{"select none", "PUT", "/cart/selection", `{"all":false}`, nil},
		{"select refs", "PUT", "/cart/selection", `{"refs":["9","404"]}`, []model.ProductRef{"9"}},
		{"toggle on", "POST", "/cart/selection/7/toggle", "", []model.ProductRef{"7", "9"}},
		{"toggle off", "POST", "/cart/selection/9/toggle", "", []model.ProductRef{"7"}},
		{"select all", "PUT", "/cart/selection", `{"all":true}`, []model.ProductRef{"7", "9"}},
	}

	for _, tt := range tests {
		w := env.do(t, tt.method, tt.path, tt.body)
		snap := decodeSnapshot(t, w)
		if len(snap.Selected) != len(tt.want) {
			t.Errorf("%s: Selected = %v, want %v", tt.name, snap.Selected, tt.want)
			continue
		}
		for i := range tt.want {
			if snap.Selected[i] != tt.want[i] {
				t.Errorf("%s: Selected = %v, want %v", tt.name, snap.Selected, tt.want)
				break
			}
		}
	}
}

func TestHandleClearCart(t *testing.T) {
	env := testHandler(t)
	env.do(t, "POST", "/cart/items", `{"product_id":"7"}`)

	w := env.do(t, "DELETE", "/cart", "")
	snap := decodeSnapshot(t, w)
	if len(snap.Lines) != 0 || len(snap.Selected) != 0 {
		t.Errorf("snapshot = %+v, want empty", snap)
	}

	notices, err := DecodeNotices(w.Header().Values(NoticesHeader))
	if err != nil {
		t.Fatalf("DecodeNotices: %v", err)
	}
	if len(notices) == 0 || notices[len(notices)-1].Message != "Cart cleared" {
		t.Errorf("notices = %+v, want trailing 'Cart cleared'", notices)
	}
}

func TestHandleProducts(t *testing.T) {
	env := testHandler(t)

	tests := []struct {
		path         string
		wantCategory string
	}{
		{"/products", ""},
		{"/products?category=kitchen", "kitchen"},
		{"/products/bestsellers", "bestsellers"},
	}

	for _, tt := range tests {
		w := env.do(t, "GET", tt.path, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: Status = %d, want %d", tt.path, w.Code, http.StatusOK)
		}
		var products []model.Product
		if err := json.Unmarshal(w.Body.Bytes(), &products); err != nil {
			t.Fatalf("%s: decode: %v", tt.path, err)
		}
		if len(products) != 1 || products[0].Category != tt.wantCategory {
			t.Errorf("%s: products = %+v, want category %q", tt.path, products, tt.wantCategory)
		}
	}

	w := env.do(t, "GET", "/products/9", "")
	var p model.Product
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Name != "Mug" {
		t.Errorf("Name = %q, want Mug", p.Name)
	}
}

func TestHandleBeginCheckout(t *testing.T) {
	env := testHandler(t)
	env.checkout.BeginFunc = func(ctx context.Context) (*checkout.Summary, error) {
		return nil, model.NewSignInRequiredError()
	}

	w := env.do(t, "POST", "/checkout/begin", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Status = %d, want %d\nBody: %s", w.Code, http.StatusUnauthorized, w.Body.String())
	}

	env.checkout.BeginFunc = func(ctx context.Context) (*checkout.Summary, error) {
		return &checkout.Summary{Subtotal: 1250}, nil
	}
	w = env.do(t, "POST", "/checkout/begin", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	var summary checkout.Summary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Subtotal != 1250 {
		t.Errorf("Subtotal = %d, want 1250", summary.Subtotal)
	}
}

func TestHandlePlaceOrder(t *testing.T) {
	env := testHandler(t)

	var got checkout.Request
	env.checkout.PlaceFunc = func(ctx context.Context, req checkout.Request) (*model.Order, error) {
		got = req
		return &model.Order{ID: "31", Status: model.OrderPending}, nil
	}

	body, _ := json.Marshal(map[string]any{
		"payment_method": "cod",
		"shipping":       map[string]string{"shipping_first_name": "Ana"},
	})
	req := httptest.NewRequest("POST", "/checkout", bytes.NewReader(body))
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Status = %d, want %d\nBody: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	if got.PaymentMethod != model.PaymentCashOnDelivery {
		t.Errorf("PaymentMethod = %q, want cod", got.PaymentMethod)
	}
	if got.Shipping.FirstName != "Ana" {
		t.Errorf("FirstName = %q, want Ana", got.Shipping.FirstName)
	}
}

func TestHandleOrders(t *testing.T) {
	env := testHandler(t)

	var canceled, canceledItem model.OrderID
	env.orders.ListFunc = func(ctx context.Context) ([]model.Order, error) {
		return []model.Order{{ID: "1"}, {ID: "2"}}, nil
	}
	env.orders.GetFunc = func(ctx context.Context, id model.OrderID) (*model.Order, error) {
		if id != "1" {
			return nil, model.NewNotFoundError("order")
		}
		return &model.Order{ID: id}, nil
	}
	env.orders.CancelFunc = func(ctx context.Context, id model.OrderID) error {
		canceled = id
		return nil
	}
	env.orders.CancelItemFunc = func(ctx context.Context, id, itemID model.OrderID) error {
		canceledItem = itemID
		return nil
	}

	tests := []struct {
		method   string
		path     string
		wantCode int
	}{
		{"GET", "/orders", http.StatusOK},
		{"GET", "/orders/1", http.StatusOK},
		{"GET", "/orders/2", http.StatusNotFound},
		{"POST", "/orders/1/cancel", http.StatusOK},
		{"POST", "/orders/1/items/5/cancel", http.StatusOK},
	}
	for _, tt := range tests {
		w := env.do(t, tt.method, tt.path, "")
		if w.Code != tt.wantCode {
			t.Errorf("%s %s: Status = %d, want %d", tt.method, tt.path, w.Code, tt.wantCode)
		}
	}

	if canceled != "1" {
		t.Errorf("canceled = %q, want 1", canceled)
	}
	if canceledItem != "5" {
		t.Errorf("canceledItem = %q, want 5", canceledItem)
	}
}

func TestHandleSession(t *testing.T) {
	env := testHandler(t)

	w := env.do(t, "POST", "/session/login", `{"email":"a@b.c","password":"nope"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad password: Status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	w = env.do(t, "POST", "/session/login", `{"email":"a@b.c"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing password: Status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = env.do(t, "POST", "/session/login", `{"email":"a@b.c","password":"secret"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	w = env.do(t, "GET", "/session", "")
	var resp sessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Authenticated || resp.User == nil || resp.User.Email != "a@b.c" {
		t.Errorf("session = %+v, want authenticated a@b.c", resp)
	}

	env.do(t, "POST", "/session/logout", "")
	if env.session.IsAuthenticated() {
		t.Error("still authenticated after logout")
	}

	w = env.do(t, "POST", "/session/register", `{"first_name":"Ana","email":"ana@b.c","password":"pw"}`)
	if w.Code != http.StatusCreated {
		t.Errorf("register: Status = %d, want %d", w.Code, http.StatusCreated)
	}
}

func TestErrorResponses(t *testing.T) {
	env := testHandler(t)
	env.orders.ListFunc = func(ctx context.Context) ([]model.Order, error) {
		return nil, io.ErrUnexpectedEOF
	}

	w := env.do(t, "GET", "/orders", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if got := getErrorCode(w.Body.Bytes()); got != "INTERNAL_ERROR" {
		t.Errorf("error code = %q, want INTERNAL_ERROR", got)
	}
	if strings.Contains(w.Body.String(), "unexpected EOF") {
		t.Error("internal error details leaked to client")
	}
}

func TestToAPIError_UnknownErrorIsInternal(t *testing.T) {
	env := testHandler(t)

	apiErr := env.handler.toAPIError(io.ErrUnexpectedEOF)
	if apiErr.Code != "INTERNAL_ERROR" || apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("toAPIError() = %s/%d, want INTERNAL_ERROR/500", apiErr.Code, apiErr.StatusCode)
	}
	if !errors.Is(apiErr, io.ErrUnexpectedEOF) {
		t.Error("toAPIError() dropped the underlying error")
	}

	notFound := model.NewNotFoundError("order")
	if got := env.handler.toAPIError(notFound); got != notFound {
		t.Errorf("toAPIError(APIError) = %v, want the same error", got)
	}
}
