// Package handler exposes the cart engine and the storefront services to
// local presentation clients over REST and MCP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"storefront/internal/auth"
	"storefront/internal/cartsync"
	"storefront/internal/checkout"
	"storefront/internal/model"
)

// Cart is the cart engine surface the handlers drive.
type Cart interface {
	Snapshot() cartsync.Snapshot
	AddLine(ctx context.Context, product model.Product, quantity int) error
	RemoveLine(ctx context.Context, ref model.ProductRef)
	SetQuantity(ctx context.Context, ref model.ProductRef, quantity int)
	Clear(ctx context.Context)
	SelectAll()
	SelectNone()
	Toggle(ref model.ProductRef)
	SetSelected(refs []model.ProductRef)
	DrainNotices() []model.Notice
}

// Catalog reads products.
type Catalog interface {
	List(ctx context.Context) ([]model.Product, error)
	ByCategory(ctx context.Context, category string) ([]model.Product, error)
	Get(ctx context.Context, ref model.ProductRef) (model.Product, error)
	BestSellers(ctx context.Context) ([]model.Product, error)
}

// Checkout starts and places orders from the selection.
type Checkout interface {
	Begin(ctx context.Context) (*checkout.Summary, error)
	Place(ctx context.Context, req checkout.Request) (*model.Order, error)
}

// Orders reads and cancels placed orders.
type Orders interface {
	List(ctx context.Context) ([]model.Order, error)
	Get(ctx context.Context, id model.OrderID) (*model.Order, error)
	Cancel(ctx context.Context, id model.OrderID) error
	CancelItem(ctx context.Context, id, itemID model.OrderID) error
}

// Session signs the shopper in and out.
type Session interface {
	SignIn(ctx context.Context, email, password string) (*auth.User, error)
	SignUp(ctx context.Context, req auth.SignUpRequest) (*auth.User, error)
	SignOut()
	IsAuthenticated() bool
	User() *auth.User
}

// Deps are the services behind the handlers.
type Deps struct {
	Cart     Cart
	Catalog  Catalog
	Checkout Checkout
	Orders   Orders
	Session  Session
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	cart     Cart
	catalog  Catalog
	checkout Checkout
	orders   Orders
	session  Session
	logger   *slog.Logger
}

// New creates a new Handler.
func New(deps Deps, logger *slog.Logger) *Handler {
	return &Handler{
		cart:     deps.Cart,
		catalog:  deps.Catalog,
		checkout: deps.Checkout,
		orders:   deps.Orders,
		session:  deps.Session,
		logger:   logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Cart
	mux.HandleFunc("GET /cart", h.handleGetCart)
	mux.HandleFunc("DELETE /cart", h.handleClearCart)
	mux.HandleFunc("POST /cart/items", h.handleAddItem)
	mux.HandleFunc("PUT /cart/items/{id}", h.handleSetQuantity)
	mux.HandleFunc("DELETE /cart/items/{id}", h.handleRemoveItem)
	mux.HandleFunc("PUT /cart/selection", h.handleSetSelection)
	mux.HandleFunc("POST /cart/selection/{id}/toggle", h.handleToggle)

	// Catalog
	mux.HandleFunc("GET /products", h.handleListProducts)
	mux.HandleFunc("GET /products/bestsellers", h.handleBestSellers)
	mux.HandleFunc("GET /products/{id}", h.handleGetProduct)

	// Checkout and orders
	mux.HandleFunc("POST /checkout/begin", h.handleBeginCheckout)
	mux.HandleFunc("POST /checkout", h.handlePlaceOrder)
	mux.HandleFunc("GET /orders", h.handleListOrders)
	mux.HandleFunc("GET /orders/{id}", h.handleGetOrder)
	mux.HandleFunc("POST /orders/{id}/cancel", h.handleCancelOrder)
	mux.HandleFunc("POST /orders/{id}/items/{item}/cancel", h.handleCancelOrderItem)

	// Session
	mux.HandleFunc("GET /session", h.handleGetSession)
	mux.HandleFunc("POST /session/login", h.handleSignIn)
	mux.HandleFunc("POST /session/register", h.handleSignUp)
	mux.HandleFunc("POST /session/logout", h.handleSignOut)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code. Pending
// cart notices ride along in the Storefront-Notices header.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	h.attachNotices(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (h *Handler) attachNotices(w http.ResponseWriter) {
	if h.cart == nil {
		return
	}
	notices := h.cart.DrainNotices()
	if len(notices) == 0 {
		return
	}
	value, err := EncodeNotices(notices)
	if err != nil {
		h.logger.Warn("encoding notices failed", slog.String("error", err.Error()))
		return
	}
	w.Header().Set(NoticesHeader, value)
}

// writeError sends an error response, extracting status/code from APIError if present.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	apiErr := h.toAPIError(err)
	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// toAPIError finds the APIError in err's chain, or wraps err as internal.
func (h *Handler) toAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	h.logger.Error("internal error", slog.String("error", err.Error()))
	return model.NewInternalError(err)
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}
