package handler

import (
	"log/slog"
	"net/http"

	"storefront/internal/auth"
	"storefront/internal/checkout"
	"storefront/internal/model"
)

// === Catalog ===

// handleListProducts lists products, optionally by category.
// GET /products?category=
func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	var (
		products []model.Product
		err      error
	)
	if category := r.URL.Query().Get("category"); category != "" {
		products, err = h.catalog.ByCategory(r.Context(), category)
	} else {
		products, err = h.catalog.List(r.Context())
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, products)
}

// handleBestSellers lists best-selling products.
// GET /products/bestsellers
func (h *Handler) handleBestSellers(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.BestSellers(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, products)
}

// handleGetProduct returns one product.
// GET /products/{id}
func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.Get(r.Context(), model.ProductRef(r.PathValue("id")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, product)
}

// === Checkout and orders ===

// handleBeginCheckout checks selection and sign-in and returns the summary.
// POST /checkout/begin
func (h *Handler) handleBeginCheckout(w http.ResponseWriter, r *http.Request) {
	summary, err := h.checkout.Begin(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// handlePlaceOrder places an order for the selected lines.
// POST /checkout
func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req checkout.Request
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	order, err := h.checkout.Place(ctx, req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", string(order.ID)),
		slog.String("payment_method", string(req.PaymentMethod)),
	)
	h.writeJSON(w, http.StatusCreated, order)
}

// handleListOrders returns the shopper's orders.
// GET /orders
func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, orders)
}

// handleGetOrder returns one order.
// GET /orders/{id}
func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Get(r.Context(), model.OrderID(r.PathValue("id")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

// handleCancelOrder cancels an order.
// POST /orders/{id}/cancel
func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id := model.OrderID(r.PathValue("id"))
	if err := h.orders.Cancel(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, statusResponse{Status: "canceled"})
}

// handleCancelOrderItem cancels one order line.
// POST /orders/{id}/items/{item}/cancel
func (h *Handler) handleCancelOrderItem(w http.ResponseWriter, r *http.Request) {
	id := model.OrderID(r.PathValue("id"))
	item := model.OrderID(r.PathValue("item"))
	if err := h.orders.CancelItem(r.Context(), id, item); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, statusResponse{Status: "canceled"})
}

type statusResponse struct {
	Status string `json:"status"`
}

// === Session ===

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Authenticated bool       `json:"authenticated"`
	User          *auth.User `json:"user,omitempty"`
}

// handleGetSession reports the sign-in state.
// GET /session
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.sessionState())
}

func (h *Handler) sessionState() sessionResponse {
	if !h.session.IsAuthenticated() {
		return sessionResponse{}
	}
	return sessionResponse{Authenticated: true, User: h.session.User()}
}

// handleSignIn signs in with email and password.
// POST /session/login
func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		h.writeError(w, model.NewValidationError("credentials", "email and password are required"))
		return
	}
	if _, err := h.session.SignIn(r.Context(), req.Email, req.Password); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.sessionState())
}

// handleSignUp registers a new account and signs in.
// POST /session/register
func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req auth.SignUpRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		h.writeError(w, model.NewValidationError("credentials", "email and password are required"))
		return
	}
	if _, err := h.session.SignUp(r.Context(), req); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, h.sessionState())
}

// handleSignOut signs out. The guest cart comes back.
// POST /session/logout
func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	h.session.SignOut()
	h.writeJSON(w, http.StatusOK, h.sessionState())
}
