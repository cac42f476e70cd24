package handler

import (
	"log/slog"
	"net/http"

	"storefront/internal/model"
)

// addItemRequest is the body of POST /cart/items.
type addItemRequest struct {
	ProductID model.ProductRef `json:"product_id"`
	Quantity  int              `json:"quantity"`
}

// setQuantityRequest is the body of PUT /cart/items/{id}.
type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// selectionRequest is the body of PUT /cart/selection. All wins over
// Refs; All=false with no refs clears the selection.
type selectionRequest struct {
	All  *bool              `json:"all,omitempty"`
	Refs []model.ProductRef `json:"refs,omitempty"`
}

// handleGetCart returns the cart snapshot.
// GET /cart
func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.cart.Snapshot())
}

// handleAddItem resolves the product in the catalog and adds it.
// POST /cart/items
func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.addToCart(r, req.ProductID, req.Quantity); err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "item added",
		slog.String("product_id", string(req.ProductID)),
		slog.Int("quantity", req.Quantity),
	)
	h.writeJSON(w, http.StatusOK, h.cart.Snapshot())
}

func (h *Handler) addToCart(r *http.Request, ref model.ProductRef, quantity int) error {
	if ref == "" {
		return model.NewValidationError("product_id", "required")
	}
	product, err := h.catalog.Get(r.Context(), ref)
	if err != nil {
		return err
	}
	return h.cart.AddLine(r.Context(), product, quantity)
}

// handleSetQuantity replaces a line's quantity; zero removes it.
// PUT /cart/items/{id}
func (h *Handler) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.cart.SetQuantity(r.Context(), model.ProductRef(r.PathValue("id")), req.Quantity)
	h.writeJSON(w, http.StatusOK, h.cart.Snapshot())
}

// handleRemoveItem removes a line.
// DELETE /cart/items/{id}
func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	h.cart.RemoveLine(r.Context(), model.ProductRef(r.PathValue("id")))
	h.writeJSON(w, http.StatusOK, h.cart.Snapshot())
}

// handleClearCart empties the cart.
// DELETE /cart
func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	h.cart.Clear(r.Context())
	h.writeJSON(w, http.StatusOK, h.cart.Snapshot())
}

// handleSetSelection replaces the checkout selection.
// PUT /cart/selection
func (h *Handler) handleSetSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.applySelection(req.All, req.Refs)
	h.writeJSON(w, http.StatusOK, h.cart.Snapshot())
}

func (h *Handler) applySelection(all *bool, refs []model.ProductRef) {
	switch {
	case all != nil && *all:
		h.cart.SelectAll()
	case all != nil && len(refs) == 0:
		h.cart.SelectNone()
	default:
		h.cart.SetSelected(refs)
	}
}

// handleToggle flips one line's selection.
// POST /cart/selection/{id}/toggle
func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	h.cart.Toggle(model.ProductRef(r.PathValue("id")))
	h.writeJSON(w, http.StatusOK, h.cart.Snapshot())
}
