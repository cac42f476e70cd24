package cartsync

import (
	"context"
	"fmt"
	"log/slog"

	"storefront/internal/localstore"
	"storefront/internal/model"
)

// =============================================================================
// MUTATIONS
// =============================================================================
//
// Mutations apply to the in-memory cart under the lock and return. The cart
// is then written to the local store, and Account mode also schedules a
// debounced sync. No mutation waits on the network.
//
// =============================================================================

// AddLine adds quantity of product to the cart, accumulating onto an
// existing line. A quantity below 1 adds one. A new line is selected.
func (e *Engine) AddLine(ctx context.Context, product model.Product, quantity int) error {
	if product.ID == "" {
		return model.NewValidationError("product", "missing id")
	}
	if quantity < 1 {
		quantity = 1
	}

	e.mu.Lock()
	var msg string
	if i := model.IndexOf(e.lines, product.ID); i >= 0 {
		e.lines[i].Quantity += quantity
		msg = fmt.Sprintf("Updated %s quantity in cart", displayName(e.lines[i].Product))
	} else {
		e.lines = append(e.lines, model.CartLine{Product: product, Quantity: quantity})
		e.selected[product.ID] = struct{}{}
		msg = fmt.Sprintf("Added %s to cart", displayName(product))
	}
	e.afterMutationLocked(ctx)
	e.mu.Unlock()

	e.notify(model.NoticeSuccess, msg)
	e.scheduleIfAccount()
	return nil
}

// RemoveLine deletes the line for ref. Unknown refs are a silent no-op.
func (e *Engine) RemoveLine(ctx context.Context, ref model.ProductRef) {
	e.mu.Lock()
	i := model.IndexOf(e.lines, ref)
	if i < 0 {
		e.mu.Unlock()
		return
	}
	name := displayName(e.lines[i].Product)
	e.lines = append(e.lines[:i], e.lines[i+1:]...)
	e.afterMutationLocked(ctx)
	e.mu.Unlock()

	e.notify(model.NoticeInfo, fmt.Sprintf("Removed %s from cart", name))
	e.scheduleIfAccount()
}

// SetQuantity replaces the quantity of ref. A quantity of zero or less
// removes the line; unknown refs are a no-op.
func (e *Engine) SetQuantity(ctx context.Context, ref model.ProductRef, quantity int) {
	if quantity <= 0 {
		e.RemoveLine(ctx, ref)
		return
	}

	e.mu.Lock()
	i := model.IndexOf(e.lines, ref)
	if i < 0 || e.lines[i].Quantity == quantity {
		e.mu.Unlock()
		return
	}
	e.lines[i].Quantity = quantity
	e.afterMutationLocked(ctx)
	e.mu.Unlock()

	e.scheduleIfAccount()
}

// Clear empties the cart. The stored cart and the merge and checkout flags
// are deleted before Clear returns.
func (e *Engine) Clear(ctx context.Context) {
	e.mu.Lock()
	e.lines = nil
	e.pruneSelectionLocked()
	e.mu.Unlock()

	e.deleteKeys(ctx, localstore.KeyCart, localstore.KeyCartMerged, localstore.KeyCheckoutComplete)
	e.notify(model.NoticeInfo, "Cart cleared")
	e.scheduleIfAccount()
}

// CompleteOrder removes the ordered lines after an order was placed, stores
// the remaining cart and marks the checkout as just completed, so the next
// bootstrap does not pull the ordered lines back from the server cart.
func (e *Engine) CompleteOrder(ctx context.Context, ordered []model.ProductRef) {
	e.mu.Lock()
	for _, ref := range ordered {
		if i := model.IndexOf(e.lines, ref); i >= 0 {
			e.lines = append(e.lines[:i], e.lines[i+1:]...)
		}
	}
	e.pruneSelectionLocked()
	remaining := model.CloneLines(e.lines)
	e.mu.Unlock()

	if err := e.store.Set(ctx, localstore.KeyCart, remaining); err != nil {
		e.logger.Warn("saving local cart failed", slog.String("error", err.Error()))
	}
	e.setFlag(ctx, localstore.KeyCheckoutComplete)

	e.logger.Info("order lines removed from cart",
		slog.Int("ordered", len(ordered)),
		slog.Int("remaining", len(remaining)),
	)
	e.scheduleIfAccount()
}

func (e *Engine) afterMutationLocked(ctx context.Context) {
	e.pruneSelectionLocked()
	e.persistLocked(ctx)
}

func (e *Engine) scheduleIfAccount() {
	if e.State() == Account {
		e.debouncer.Schedule()
	}
}

func displayName(p model.Product) string {
	if p.Name != "" {
		return p.Name
	}
	return string(p.ID)
}
