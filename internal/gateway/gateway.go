// Package gateway is the remote cart: the signed-in shopper's cart as held
// by the storefront backend. All operations require authentication.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/api"
	"storefront/internal/model"
)

// Gateway abstracts the backend cart endpoints.
//
// Each mutation targets one product and is independent of the others, so
// callers may issue mutations for distinct products concurrently.
type Gateway interface {
	// FetchCart returns the server cart. An empty cart is not an error.
	FetchCart(ctx context.Context) ([]model.CartLine, error)

	// MergeCart folds guest lines into the server cart in one call.
	// Quantities of lines already on the server are summed.
	MergeCart(ctx context.Context, lines []model.CartLine) error

	// AddItem adds quantity units of a product (accumulating on the server).
	AddItem(ctx context.Context, ref model.ProductRef, quantity int) error

	// RemoveItem deletes a product's line.
	RemoveItem(ctx context.Context, ref model.ProductRef) error

	// UpdateQuantity sets a product's line quantity.
	UpdateQuantity(ctx context.Context, ref model.ProductRef, quantity int) error

	// ClearCart empties the server cart.
	ClearCart(ctx context.Context) error
}

// Verify implementations at compile time.
var (
	_ Gateway = (*HTTP)(nil)
	_ Gateway = (*Mock)(nil)
	_ Gateway = (*Memory)(nil)
)

// HTTP implements Gateway over the storefront REST API.
type HTTP struct {
	client *api.Client
}

// NewHTTP creates a gateway backed by the request layer.
func NewHTTP(client *api.Client) *HTTP {
	return &HTTP{client: client}
}

type productBody struct {
	ProductID model.ProductRef `json:"product_id"`
	Quantity  int              `json:"quantity,omitempty"`
}

// FetchCart implements Gateway.
func (g *HTTP) FetchCart(ctx context.Context) ([]model.CartLine, error) {
	var items []model.RemoteCartItem
	if err := g.client.Get(ctx, "orders/cart/", &items); err != nil {
		return nil, fmt.Errorf("fetching cart: %w", err)
	}
	lines := make([]model.CartLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, model.CartLine{Product: it.Product, Quantity: it.Quantity})
	}
	return model.Normalize(lines), nil
}

// MergeCart implements Gateway. A rejection of the payload is reported as
// a merge conflict; auth and network failures keep their own class.
func (g *HTTP) MergeCart(ctx context.Context, lines []model.CartLine) error {
	items := make([]model.MergeItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, model.MergeItem{
			Product:  model.Product{ID: l.Product.ID, Name: l.Product.Name, Price: l.Product.Price},
			Quantity: l.Quantity,
		})
	}

	err := g.client.Post(ctx, "orders/cart/merge/", map[string]any{"items": items}, nil)
	switch {
	case err == nil:
		return nil
	case model.IsAuthorization(err), model.IsTransient(err), api.IsCanceled(err):
		return fmt.Errorf("merging cart: %w", err)
	case errors.Is(err, model.ErrInvalidRequest), errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrUpstreamError):
		return model.NewMergeConflictError(err)
	default:
		return fmt.Errorf("merging cart: %w", err)
	}
}

// AddItem implements Gateway.
func (g *HTTP) AddItem(ctx context.Context, ref model.ProductRef, quantity int) error {
	if err := g.client.Post(ctx, "orders/cart/add/", productBody{ProductID: ref, Quantity: quantity}, nil); err != nil {
		return fmt.Errorf("adding %s: %w", ref, err)
	}
	return nil
}

// RemoveItem implements Gateway.
func (g *HTTP) RemoveItem(ctx context.Context, ref model.ProductRef) error {
	if err := g.client.Post(ctx, "orders/cart/remove/", productBody{ProductID: ref}, nil); err != nil {
		return fmt.Errorf("removing %s: %w", ref, err)
	}
	return nil
}

// UpdateQuantity implements Gateway.
func (g *HTTP) UpdateQuantity(ctx context.Context, ref model.ProductRef, quantity int) error {
	if err := g.client.Post(ctx, "orders/cart/update-quantity/", productBody{ProductID: ref, Quantity: quantity}, nil); err != nil {
		return fmt.Errorf("updating %s: %w", ref, err)
	}
	return nil
}

// ClearCart implements Gateway.
func (g *HTTP) ClearCart(ctx context.Context) error {
	if err := g.client.Post(ctx, "orders/cart/clear/", nil, nil); err != nil {
		return fmt.Errorf("clearing cart: %w", err)
	}
	return nil
}
