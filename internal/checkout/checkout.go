// Package checkout turns the selected cart lines into an order.
//
// Begin is the gate in front of the checkout form: it requires a selection
// and a signed-in shopper, trying a silent token refresh first. Place
// submits the order and hands the ordered refs back to the cart engine.
package checkout

import (
	"context"
	"log/slog"

	"storefront/internal/model"
)

// Cart is the part of the cart engine checkout reads and updates.
type Cart interface {
	SelectedLines() []model.CartLine
	CompleteOrder(ctx context.Context, ordered []model.ProductRef)
}

// Auth reports the sign-in state and can revive an expired access token.
type Auth interface {
	IsAuthenticated() bool
	AttemptSilentRefresh(ctx context.Context) error
}

// OrderPlacer creates orders on the backend.
type OrderPlacer interface {
	Create(ctx context.Context, req model.OrderCreate) (*model.Order, error)
}

// Initiator runs checkout for one shopper.
type Initiator struct {
	cart   Cart
	auth   Auth
	orders OrderPlacer
	logger *slog.Logger
}

// New creates an Initiator.
func New(cart Cart, auth Auth, orders OrderPlacer, logger *slog.Logger) *Initiator {
	return &Initiator{cart: cart, auth: auth, orders: orders, logger: logger}
}

// Summary is what the checkout form shows.
type Summary struct {
	Lines    []model.CartLine `json:"lines"`
	Subtotal model.Price      `json:"subtotal"`
}

// Request is the checkout form submission.
type Request struct {
	PaymentMethod model.PaymentMethod   `json:"payment_method"`
	Shipping      model.ShippingAddress `json:"shipping"`
}

// Begin validates that checkout can start and returns the selected lines.
func (i *Initiator) Begin(ctx context.Context) (*Summary, error) {
	lines := i.cart.SelectedLines()
	if len(lines) == 0 {
		return nil, model.NewValidationError("selection", "Please select at least one item")
	}

	if !i.auth.IsAuthenticated() {
		if err := i.auth.AttemptSilentRefresh(ctx); err != nil {
			i.logger.Info("checkout requires sign-in", slog.String("error", err.Error()))
			if model.IsTransient(err) {
				return nil, err
			}
			return nil, model.NewSignInRequiredError()
		}
	}

	var subtotal int64
	for _, l := range lines {
		subtotal += l.Subtotal()
	}
	return &Summary{Lines: lines, Subtotal: model.Price(subtotal)}, nil
}

// Place submits an order for the selected lines. On success the ordered
// lines leave the cart.
func (i *Initiator) Place(ctx context.Context, req Request) (*model.Order, error) {
	summary, err := i.Begin(ctx)
	if err != nil {
		return nil, err
	}

	create := model.OrderCreate{
		Items:           make([]model.OrderLine, len(summary.Lines)),
		TotalAmount:     summary.Subtotal,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.Shipping,
	}
	refs := make([]model.ProductRef, len(summary.Lines))
	for n, l := range summary.Lines {
		create.Items[n] = model.OrderLine{ProductID: l.Ref(), Quantity: l.Quantity, Price: l.Product.Price}
		refs[n] = l.Ref()
	}

	order, err := i.orders.Create(ctx, create)
	if err != nil {
		return nil, err
	}

	i.cart.CompleteOrder(ctx, refs)
	i.logger.Info("checkout completed",
		slog.String("order_id", string(order.ID)),
		slog.Int("lines", len(refs)),
	)
	return order, nil
}
