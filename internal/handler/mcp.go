// MCP transport for the storefront using the official MCP Go SDK.
// Exposes the cart, checkout and orders as MCP tools for local agents.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"storefront/internal/cartsync"
	"storefront/internal/model"
)

// === MCP Tool Input/Output Types ===

// ViewCartInput takes no arguments.
type ViewCartInput struct{}

// AddToCartInput is the input schema for add_to_cart.
type AddToCartInput struct {
	ProductID string `json:"product_id" jsonschema:"product ID,required"`
	Quantity  int    `json:"quantity,omitempty" jsonschema:"quantity to add, defaults to 1"`
}

// RemoveFromCartInput is the input schema for remove_from_cart.
type RemoveFromCartInput struct {
	ProductID string `json:"product_id" jsonschema:"product ID,required"`
}

// SetQuantityInput is the input schema for set_quantity.
type SetQuantityInput struct {
	ProductID string `json:"product_id" jsonschema:"product ID,required"`
	Quantity  int    `json:"quantity" jsonschema:"new quantity, 0 removes the line,required"`
}

// SelectItemsInput is the input schema for select_items.
type SelectItemsInput struct {
	All        *bool    `json:"all,omitempty" jsonschema:"true selects every line, false with no product_ids clears the selection"`
	ProductIDs []string `json:"product_ids,omitempty" jsonschema:"product IDs to select"`
}

// ClearCartInput takes no arguments.
type ClearCartInput struct{}

// BeginCheckoutInput takes no arguments.
type BeginCheckoutInput struct{}

// ListOrdersInput takes no arguments.
type ListOrdersInput struct{}

// CartOutput is the cart after a tool ran, plus the notices it raised.
type CartOutput struct {
	Cart    cartsync.Snapshot `json:"cart"`
	Notices []model.Notice    `json:"notices,omitempty"`
}

// OrdersOutput wraps the order list; tool results must be objects.
type OrdersOutput struct {
	Orders []model.Order `json:"orders"`
}

// NewMCPServer creates an MCP server with the storefront tools registered.
// The tools mirror the REST API. Tool outputs are typed any so no output
// schema is inferred: prices encode as decimal strings, not integers.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "storefront",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Storefront cart. Use these tools to view and edit the cart, " +
				"choose lines for checkout and review orders.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "view_cart",
		Description: "Show the cart lines, the checkout selection and the totals.",
	}, h.mcpViewCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_to_cart",
		Description: "Add a product to the cart. Adding a product already in the cart increases its quantity.",
	}, h.mcpAddToCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_from_cart",
		Description: "Remove a product line from the cart.",
	}, h.mcpRemoveFromCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_quantity",
		Description: "Set the quantity of a cart line. A quantity of 0 removes the line.",
	}, h.mcpSetQuantity)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "select_items",
		Description: "Choose which cart lines go to checkout.",
	}, h.mcpSelectItems)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_cart",
		Description: "Remove every line from the cart.",
	}, h.mcpClearCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "begin_checkout",
		Description: "Check that lines are selected and the shopper is signed in, and return the checkout summary.",
	}, h.mcpBeginCheckout)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_orders",
		Description: "List the signed-in shopper's orders.",
	}, h.mcpListOrders)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpViewCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ViewCartInput,
) (*mcp.CallToolResult, any, error) {
	return nil, h.cartOutput(), nil
}

func (h *Handler) mcpAddToCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input AddToCartInput,
) (*mcp.CallToolResult, any, error) {
	if input.ProductID == "" {
		return nil, nil, fmt.Errorf("product_id is required")
	}

	product, err := h.catalog.Get(ctx, model.ProductRef(input.ProductID))
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	if err := h.cart.AddLine(ctx, product, input.Quantity); err != nil {
		return nil, nil, h.mcpError(err)
	}

	return nil, h.cartOutput(), nil
}

func (h *Handler) mcpRemoveFromCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input RemoveFromCartInput,
) (*mcp.CallToolResult, any, error) {
	if input.ProductID == "" {
		return nil, nil, fmt.Errorf("product_id is required")
	}
	h.cart.RemoveLine(ctx, model.ProductRef(input.ProductID))
	return nil, h.cartOutput(), nil
}

func (h *Handler) mcpSetQuantity(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SetQuantityInput,
) (*mcp.CallToolResult, any, error) {
	if input.ProductID == "" {
		return nil, nil, fmt.Errorf("product_id is required")
	}
	h.cart.SetQuantity(ctx, model.ProductRef(input.ProductID), input.Quantity)
	return nil, h.cartOutput(), nil
}

func (h *Handler) mcpSelectItems(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SelectItemsInput,
) (*mcp.CallToolResult, any, error) {
	refs := make([]model.ProductRef, len(input.ProductIDs))
	for i, id := range input.ProductIDs {
		refs[i] = model.ProductRef(id)
	}
	h.applySelection(input.All, refs)
	return nil, h.cartOutput(), nil
}

func (h *Handler) mcpClearCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ClearCartInput,
) (*mcp.CallToolResult, any, error) {
	h.cart.Clear(ctx)
	return nil, h.cartOutput(), nil
}

func (h *Handler) mcpBeginCheckout(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input BeginCheckoutInput,
) (*mcp.CallToolResult, any, error) {
	summary, err := h.checkout.Begin(ctx)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, summary, nil
}

func (h *Handler) mcpListOrders(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ListOrdersInput,
) (*mcp.CallToolResult, any, error) {
	orders, err := h.orders.List(ctx)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, OrdersOutput{Orders: orders}, nil
}

func (h *Handler) cartOutput() CartOutput {
	return CartOutput{
		Cart:    h.cart.Snapshot(),
		Notices: h.cart.DrainNotices(),
	}
}

// mcpError converts service errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
