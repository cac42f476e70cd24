// Package orders wraps the order history and order placement endpoints.
package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"storefront/internal/api"
	"storefront/internal/model"
)

// Service performs order calls for the signed-in shopper.
type Service struct {
	client *api.Client
	logger *slog.Logger
}

// New creates an order service.
func New(client *api.Client, logger *slog.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// List returns the shopper's orders, newest first as the backend sorts them.
// A response that is not a JSON array yields an empty list.
func (s *Service) List(ctx context.Context) ([]model.Order, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "orders/", &raw); err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		s.logger.Warn("order list response is not an array", slog.Int("size", len(raw)))
		return []model.Order{}, nil
	}
	var orders []model.Order
	if err := json.Unmarshal(raw, &orders); err != nil {
		return nil, model.NewUpstreamError("storefront API", err)
	}
	return orders, nil
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, id model.OrderID) (*model.Order, error) {
	if id == "" {
		return nil, model.NewValidationError("order_id", "required")
	}
	var order model.Order
	if err := s.client.Get(ctx, orderPath(id), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Create places an order. The request carries an idempotency key so the
// request layer's retry cannot place it twice.
func (s *Service) Create(ctx context.Context, req model.OrderCreate) (*model.Order, error) {
	if len(req.Items) == 0 {
		return nil, model.NewValidationError("items", "at least one item is required")
	}
	if !req.PaymentMethod.Valid() {
		return nil, model.NewValidationError("payment_method", "must be paypal or cod")
	}

	key := uuid.NewString()
	var order model.Order
	err := s.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "orders/",
		Body:   req,
		Header: map[string]string{"Idempotency-Key": key},
	}, &order)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		slog.String("order_id", string(order.ID)),
		slog.Int("items", len(req.Items)),
		slog.String("total", req.TotalAmount.String()),
		slog.String("idempotency_key", key),
	)
	return &order, nil
}

// Cancel cancels a whole order.
func (s *Service) Cancel(ctx context.Context, id model.OrderID) error {
	if id == "" {
		return model.NewValidationError("order_id", "required")
	}
	return s.client.Post(ctx, orderPath(id)+"cancel/", nil, nil)
}

// CancelItem cancels one line of an order.
func (s *Service) CancelItem(ctx context.Context, id, itemID model.OrderID) error {
	if id == "" || itemID == "" {
		return model.NewValidationError("item_id", "order and item are required")
	}
	return s.client.Post(ctx, orderPath(id)+"cancel-item/", map[string]model.OrderID{"item_id": itemID}, nil)
}

// UpdateStatus sets the status of an order.
func (s *Service) UpdateStatus(ctx context.Context, id model.OrderID, status model.OrderStatus) error {
	if !status.Valid() {
		return model.NewValidationError("status", "unknown order status "+string(status))
	}
	return s.client.Patch(ctx, orderPath(id), map[string]model.OrderStatus{"status": status}, nil)
}

func orderPath(id model.OrderID) string {
	return "orders/" + url.PathEscape(string(id)) + "/"
}
