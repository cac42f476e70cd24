package gateway

import (
	"context"

	"storefront/internal/model"
)

// Mock implements Gateway for testing.
// Each method can be configured via function fields; unset fields succeed.
type Mock struct {
	FetchCartFunc      func(ctx context.Context) ([]model.CartLine, error)
	MergeCartFunc      func(ctx context.Context, lines []model.CartLine) error
	AddItemFunc        func(ctx context.Context, ref model.ProductRef, quantity int) error
	RemoveItemFunc     func(ctx context.Context, ref model.ProductRef) error
	UpdateQuantityFunc func(ctx context.Context, ref model.ProductRef, quantity int) error
	ClearCartFunc      func(ctx context.Context) error
}

// FetchCart calls the configured FetchCartFunc or returns an empty cart.
func (m *Mock) FetchCart(ctx context.Context) ([]model.CartLine, error) {
	if m.FetchCartFunc != nil {
		return m.FetchCartFunc(ctx)
	}
	return []model.CartLine{}, nil
}

// MergeCart calls the configured MergeCartFunc.
func (m *Mock) MergeCart(ctx context.Context, lines []model.CartLine) error {
	if m.MergeCartFunc != nil {
		return m.MergeCartFunc(ctx, lines)
	}
	return nil
}

// AddItem calls the configured AddItemFunc.
func (m *Mock) AddItem(ctx context.Context, ref model.ProductRef, quantity int) error {
	if m.AddItemFunc != nil {
		return m.AddItemFunc(ctx, ref, quantity)
	}
	return nil
}

// RemoveItem calls the configured RemoveItemFunc.
func (m *Mock) RemoveItem(ctx context.Context, ref model.ProductRef) error {
	if m.RemoveItemFunc != nil {
		return m.RemoveItemFunc(ctx, ref)
	}
	return nil
}

// UpdateQuantity calls the configured UpdateQuantityFunc.
func (m *Mock) UpdateQuantity(ctx context.Context, ref model.ProductRef, quantity int) error {
	if m.UpdateQuantityFunc != nil {
		return m.UpdateQuantityFunc(ctx, ref, quantity)
	}
	return nil
}

// ClearCart calls the configured ClearCartFunc.
func (m *Mock) ClearCart(ctx context.Context) error {
	if m.ClearCartFunc != nil {
		return m.ClearCartFunc(ctx)
	}
	return nil
}
