package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ProductRef is the opaque product identifier used to key cart lines.
// The backend serializes primary keys as numbers; guest carts written by
// older clients store them as strings. Both decode to the same ref.
type ProductRef string

// UnmarshalJSON accepts both "42" and 42.
func (r *ProductRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("product ref: %w", err)
		}
		*r = ProductRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("product ref: %w", err)
	}
	*r = ProductRef(n.String())
	return nil
}

// Product is the catalog snapshot carried by a cart line.
type Product struct {
	ID           ProductRef `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Price        Price      `json:"price"`
	Category     string     `json:"category,omitempty"`
	CategoryName string     `json:"category_name,omitempty"`
	Image        string     `json:"image,omitempty"`
	IsBestSeller bool       `json:"is_best_seller,omitempty"`
	Stock        int        `json:"stock,omitempty"`
}

// CartLine is one product and its quantity. Quantity is always positive
// once a line is in a cart.
type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Ref returns the line's product reference.
func (l CartLine) Ref() ProductRef {
	return l.Product.ID
}

// Subtotal returns unit price × quantity in minor units.
func (l CartLine) Subtotal() int64 {
	return int64(l.Product.Price) * int64(l.Quantity)
}

// CloneLines returns a copy of lines so callers can't alias engine state.
// A nil input yields an empty, non-nil slice.
func CloneLines(lines []CartLine) []CartLine {
	out := make([]CartLine, len(lines))
	copy(out, lines)
	return out
}

// IndexOf returns the position of ref in lines, or -1.
func IndexOf(lines []CartLine, ref ProductRef) int {
	for i, l := range lines {
		if l.Ref() == ref {
			return i
		}
	}
	return -1
}

// Refs returns the product refs of lines in order.
func Refs(lines []CartLine) []ProductRef {
	refs := make([]ProductRef, len(lines))
	for i, l := range lines {
		refs[i] = l.Ref()
	}
	return refs
}

// Normalize folds duplicate refs into a single line (quantities summed, first
// position kept) and drops lines with non-positive quantity or an empty ref.
// Used on anything read from the local store or the backend.
func Normalize(lines []CartLine) []CartLine {
	out := make([]CartLine, 0, len(lines))
	for _, l := range lines {
		if l.Ref() == "" || l.Quantity <= 0 {
			continue
		}
		if i := IndexOf(out, l.Ref()); i >= 0 {
			out[i].Quantity += l.Quantity
			continue
		}
		out = append(out, l)
	}
	return out
}

// RemoteCartItem is one entry of the backend cart resource.
type RemoteCartItem struct {
	Product  Product `json:"product_details"`
	Quantity int     `json:"quantity"`
}

// MergeItem is one guest line in a bulk merge request.
type MergeItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}
