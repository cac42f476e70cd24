// Package reconcile provides diff and merge logic for cart state.
// Used by the sync engine to compute the minimal set of remote cart mutations
// between the last mirrored baseline and the current local cart, so each
// debounced sync pushes only what changed.
package reconcile

import (
	"storefront/internal/model"
)

// LineItemDiff describes the mutations needed to reconcile line items.
// Each entry targets a distinct product, so the operations may be applied in
// any order or concurrently.
type LineItemDiff struct {
	ToAdd    []ItemToAdd    // Products in desired but not baseline
	ToRemove []ItemToRemove // Products in baseline but gone from the cart
	ToUpdate []ItemToUpdate // Products in both with different quantities
}

// ItemToAdd specifies a new line to add to the remote cart.
type ItemToAdd struct {
	ProductID model.ProductRef
	Quantity  int
}

// ItemToRemove specifies a line to remove from the remote cart.
type ItemToRemove struct {
	ProductID model.ProductRef
}

// ItemToUpdate specifies a quantity change for an existing remote line.
type ItemToUpdate struct {
	ProductID   model.ProductRef
	OldQuantity int // Baseline quantity (informational)
	NewQuantity int
}

// IsEmpty returns true if no line item changes are needed.
func (d *LineItemDiff) IsEmpty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0 && len(d.ToUpdate) == 0
}

// Len returns the total number of operations in the diff.
func (d *LineItemDiff) Len() int {
	return len(d.ToAdd) + len(d.ToRemove) + len(d.ToUpdate)
}

// Selection reports whether a product is chosen for sync.
type Selection interface {
	Contains(ref model.ProductRef) bool
}

// DiffCart computes the delta between the sync baseline and the current cart,
// restricted to selected lines.
//
// Rules:
//  1. baseline line whose product is no longer in the cart → remove
//  2. selected cart line missing from baseline → add with current quantity
//  3. selected cart line whose quantity differs from baseline → update
//  4. deselected cart lines produce no operation in either direction
//
// Output is ordered by cart position (adds/updates) and baseline position
// (removes) so callers and tests see a stable sequence.
func DiffCart(baseline, current []model.CartLine, selected Selection) *LineItemDiff {
	diff := &LineItemDiff{}

	baselineByRef := make(map[model.ProductRef]model.CartLine, len(baseline))
	for _, line := range baseline {
		baselineByRef[line.Ref()] = line
	}

	currentByRef := make(map[model.ProductRef]model.CartLine, len(current))
	for _, line := range current {
		currentByRef[line.Ref()] = line
	}

	// Removed from the cart entirely
	for _, line := range baseline {
		if _, exists := currentByRef[line.Ref()]; !exists {
			diff.ToRemove = append(diff.ToRemove, ItemToRemove{ProductID: line.Ref()})
		}
	}

	for _, line := range current {
		if !selected.Contains(line.Ref()) {
			continue
		}
		prev, exists := baselineByRef[line.Ref()]
		switch {
		case !exists:
			diff.ToAdd = append(diff.ToAdd, ItemToAdd{
				ProductID: line.Ref(),
				Quantity:  line.Quantity,
			})
		case prev.Quantity != line.Quantity:
			diff.ToUpdate = append(diff.ToUpdate, ItemToUpdate{
				ProductID:   line.Ref(),
				OldQuantity: prev.Quantity,
				NewQuantity: line.Quantity,
			})
		}
	}

	return diff
}

// SelectedSubset returns the lines of current whose product is selected,
// preserving order. This is what becomes the new baseline after a sync.
func SelectedSubset(current []model.CartLine, selected Selection) []model.CartLine {
	out := make([]model.CartLine, 0, len(current))
	for _, line := range current {
		if selected.Contains(line.Ref()) {
			out = append(out, line)
		}
	}
	return out
}

// MergeLines folds b into a: lines sharing a product have their quantities
// summed, new products are appended after a's lines. Neither input is
// modified. This is the backend's merge rule for guest carts.
func MergeLines(a, b []model.CartLine) []model.CartLine {
	merged := model.CloneLines(a)
	for _, line := range b {
		if i := model.IndexOf(merged, line.Ref()); i >= 0 {
			merged[i].Quantity += line.Quantity
			continue
		}
		merged = append(merged, line)
	}
	return merged
}

// SetOf is a Selection backed by a fixed set of refs.
type SetOf map[model.ProductRef]struct{}

// NewSet builds a SetOf from refs.
func NewSet(refs ...model.ProductRef) SetOf {
	s := make(SetOf, len(refs))
	for _, r := range refs {
		s[r] = struct{}{}
	}
	return s
}

// Contains implements Selection.
func (s SetOf) Contains(ref model.ProductRef) bool {
	_, ok := s[ref]
	return ok
}
