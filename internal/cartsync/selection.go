package cartsync

import (
	"storefront/internal/model"
	"storefront/internal/reconcile"
)

// =============================================================================
// SELECTION
// =============================================================================
//
// The selection is the set of cart lines chosen for checkout and for sync.
// It is always a subset of the refs in the cart: every mutation prunes it.
//
// =============================================================================

// SelectAll selects every line currently in the cart.
func (e *Engine) SelectAll() {
	e.mu.Lock()
	e.selectAllLocked()
	e.mu.Unlock()
	e.scheduleIfAccount()
}

// SelectNone clears the selection.
func (e *Engine) SelectNone() {
	e.mu.Lock()
	e.selected = make(map[model.ProductRef]struct{})
	e.mu.Unlock()
	e.scheduleIfAccount()
}

// Toggle flips the selection of ref. Refs not in the cart are ignored.
func (e *Engine) Toggle(ref model.ProductRef) {
	e.mu.Lock()
	if model.IndexOf(e.lines, ref) < 0 {
		e.mu.Unlock()
		return
	}
	if _, ok := e.selected[ref]; ok {
		delete(e.selected, ref)
	} else {
		e.selected[ref] = struct{}{}
	}
	e.mu.Unlock()
	e.scheduleIfAccount()
}

// SetSelected replaces the selection with refs, ignoring refs not in the cart.
func (e *Engine) SetSelected(refs []model.ProductRef) {
	e.mu.Lock()
	e.selected = make(map[model.ProductRef]struct{}, len(refs))
	for _, ref := range refs {
		if model.IndexOf(e.lines, ref) >= 0 {
			e.selected[ref] = struct{}{}
		}
	}
	e.mu.Unlock()
	e.scheduleIfAccount()
}

// IsSelected reports whether ref is selected.
func (e *Engine) IsSelected(ref model.ProductRef) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.selected[ref]
	return ok
}

// Selected returns the selected refs in cart order.
func (e *Engine) Selected() []model.ProductRef {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectedRefsLocked()
}

// SelectedLines returns copies of the selected lines in cart order.
func (e *Engine) SelectedLines() []model.CartLine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return reconcile.SelectedSubset(e.lines, selection(e.selected))
}

// SelectedSubtotal returns Σ price × quantity over selected lines, in minor
// units. It is computed on every call.
func (e *Engine) SelectedSubtotal() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectedSubtotalLocked()
}

func (e *Engine) selectAllLocked() {
	e.selected = make(map[model.ProductRef]struct{}, len(e.lines))
	for _, l := range e.lines {
		e.selected[l.Ref()] = struct{}{}
	}
}

func (e *Engine) pruneSelectionLocked() {
	for ref := range e.selected {
		if model.IndexOf(e.lines, ref) < 0 {
			delete(e.selected, ref)
		}
	}
}

func (e *Engine) selectedRefsLocked() []model.ProductRef {
	refs := make([]model.ProductRef, 0, len(e.selected))
	for _, l := range e.lines {
		if _, ok := e.selected[l.Ref()]; ok {
			refs = append(refs, l.Ref())
		}
	}
	return refs
}

func (e *Engine) selectedSubtotalLocked() int64 {
	var sum int64
	for _, l := range e.lines {
		if _, ok := e.selected[l.Ref()]; ok {
			sum += l.Subtotal()
		}
	}
	return sum
}

// selection adapts the engine's selected set to reconcile.Selection.
type selection map[model.ProductRef]struct{}

func (s selection) Contains(ref model.ProductRef) bool {
	_, ok := s[ref]
	return ok
}
