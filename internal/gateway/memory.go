package gateway

import (
	"context"
	"fmt"
	"sync"

	"storefront/internal/model"
	"storefront/internal/reconcile"
)

// Op records one call made against a Memory gateway.
type Op struct {
	Kind     string // fetch, merge, add, remove, update, clear
	Ref      model.ProductRef
	Quantity int
}

func (o Op) String() string {
	switch o.Kind {
	case "add", "update":
		return fmt.Sprintf("%s(%s,%d)", o.Kind, o.Ref, o.Quantity)
	case "remove":
		return fmt.Sprintf("remove(%s)", o.Ref)
	default:
		return o.Kind
	}
}

// Memory is an in-process backend cart with the server's semantics
// (add accumulates, merge sums). It records every call and can be told to
// fail specific operations, which makes it the fixture for engine tests.
type Memory struct {
	mu      sync.Mutex
	lines   []model.CartLine
	catalog map[model.ProductRef]model.Product
	ops     []Op

	// FailWith, when set, is consulted before each call; a non-nil return
	// fails the call without touching the cart.
	FailWith func(op Op) error
}

// NewMemory creates a backend cart holding lines. Products in lines are
// also registered so later adds can resolve them.
func NewMemory(lines ...model.CartLine) *Memory {
	m := &Memory{catalog: make(map[model.ProductRef]model.Product)}
	for _, l := range lines {
		m.catalog[l.Ref()] = l.Product
	}
	m.lines = model.Normalize(lines)
	return m
}

// Register makes products resolvable by AddItem.
func (m *Memory) Register(products ...model.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range products {
		m.catalog[p.ID] = p
	}
}

// Lines returns a copy of the server cart.
func (m *Memory) Lines() []model.CartLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return model.CloneLines(m.lines)
}

// Ops returns the calls made so far, in order.
func (m *Memory) Ops() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Op, len(m.ops))
	copy(out, m.ops)
	return out
}

// ResetOps forgets recorded calls.
func (m *Memory) ResetOps() {
	m.mu.Lock()
	m.ops = nil
	m.mu.Unlock()
}

func (m *Memory) record(op Op) error {
	m.mu.Lock()
	m.ops = append(m.ops, op)
	fail := m.FailWith
	m.mu.Unlock()
	if fail != nil {
		return fail(op)
	}
	return nil
}

// FetchCart implements Gateway.
func (m *Memory) FetchCart(ctx context.Context) ([]model.CartLine, error) {
	if err := m.record(Op{Kind: "fetch"}); err != nil {
		return nil, err
	}
	return m.Lines(), nil
}

// MergeCart implements Gateway.
func (m *Memory) MergeCart(ctx context.Context, lines []model.CartLine) error {
	if err := m.record(Op{Kind: "merge"}); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range lines {
		if _, ok := m.catalog[l.Ref()]; !ok {
			m.catalog[l.Ref()] = l.Product
		}
	}
	m.lines = reconcile.MergeLines(m.lines, lines)
	return nil
}

// AddItem implements Gateway.
func (m *Memory) AddItem(ctx context.Context, ref model.ProductRef, quantity int) error {
	if err := m.record(Op{Kind: "add", Ref: ref, Quantity: quantity}); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	product, ok := m.catalog[ref]
	if !ok {
		product = model.Product{ID: ref}
	}
	m.lines = reconcile.MergeLines(m.lines, []model.CartLine{{Product: product, Quantity: quantity}})
	return nil
}

// RemoveItem implements Gateway.
func (m *Memory) RemoveItem(ctx context.Context, ref model.ProductRef) error {
	if err := m.record(Op{Kind: "remove", Ref: ref}); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := model.IndexOf(m.lines, ref); i >= 0 {
		m.lines = append(m.lines[:i], m.lines[i+1:]...)
	}
	return nil
}

// UpdateQuantity implements Gateway.
func (m *Memory) UpdateQuantity(ctx context.Context, ref model.ProductRef, quantity int) error {
	if err := m.record(Op{Kind: "update", Ref: ref, Quantity: quantity}); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := model.IndexOf(m.lines, ref)
	if i < 0 {
		return model.NewNotFoundError("cart item")
	}
	m.lines[i].Quantity = quantity
	return nil
}

// ClearCart implements Gateway.
func (m *Memory) ClearCart(ctx context.Context) error {
	if err := m.record(Op{Kind: "clear"}); err != nil {
		return err
	}
	m.mu.Lock()
	m.lines = nil
	m.mu.Unlock()
	return nil
}
