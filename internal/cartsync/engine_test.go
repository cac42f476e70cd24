package cartsync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/gateway"
	"storefront/internal/localstore"
	"storefront/internal/model"
)

// fakeAuth is an AuthSignal the test flips by hand.
type fakeAuth struct {
	mu        sync.Mutex
	authed    bool
	forced    int
	nextID    int
	listeners map[int]func(bool)
}

func newFakeAuth(authed bool) *fakeAuth {
	return &fakeAuth{authed: authed, listeners: make(map[int]func(bool))}
}

func (a *fakeAuth) IsAuthenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authed
}

func (a *fakeAuth) ForceSignOut() {
	a.mu.Lock()
	if !a.authed {
		a.mu.Unlock()
		return
	}
	a.authed = false
	a.forced++
	a.mu.Unlock()
	a.notify(false)
}

func (a *fakeAuth) SignIn() {
	a.mu.Lock()
	a.authed = true
	a.mu.Unlock()
	a.notify(true)
}

func (a *fakeAuth) SignOut() { a.ForceSignOut() }

func (a *fakeAuth) Subscribe(fn func(bool)) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

func (a *fakeAuth) notify(authed bool) {
	a.mu.Lock()
	fns := make([]func(bool), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()
	for _, fn := range fns {
		fn(authed)
	}
}

func (a *fakeAuth) forcedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.forced
}

func product(id string, cents int64) model.Product {
	return model.Product{ID: model.ProductRef(id), Name: "P" + id, Price: model.Price(cents)}
}

func line(id string, qty int) model.CartLine {
	return model.CartLine{Product: product(id, 100), Quantity: qty}
}

type harness struct {
	engine *Engine
	store  *localstore.Memory
	server *gateway.Memory
	auth   *fakeAuth
	clock  *manualClock
}

func newHarness(t *testing.T, authed bool, server ...model.CartLine) *harness {
	t.Helper()
	h := &harness{
		store:  localstore.NewMemory(),
		server: gateway.NewMemory(server...),
		auth:   newFakeAuth(authed),
		clock:  &manualClock{},
	}
	h.engine = New(h.store, h.server, h.auth,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		Options{After: h.clock.After})
	return h
}

func (h *harness) seed(t *testing.T, key string, v any) {
	t.Helper()
	require.NoError(t, h.store.Set(context.Background(), key, v))
}

func (h *harness) start() {
	h.engine.Start(context.Background())
}

func (h *harness) storedCart(t *testing.T) []model.CartLine {
	t.Helper()
	var lines []model.CartLine
	_, err := h.store.Get(context.Background(), localstore.KeyCart, &lines)
	require.NoError(t, err)
	return lines
}

func (h *harness) opStrings() []string {
	var out []string
	for _, op := range h.server.Ops() {
		out = append(out, op.String())
	}
	return out
}

// startAccount boots an authenticated engine against a server cart and
// forgets the load calls.
func startAccount(t *testing.T, server ...model.CartLine) *harness {
	t.Helper()
	h := newHarness(t, true, server...)
	h.start()
	require.Equal(t, Account, h.engine.State())
	h.server.ResetOps()
	return h
}

func messages(notices []model.Notice) []string {
	out := make([]string, len(notices))
	for i, n := range notices {
		out[i] = n.Message
	}
	return out
}

// =============================================================================
// GUEST MODE
// =============================================================================

func TestEngine_GuestBootstrap(t *testing.T) {
	h := newHarness(t, false)
	h.seed(t, localstore.KeyCart, []model.CartLine{line("A", 1), line("B", 2)})
	h.start()

	assert.Equal(t, Guest, h.engine.State())
	assert.Equal(t, []model.CartLine{line("A", 1), line("B", 2)}, h.engine.Lines())
	assert.Equal(t, []model.ProductRef{"A", "B"}, h.engine.Selected())
	assert.Empty(t, h.server.Ops(), "guest bootstrap must not call the server")
}

func TestEngine_GuestMutationsPersist(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	h.start()

	require.NoError(t, h.engine.AddLine(ctx, product("C", 250), 0))
	require.NoError(t, h.engine.AddLine(ctx, product("C", 250), 2))

	want := []model.CartLine{{Product: product("C", 250), Quantity: 3}}
	assert.Equal(t, want, h.engine.Lines())
	assert.Equal(t, want, h.storedCart(t))
	assert.Equal(t, []string{"Added PC to cart", "Updated PC quantity in cart"}, messages(h.engine.DrainNotices()))
	assert.Zero(t, h.clock.Active(), "guest mode never schedules a sync")
}

func TestEngine_AddLineRequiresID(t *testing.T) {
	h := newHarness(t, false)
	h.start()

	err := h.engine.AddLine(context.Background(), model.Product{Name: "nameless"}, 1)
	assert.True(t, errors.Is(err, model.ErrInvalidRequest))
	assert.Empty(t, h.engine.Lines())
}

func TestEngine_NoDuplicateRefs(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	h.start()

	steps := []func(){
		func() { h.engine.AddLine(ctx, product("A", 100), 1) },
		func() { h.engine.AddLine(ctx, product("B", 100), 2) },
		func() { h.engine.AddLine(ctx, product("A", 100), 3) },
		func() { h.engine.SetQuantity(ctx, "B", 7) },
		func() { h.engine.RemoveLine(ctx, "A") },
		func() { h.engine.AddLine(ctx, product("A", 100), 1) },
		func() { h.engine.SetQuantity(ctx, "A", 0) },
		func() { h.engine.AddLine(ctx, product("B", 100), 1) },
		func() { h.engine.RemoveLine(ctx, "Z") },
	}
	for i, step := range steps {
		step()
		seen := make(map[model.ProductRef]bool)
		for _, l := range h.engine.Lines() {
			require.Falsef(t, seen[l.Ref()], "step %d: duplicate ref %s", i, l.Ref())
			require.Positivef(t, l.Quantity, "step %d: non-positive quantity", i)
			seen[l.Ref()] = true
		}
	}
	assert.Equal(t, []model.CartLine{line("B", 8)}, h.engine.Lines())
}

func TestEngine_SetQuantityZeroIsRemove(t *testing.T) {
	ctx := context.Background()
	seedLines := []model.CartLine{line("A", 2), line("B", 1)}

	a := newHarness(t, false)
	a.seed(t, localstore.KeyCart, seedLines)
	a.start()
	a.engine.SetQuantity(ctx, "A", 0)

	b := newHarness(t, false)
	b.seed(t, localstore.KeyCart, seedLines)
	b.start()
	b.engine.RemoveLine(ctx, "A")

	assert.Equal(t, b.engine.Lines(), a.engine.Lines())
	assert.Equal(t, b.engine.Selected(), a.engine.Selected())
	assert.Equal(t, b.storedCart(t), a.storedCart(t))
	assert.Equal(t, messages(b.engine.DrainNotices()), messages(a.engine.DrainNotices()))
}

func TestEngine_SetQuantityUnknownRefIsNoop(t *testing.T) {
	h := newHarness(t, false)
	h.seed(t, localstore.KeyCart, []model.CartLine{line("A", 2)})
	h.start()

	h.engine.SetQuantity(context.Background(), "Z", 4)
	assert.Equal(t, []model.CartLine{line("A", 2)}, h.engine.Lines())
}

// =============================================================================
// SELECTION
// =============================================================================

func TestEngine_SelectAllMatchesCart(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	h.seed(t, localstore.KeyCart, []model.CartLine{line("A", 1), line("B", 1), line("C", 1)})
	h.start()

	h.engine.Toggle("A")
	h.engine.Toggle("B")
	h.engine.Toggle("nope")
	assert.Equal(t, []model.ProductRef{"C"}, h.engine.Selected())

	h.engine.AddLine(ctx, product("D", 100), 1)
	assert.True(t, h.engine.IsSelected("D"), "new lines are selected")

	h.engine.SelectAll()
	assert.Equal(t, model.Refs(h.engine.Lines()), h.engine.Selected())

	h.engine.SelectNone()
	assert.Empty(t, h.engine.Selected())
}

func TestEngine_SelectionPrunedOnRemove(t *testing.T) {
	h := newHarness(t, false)
	h.seed(t, localstore.KeyCart, []model.CartLine{line("A", 1), line("B", 1)})
	h.start()

	h.engine.RemoveLine(context.Background(), "A")
	assert.False(t, h.engine.IsSelected("A"))
	assert.Equal(t, []model.ProductRef{"B"}, h.engine.Selected())
}

func TestEngine_Totals(t *testing.T) {
	h := newHarness(t, false)
	h.seed(t, localstore.KeyCart, []model.CartLine{
		{Product: product("A", 100), Quantity: 2},
		{Product: product("B", 250), Quantity: 1},
	})
	h.start()

	h.engine.Toggle("A")
	assert.Equal(t, int64(250), h.engine.SelectedSubtotal())
	assert.Equal(t, int64(450), h.engine.TotalPrice())
	assert.Equal(t, 3, h.engine.TotalItems())

	snap := h.engine.Snapshot()
	assert.Equal(t, "Guest", snap.State)
	assert.Equal(t, []model.ProductRef{"B"}, snap.Selected)
	assert.Equal(t, model.Price(450), snap.TotalPrice)
	assert.Equal(t, model.Price(250), snap.SelectedSubtotal)
}

// =============================================================================
// SIGN-IN AND SIGN-OUT
// =============================================================================

func TestEngine_SignOutKeepsCart(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	h.seed(t, localstore.KeyCart, []model.CartLine{line("A", 2)})
	h.start()

	h.auth.SignIn()
	require.Equal(t, Account, h.engine.State())
	assert.Equal(t, []model.CartLine{line("A", 2)}, h.engine.Lines())

	// Account edits reach the local store too
	require.NoError(t, h.engine.AddLine(ctx, product("B", 100), 1))

	h.auth.SignOut()
	assert.Equal(t, Guest, h.engine.State())
	assert.Equal(t, []model.CartLine{line("A", 2), line("B", 1)}, h.engine.Lines())
	assert.Empty(t, h.engine.Baseline())

	h.auth.SignIn()
	assert.Equal(t, Account, h.engine.State())
	assert.Equal(t, []model.CartLine{line("A", 2), line("B", 1)}, h.engine.Lines())
}

func TestEngine_AccountEditsPersist(t *testing.T) {
	ctx := context.Background()
	h := startAccount(t, line("S", 1))
	require.False(t, h.store.Has(localstore.KeyCart), "server cart load spends the stored cart")

	require.NoError(t, h.engine.AddLine(ctx, product("B", 100), 1))
	assert.Equal(t, []model.CartLine{line("S", 1), line("B", 1)}, h.storedCart(t))

	h.engine.SetQuantity(ctx, "S", 4)
	assert.Equal(t, []model.CartLine{line("S", 4), line("B", 1)}, h.storedCart(t))
}

func TestEngine_SignInAsAnotherAccountReloads(t *testing.T) {
	ctx := context.Background()
	h := startAccount(t, line("A1", 2))

	// Pending edit for the first account
	h.engine.SetQuantity(ctx, "A1", 4)
	require.Equal(t, 1, h.clock.Active())

	// Second account's server cart; no sign-out in between
	require.NoError(t, h.server.ClearCart(ctx))
	require.NoError(t, h.server.MergeCart(ctx, []model.CartLine{line("B1", 5)}))
	h.server.ResetOps()

	h.auth.SignIn()

	assert.Equal(t, Account, h.engine.State())
	assert.Equal(t, []model.CartLine{line("B1", 5)}, h.engine.Lines())
	assert.Equal(t, []model.CartLine{line("B1", 5)}, h.engine.Baseline())
	assert.Equal(t, []model.ProductRef{"B1"}, h.engine.Selected())
	assert.False(t, h.store.Has(localstore.KeyCart), "previous account's stored cart is dropped")
	assert.Zero(t, h.clock.Fire(), "previous account's pending sync is cancelled")
	assert.Equal(t, []string{"fetch"}, h.opStrings())

	h.engine.SetQuantity(ctx, "A1", 3)
	h.engine.SetQuantity(ctx, "B1", 3)
	h.clock.Fire()

	assert.Equal(t, []string{"fetch", "update(B1,3)"}, h.opStrings())
	assert.Equal(t, []model.CartLine{line("B1", 3)}, h.server.Lines())
}

func TestEngine_SignInAsAnotherAccountEmptyServerCart(t *testing.T) {
	ctx := context.Background()
	h := startAccount(t, line("A1", 2))
	require.NoError(t, h.engine.AddLine(ctx, product("A2", 100), 1))
	h.clock.Fire()

	require.NoError(t, h.server.ClearCart(ctx))
	h.server.ResetOps()

	h.auth.SignIn()

	assert.Equal(t, Account, h.engine.State())
	assert.Empty(t, h.engine.Lines(), "first account's lines must not carry over")
	assert.Empty(t, h.engine.Baseline())
	assert.Equal(t, []string{"fetch"}, h.opStrings())
}

func TestEngine_NewAccountMergesGuestCart(t *testing.T) {
	h := newHarness(t, false, line("A", 3), line("C", 1))
	h.seed(t, localstore.KeyCart, []model.CartLine{line("A", 1), line("B", 2)})
	h.seed(t, localstore.KeyIsNewUser, true)
	h.start()

	h.auth.SignIn()

	want := []model.CartLine{line("A", 4), line("C", 1), line("B", 2)}
	assert.Equal(t, Account, h.engine.State())
	assert.Equal(t, want, h.engine.Lines())
	assert.Equal(t, want, h.engine.Baseline())
	assert.Equal(t, []model.ProductRef{"A", "C", "B"}, h.engine.Selected())
	assert.Equal(t, []string{"merge", "fetch"}, h.opStrings())
	assert.True(t, h.store.Has(localstore.KeyCartMerged))
	assert.False(t, h.store.Has(localstore.KeyCart), "spent guest cart is removed")
}

func TestEngine_MergeOnlyOnce(t *testing.T) {
	h := newHarness(t, false, line("C", 1))
	h.seed(t, localstore.KeyCart, []model.CartLine{line("A", 1)})
	h.seed(t, localstore.KeyIsNewUser, true)
	h.seed(t, localstore.KeyCartMerged, true)
	h.start()

	h.auth.SignIn()
	assert.Equal(t, []string{"fetch"}, h.opStrings())
	assert.Equal(t, []model.CartLine{line("C", 1)}, h.engine.Lines())
}

func TestEngine_ReturningAccountDoesNotMerge(t *testing.T) {
	h := newHarness(t, false)
	h.seed(t, localstore.KeyCart, []model.CartLine{line("A", 1)})
	h.start()

	h.auth.SignIn()
	assert.Equal(t, []string{"fetch"}, h.opStrings())
	// Empty server cart: the guest cart carries over
	assert.Equal(t, []model.CartLine{line("A", 1)}, h.engine.Lines())
}

func TestEngine_MergeFailureStillFetches(t *testing.T) {
	h := newHarness(t, false, line("C", 1))
	h.seed(t, localstore.KeyCart, []model.CartLine{line("A", 1)})
	h.seed(t, localstore.KeyIsNewUser, true)
	h.server.FailWith = func(op gateway.Op) error {
		if op.Kind == "merge" {
			return model.NewMergeConflictError(errors.New("rejected"))
		}
		return nil
	}
	h.start()

	h.auth.SignIn()
	assert.Equal(t, Account, h.engine.State())
	assert.Equal(t, []model.CartLine{line("C", 1)}, h.engine.Lines())
	assert.False(t, h.store.Has(localstore.KeyCartMerged), "failed merge is retried on next sign-in")
}

func TestEngine_MergeUnauthorizedSignsOut(t *testing.T) {
	h := newHarness(t, false)
	h.seed(t, localstore.KeyCart, []model.CartLine{line("A", 1)})
	h.seed(t, localstore.KeyIsNewUser, true)
	h.server.FailWith = func(op gateway.Op) error {
		return model.NewUnauthorizedError("token expired")
	}
	h.start()

	h.auth.SignIn()
	assert.Equal(t, Guest, h.engine.State())
	assert.Equal(t, []model.CartLine{line("A", 1)}, h.engine.Lines())
	assert.Equal(t, 1, h.auth.forcedCount())
	assert.Contains(t, h.engine.DrainNotices(), model.Notice{Level: model.NoticeError, Message: model.SessionExpiredMessage})
}

func TestEngine_FetchFailureUsesLocalCart(t *testing.T) {
	h := newHarness(t, false, line("C", 1))
	h.seed(t, localstore.KeyCart, []model.CartLine{line("A", 1)})
	h.server.FailWith = func(op gateway.Op) error {
		return model.NewTransientError("storefront API", errors.New("connection reset"))
	}
	h.start()

	h.auth.SignIn()
	assert.Equal(t, Account, h.engine.State())
	assert.Equal(t, []model.CartLine{line("A", 1)}, h.engine.Lines())
	assert.True(t, h.store.Has(localstore.KeyCart))
}

func TestEngine_CheckoutJustCompletedSkipsServer(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true, line("Z", 5))
	h.seed(t, localstore.KeyCart, []model.CartLine{line("A", 1)})
	h.seed(t, localstore.KeyCheckoutComplete, true)
	h.start()

	assert.Equal(t, Account, h.engine.State())
	assert.Equal(t, []model.CartLine{line("A", 1)}, h.engine.Lines())
	assert.Equal(t, []model.CartLine{line("A", 1)}, h.engine.Baseline())
	assert.Equal(t, []model.ProductRef{"A"}, h.engine.Selected())
	assert.False(t, h.store.Has(localstore.KeyCheckoutComplete))
	assert.Empty(t, h.server.Ops())

	// Still signed in, so edits keep syncing
	require.NoError(t, h.engine.AddLine(ctx, product("N", 100), 2))
	assert.Equal(t, 1, h.clock.Fire())
	assert.Equal(t, []string{"add(N,2)"}, h.opStrings())
}

func TestEngine_GuestAfterCheckoutStaysGuest(t *testing.T) {
	h := newHarness(t, false)
	h.seed(t, localstore.KeyCart, []model.CartLine{line("A", 1)})
	h.seed(t, localstore.KeyCheckoutComplete, true)
	h.start()

	assert.Equal(t, Guest, h.engine.State())
	assert.Equal(t, []model.CartLine{line("A", 1)}, h.engine.Lines())
	assert.False(t, h.store.Has(localstore.KeyCheckoutComplete))
	assert.Empty(t, h.server.Ops())
}

// =============================================================================
// SYNC
// =============================================================================

func TestEngine_SyncPushesDiff(t *testing.T) {
	ctx := context.Background()
	h := startAccount(t, line("A", 2), line("B", 1))
	h.server.Register(product("C", 100))

	h.engine.RemoveLine(ctx, "B")
	require.NoError(t, h.engine.AddLine(ctx, product("C", 100), 3))
	assert.Empty(t, h.server.Ops(), "mutations do not wait on the network")
	assert.Equal(t, 1, h.clock.Active(), "bursts collapse into one pending sync")

	h.clock.Fire()

	assert.ElementsMatch(t, []string{"remove(B)", "add(C,3)"}, h.opStrings())
	assert.Equal(t, []model.CartLine{line("A", 2), line("C", 3)}, h.engine.Baseline())
	assert.Equal(t, []model.CartLine{line("A", 2), line("C", 3)}, h.server.Lines())
}

func TestEngine_SyncUpdatesQuantity(t *testing.T) {
	h := startAccount(t, line("A", 2))

	h.engine.SetQuantity(context.Background(), "A", 5)
	h.clock.Fire()

	assert.Equal(t, []string{"update(A,5)"}, h.opStrings())
	assert.Equal(t, []model.CartLine{line("A", 5)}, h.server.Lines())
}

func TestEngine_SyncIgnoresDeselectedLines(t *testing.T) {
	h := startAccount(t, line("A", 2), line("B", 1))

	h.engine.Toggle("B")
	h.engine.SetQuantity(context.Background(), "B", 5)
	h.clock.Fire()

	assert.Empty(t, h.server.Ops())
}

func TestEngine_ClearIsSynchronous(t *testing.T) {
	ctx := context.Background()
	h := startAccount(t, line("A", 2))
	h.seed(t, localstore.KeyCart, []model.CartLine{line("A", 2)})
	h.seed(t, localstore.KeyCartMerged, true)
	h.seed(t, localstore.KeyCheckoutComplete, true)

	h.engine.Clear(ctx)

	assert.Empty(t, h.engine.Lines())
	assert.False(t, h.store.Has(localstore.KeyCart))
	assert.False(t, h.store.Has(localstore.KeyCartMerged))
	assert.False(t, h.store.Has(localstore.KeyCheckoutComplete))
	assert.Empty(t, h.server.Ops(), "no network before Clear returns")
	assert.Equal(t, []string{"Cart cleared"}, messages(h.engine.DrainNotices()))

	h.clock.Fire()
	assert.Equal(t, []string{"clear"}, h.opStrings())
	assert.Empty(t, h.server.Lines())
}

func TestEngine_SyncUnauthorizedSignsOut(t *testing.T) {
	h := startAccount(t, line("A", 2))
	h.server.FailWith = func(op gateway.Op) error {
		if op.Kind == "add" {
			return model.NewUnauthorizedError("token expired")
		}
		return nil
	}

	h.engine.AddLine(context.Background(), product("B", 100), 1)
	h.engine.DrainNotices()
	h.clock.Fire()

	assert.Equal(t, Guest, h.engine.State())
	// The stored cart survives the forced sign-out
	assert.Equal(t, []model.CartLine{line("B", 1)}, h.engine.Lines())
	assert.Equal(t, 1, h.auth.forcedCount())
	assert.Equal(t, []model.Notice{{Level: model.NoticeError, Message: model.SessionExpiredMessage}}, h.engine.DrainNotices())
}

func TestEngine_PartialFailureRetriesOnlyFailedOps(t *testing.T) {
	ctx := context.Background()
	h := startAccount(t, line("A", 2), line("B", 1))
	h.server.FailWith = func(op gateway.Op) error {
		if op.Kind == "add" {
			return model.NewTransientError("storefront API", errors.New("timeout"))
		}
		return nil
	}

	h.engine.RemoveLine(ctx, "B")
	h.engine.AddLine(ctx, product("C", 100), 3)
	h.clock.Fire()

	assert.Equal(t, Account, h.engine.State(), "transient failures keep the session")
	assert.Equal(t, []model.CartLine{line("A", 2)}, h.engine.Baseline())

	h.server.FailWith = nil
	h.server.ResetOps()
	h.engine.SelectAll()
	h.clock.Fire()

	assert.Equal(t, []string{"add(C,3)"}, h.opStrings())
}

func TestEngine_RemoveAlreadyGoneIsApplied(t *testing.T) {
	ctx := context.Background()
	h := startAccount(t, line("A", 2), line("B", 1))
	h.server.FailWith = func(op gateway.Op) error {
		if op.Kind == "remove" {
			return model.NewNotFoundError("cart item")
		}
		return nil
	}

	h.engine.RemoveLine(ctx, "B")
	h.clock.Fire()

	assert.Equal(t, []model.CartLine{line("A", 2)}, h.engine.Baseline())

	h.server.ResetOps()
	h.engine.SetQuantity(ctx, "A", 3)
	h.clock.Fire()

	assert.Equal(t, []string{"update(A,3)"}, h.opStrings(), "the remove is not sent again")
}

func TestEngine_StaleSyncResultDiscarded(t *testing.T) {
	h := startAccount(t, line("A", 2))
	h.server.FailWith = func(op gateway.Op) error {
		if op.Kind == "add" {
			// Sign-out lands while the call is in flight
			h.auth.SignOut()
		}
		return nil
	}

	h.engine.AddLine(context.Background(), product("B", 100), 1)
	h.clock.Fire()

	assert.Equal(t, Guest, h.engine.State())
	assert.Empty(t, h.engine.Baseline(), "baseline from the old session must not be applied")
}

func TestEngine_SignOutCancelsPendingSync(t *testing.T) {
	h := startAccount(t, line("A", 2))

	h.engine.AddLine(context.Background(), product("B", 100), 1)
	h.auth.SignOut()

	assert.Zero(t, h.clock.Fire())
	assert.Empty(t, h.server.Ops())
}

func TestEngine_CompleteOrder(t *testing.T) {
	ctx := context.Background()
	h := startAccount(t, line("A", 2), line("B", 1))

	h.engine.CompleteOrder(ctx, []model.ProductRef{"A"})

	assert.Equal(t, []model.CartLine{line("B", 1)}, h.engine.Lines())
	assert.Equal(t, []model.CartLine{line("B", 1)}, h.storedCart(t))
	assert.True(t, h.store.Has(localstore.KeyCheckoutComplete))

	h.clock.Fire()
	assert.Equal(t, []string{"remove(A)"}, h.opStrings())
}

func TestEngine_CloseFlushesPendingSync(t *testing.T) {
	h := startAccount(t, line("A", 2))

	h.engine.AddLine(context.Background(), product("B", 100), 1)
	h.engine.Close()

	assert.Equal(t, []string{"add(B,1)"}, h.opStrings())

	h.auth.SignOut()
	assert.Equal(t, Account, h.engine.State(), "closed engine ignores auth changes")
}

func TestEngine_OnNoticeHook(t *testing.T) {
	var got []model.Notice
	e := New(localstore.NewMemory(), gateway.NewMemory(), newFakeAuth(false),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		Options{OnNotice: func(n model.Notice) { got = append(got, n) }})
	e.Start(context.Background())

	e.AddLine(context.Background(), product("A", 100), 1)
	assert.Equal(t, []model.Notice{{Level: model.NoticeSuccess, Message: "Added PA to cart"}}, got)
}
