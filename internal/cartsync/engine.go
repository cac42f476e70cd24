// Package cartsync is the cart reconciliation engine.
//
// It owns the shopper's cart snapshot and keeps it consistent with the local
// store (guest) or the server cart (signed in) across sign-in and sign-out.
// Mutations apply to memory immediately; in Account mode a debounced,
// single-flight sync pushes the diff against the last mirrored baseline.
package cartsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"storefront/internal/gateway"
	"storefront/internal/localstore"
	"storefront/internal/model"
)

// DefaultDebounce is the quiet period before a sync runs.
const DefaultDebounce = 500 * time.Millisecond

// maxNotices bounds the undrained notice queue.
const maxNotices = 50

// AuthSignal is what the engine needs from the auth provider.
type AuthSignal interface {
	IsAuthenticated() bool
	ForceSignOut()
	Subscribe(fn func(authenticated bool)) (unsubscribe func())
}

// Options tune the engine. The zero value is usable.
type Options struct {
	Debounce time.Duration      // default DefaultDebounce
	After    TimerFunc          // default AfterFunc
	OnNotice func(model.Notice) // called in addition to queueing
}

// Engine is the cart reconciliation engine.
type Engine struct {
	store   localstore.Store
	gateway gateway.Gateway
	auth    AuthSignal
	logger  *slog.Logger
	opts    Options

	debouncer   *Debouncer
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()

	// mu guards cart state. Network calls never run under it.
	mu         sync.Mutex
	state      State
	lines      []model.CartLine
	selected   map[model.ProductRef]struct{}
	baseline   []model.CartLine
	epoch      uint64 // bumped on sign-out and account switch; stale sync completions are dropped
	seq        uint64 // sync cycles started
	appliedSeq uint64 // newest cycle whose baseline was applied

	// Serial event queue; see dispatch.
	qmu      sync.Mutex
	queue    []Event
	draining bool

	nmu     sync.Mutex
	notices []model.Notice
}

// New creates an engine in the Bootstrapping state. Call Start to load.
func New(store localstore.Store, gw gateway.Gateway, signal AuthSignal, logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	e := &Engine{
		store:    store,
		gateway:  gw,
		auth:     signal,
		logger:   logger,
		opts:     opts,
		state:    Bootstrapping,
		selected: make(map[model.ProductRef]struct{}),
		ctx:      context.Background(),
		cancel:   func() {},
	}
	e.debouncer = NewDebouncer(opts.Debounce, e.syncOnce, opts.After)
	return e
}

// Start subscribes to the auth signal and bootstraps the cart. The
// context bounds background work (loads and syncs) until Close.
func (e *Engine) Start(ctx context.Context) {
	e.ctx, e.cancel = context.WithCancel(context.WithoutCancel(ctx))
	e.unsubscribe = e.auth.Subscribe(func(authenticated bool) {
		if authenticated {
			e.dispatch(EventSignedIn)
		} else {
			e.dispatch(EventSignedOut)
		}
	})
	e.dispatch(EventStart)
}

// Close flushes a pending sync, stops listening to the auth signal and
// cancels background work.
func (e *Engine) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	e.debouncer.Flush()
	e.debouncer.Cancel()
	e.cancel()
}

// =============================================================================
// EVENTS
// =============================================================================
//
// Events are processed one at a time. dispatch appends to a queue; whoever
// finds the queue idle drains it. An event raised while processing (such as
// a sign-out triggered by an expired token during a load, delivered through
// the auth listener on the same goroutine) is queued rather than processed
// re-entrantly.
//
// =============================================================================

func (e *Engine) dispatch(ev Event) {
	e.qmu.Lock()
	e.queue = append(e.queue, ev)
	if e.draining {
		e.qmu.Unlock()
		return
	}
	e.draining = true
	for len(e.queue) > 0 {
		next := e.queue[0]
		e.queue = e.queue[1:]
		e.qmu.Unlock()
		e.process(next)
		e.qmu.Lock()
	}
	e.draining = false
	e.qmu.Unlock()
}

// localState is what gatherFacts reads from the store.
type localState struct {
	facts Facts
	cart  []model.CartLine
}

func (e *Engine) gatherFacts(ctx context.Context) localState {
	var ls localState
	ls.facts.Authenticated = e.auth.IsAuthenticated()

	if _, err := e.store.Get(ctx, localstore.KeyCart, &ls.cart); err != nil {
		e.logger.Warn("reading local cart failed", slog.String("error", err.Error()))
		ls.cart = nil
	}
	ls.cart = model.Normalize(ls.cart)
	ls.facts.LocalCartNonEmpty = len(ls.cart) > 0

	ls.facts.CheckoutJustCompleted = e.flag(ctx, localstore.KeyCheckoutComplete)
	ls.facts.MergedOnce = e.flag(ctx, localstore.KeyCartMerged)
	ls.facts.NewAccount = e.flag(ctx, localstore.KeyIsNewUser)
	return ls
}

func (e *Engine) flag(ctx context.Context, key string) bool {
	var v bool
	found, err := e.store.Get(ctx, key, &v)
	if err != nil {
		e.logger.Warn("reading flag failed", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return found && v
}

func (e *Engine) process(ev Event) {
	ctx := e.ctx
	ls := e.gatherFacts(ctx)

	e.mu.Lock()
	from := e.state
	next, effects := Transition(from, ev, ls.facts)
	e.state = next
	e.mu.Unlock()

	if from != next || len(effects) > 0 {
		e.logger.Debug("cart transition",
			slog.String("event", ev.String()),
			slog.String("from", from.String()),
			slog.String("to", next.String()),
			slog.String("effects", FormatEffects(effects)),
		)
	}

	mergeFailed := false
	for _, eff := range effects {
		switch eff {
		case EffectMergeGuestCart:
			if err := e.gateway.MergeCart(ctx, ls.cart); err != nil {
				if model.IsAuthorization(err) {
					e.expireSession()
					return
				}
				mergeFailed = true
				e.logger.Warn("guest cart merge skipped",
					slog.Int("lines", len(ls.cart)),
					slog.String("error", asMergeConflict(err).Error()),
				)
			}
		case EffectSetMergedFlag:
			if !mergeFailed {
				e.setFlag(ctx, localstore.KeyCartMerged)
			}
		case EffectDropLocalCart:
			e.deleteKeys(ctx, localstore.KeyCart)
			ls.cart = nil
		case EffectFetchRemote:
			if !e.fetchRemote(ctx, ls.cart) {
				return
			}
			e.dispatch(EventLoaded)
		default:
			e.apply(ctx, eff, ls)
		}
	}
}

// apply performs effects that need no network.
func (e *Engine) apply(ctx context.Context, eff Effect, ls localState) {
	switch eff {
	case EffectLoadLocal:
		e.mu.Lock()
		e.lines = model.CloneLines(ls.cart)
		e.pruneSelectionLocked()
		e.mu.Unlock()
	case EffectClearCheckoutFlag:
		e.deleteKeys(ctx, localstore.KeyCheckoutComplete)
	case EffectAdoptBaseline:
		e.mu.Lock()
		e.baseline = model.CloneLines(e.lines)
		e.mu.Unlock()
	case EffectSelectAll:
		e.mu.Lock()
		e.selectAllLocked()
		e.mu.Unlock()
	case EffectCancelSync:
		e.debouncer.Cancel()
		e.mu.Lock()
		e.epoch++
		e.mu.Unlock()
	case EffectResetMemory:
		e.mu.Lock()
		e.lines = nil
		e.baseline = nil
		e.selected = make(map[model.ProductRef]struct{})
		e.mu.Unlock()
	case EffectRemoveMergedFlag:
		e.deleteKeys(ctx, localstore.KeyCartMerged)
	case EffectRestart:
		e.dispatch(EventStart)
	}
}

// fetchRemote loads the server cart into the snapshot and baseline. It
// returns false when the load was abandoned because the session expired.
func (e *Engine) fetchRemote(ctx context.Context, local []model.CartLine) bool {
	remote, err := e.gateway.FetchCart(ctx)
	if err != nil {
		if model.IsAuthorization(err) {
			e.expireSession()
			return false
		}
		e.logger.Warn("fetching server cart failed, using local cart",
			slog.String("error", err.Error()),
		)
		remote = nil
	}

	lines := local
	if len(remote) > 0 {
		lines = remote
		// Server cart is authoritative now; the guest copy is spent
		e.deleteKeys(ctx, localstore.KeyCart)
	}

	e.mu.Lock()
	e.lines = model.CloneLines(lines)
	e.baseline = model.CloneLines(lines)
	e.pruneSelectionLocked()
	e.mu.Unlock()

	e.logger.Info("account cart loaded",
		slog.Int("lines", len(lines)),
		slog.Bool("from_server", len(remote) > 0),
	)
	return true
}

// expireSession handles an authorization failure from a background call.
func (e *Engine) expireSession() {
	e.logger.Warn("session expired during cart sync")
	e.notify(model.NoticeError, model.SessionExpiredMessage)
	e.auth.ForceSignOut()
}

func asMergeConflict(err error) error {
	if model.IsMergeConflict(err) {
		return err
	}
	return model.NewMergeConflictError(err)
}

// =============================================================================
// QUERIES
// =============================================================================

// Snapshot is a point-in-time copy of the cart for presentation.
type Snapshot struct {
	State            string             `json:"state"`
	Lines            []model.CartLine   `json:"lines"`
	Selected         []model.ProductRef `json:"selected"`
	TotalItems       int                `json:"total_items"`
	TotalPrice       model.Price        `json:"total_price"`
	SelectedSubtotal model.Price        `json:"selected_subtotal"`
}

// Snapshot returns a copy of the current cart.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		State:            e.state.String(),
		Lines:            model.CloneLines(e.lines),
		Selected:         e.selectedRefsLocked(),
		TotalItems:       totalItems(e.lines),
		TotalPrice:       model.Price(totalPrice(e.lines)),
		SelectedSubtotal: model.Price(e.selectedSubtotalLocked()),
	}
}

// State returns the engine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Lines returns a copy of the cart lines.
func (e *Engine) Lines() []model.CartLine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.CloneLines(e.lines)
}

// Baseline returns a copy of the last mirrored cart.
func (e *Engine) Baseline() []model.CartLine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.CloneLines(e.baseline)
}

// TotalItems returns the sum of quantities over the whole cart.
func (e *Engine) TotalItems() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return totalItems(e.lines)
}

// TotalPrice returns Σ price × quantity over the whole cart, in minor units.
func (e *Engine) TotalPrice() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return totalPrice(e.lines)
}

func totalItems(lines []model.CartLine) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

func totalPrice(lines []model.CartLine) int64 {
	var sum int64
	for _, l := range lines {
		sum += l.Subtotal()
	}
	return sum
}

// =============================================================================
// NOTICES
// =============================================================================

func (e *Engine) notify(level model.NoticeLevel, msg string) {
	n := model.Notice{Level: level, Message: msg}
	e.nmu.Lock()
	e.notices = append(e.notices, n)
	if len(e.notices) > maxNotices {
		e.notices = e.notices[len(e.notices)-maxNotices:]
	}
	e.nmu.Unlock()

	if e.opts.OnNotice != nil {
		e.opts.OnNotice(n)
	}
}

// DrainNotices returns and forgets queued notices, oldest first.
func (e *Engine) DrainNotices() []model.Notice {
	e.nmu.Lock()
	defer e.nmu.Unlock()
	out := e.notices
	e.notices = nil
	return out
}

// =============================================================================
// LOCAL STORE
// =============================================================================

// persistLocked writes the cart to the local store in Guest and Account
// mode, so edits survive a restart or sign-out. Failures are logged; memory
// stays authoritative.
func (e *Engine) persistLocked(ctx context.Context) {
	if e.state != Guest && e.state != Account {
		return
	}
	if err := e.store.Set(ctx, localstore.KeyCart, e.lines); err != nil {
		e.logger.Warn("saving local cart failed", slog.String("error", err.Error()))
	}
}

func (e *Engine) setFlag(ctx context.Context, key string) {
	if err := e.store.Set(ctx, key, true); err != nil {
		e.logger.Warn("writing flag failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (e *Engine) deleteKeys(ctx context.Context, keys ...string) {
	if err := e.store.Delete(ctx, keys...); err != nil {
		e.logger.Warn("deleting keys failed",
			slog.String("keys", fmt.Sprint(keys)),
			slog.String("error", err.Error()),
		)
	}
}
