package cartsync

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"storefront/internal/api"
	"storefront/internal/model"
	"storefront/internal/reconcile"
)

// maxConcurrentOps bounds the per-line calls a sync cycle has in flight.
const maxConcurrentOps = 4

// syncOp is one gateway call derived from the diff.
type syncOp struct {
	kind     string // add, remove, update, clear
	ref      model.ProductRef
	quantity int
	err      error
}

// syncOnce pushes the difference between the baseline and the selected cart
// to the server. It runs on the debouncer, never concurrently with itself.
func (e *Engine) syncOnce() {
	e.mu.Lock()
	if e.state != Account {
		e.mu.Unlock()
		return
	}
	e.seq++
	seq, epoch := e.seq, e.epoch
	current := model.CloneLines(e.lines)
	selected := reconcile.NewSet(e.selectedRefsLocked()...)
	baseline := model.CloneLines(e.baseline)
	e.mu.Unlock()

	diff := reconcile.DiffCart(baseline, current, selected)
	if diff.IsEmpty() {
		e.mu.Lock()
		if e.epoch == epoch && seq > e.appliedSeq {
			e.baseline = reconcile.SelectedSubset(current, selected)
			e.appliedSeq = seq
		}
		e.mu.Unlock()
		return
	}

	start := time.Now()
	ops := planOps(diff, len(current) == 0)
	e.runOps(e.ctx, ops)

	var failed []syncOp
	authFailed := false
	for _, op := range ops {
		if op.err == nil {
			continue
		}
		failed = append(failed, op)
		if model.IsAuthorization(op.err) {
			authFailed = true
		}
	}

	if authFailed {
		e.expireSession()
		return
	}

	e.mu.Lock()
	if e.epoch != epoch || seq <= e.appliedSeq {
		e.mu.Unlock()
		e.logger.Debug("discarding stale sync result",
			slog.Uint64("seq", seq),
			slog.Uint64("epoch", epoch),
		)
		return
	}
	if len(failed) == 0 {
		e.baseline = reconcile.SelectedSubset(current, selected)
	} else {
		e.baseline = applyOps(baseline, current, ops)
	}
	e.appliedSeq = seq
	e.mu.Unlock()

	attrs := []any{
		slog.Uint64("seq", seq),
		slog.Int("adds", len(diff.ToAdd)),
		slog.Int("removes", len(diff.ToRemove)),
		slog.Int("updates", len(diff.ToUpdate)),
		slog.Duration("duration", time.Since(start)),
	}
	if len(failed) == 0 {
		e.logger.Info("cart synced", attrs...)
		return
	}
	if api.IsCanceled(failed[0].err) {
		e.logger.Debug("cart sync interrupted", attrs...)
		return
	}
	attrs = append(attrs,
		slog.Int("failed", len(failed)),
		slog.String("error", failed[0].err.Error()),
	)
	e.logger.Warn("cart sync incomplete, will retry on next change", attrs...)
}

// planOps turns a diff into gateway calls. Emptying the cart is a single
// clear instead of one remove per line.
func planOps(diff *reconcile.LineItemDiff, cartEmpty bool) []syncOp {
	if cartEmpty && len(diff.ToAdd) == 0 && len(diff.ToUpdate) == 0 {
		return []syncOp{{kind: "clear"}}
	}
	ops := make([]syncOp, 0, diff.Len())
	for _, r := range diff.ToRemove {
		ops = append(ops, syncOp{kind: "remove", ref: r.ProductID})
	}
	for _, a := range diff.ToAdd {
		ops = append(ops, syncOp{kind: "add", ref: a.ProductID, quantity: a.Quantity})
	}
	for _, u := range diff.ToUpdate {
		ops = append(ops, syncOp{kind: "update", ref: u.ProductID, quantity: u.NewQuantity})
	}
	return ops
}

// runOps dispatches ops concurrently and records each result in place. A
// failed op does not cancel the others.
func (e *Engine) runOps(ctx context.Context, ops []syncOp) {
	var g errgroup.Group
	g.SetLimit(maxConcurrentOps)
	for i := range ops {
		op := &ops[i]
		g.Go(func() error {
			switch op.kind {
			case "clear":
				op.err = e.gateway.ClearCart(ctx)
			case "remove":
				op.err = e.gateway.RemoveItem(ctx, op.ref)
				if model.IsNotFound(op.err) {
					// Already gone from the server cart
					op.err = nil
				}
			case "add":
				op.err = e.gateway.AddItem(ctx, op.ref, op.quantity)
			case "update":
				op.err = e.gateway.UpdateQuantity(ctx, op.ref, op.quantity)
			}
			return nil
		})
	}
	g.Wait()
}

// applyOps returns baseline with the successful ops applied, so a partly
// failed cycle does not resend what already reached the server.
func applyOps(baseline, current []model.CartLine, ops []syncOp) []model.CartLine {
	next := model.CloneLines(baseline)
	for _, op := range ops {
		if op.err != nil {
			continue
		}
		switch op.kind {
		case "clear":
			next = next[:0]
		case "remove":
			if i := model.IndexOf(next, op.ref); i >= 0 {
				next = append(next[:i], next[i+1:]...)
			}
		case "add":
			if i := model.IndexOf(current, op.ref); i >= 0 {
				next = append(next, current[i])
			}
		case "update":
			if i := model.IndexOf(next, op.ref); i >= 0 {
				next[i].Quantity = op.quantity
			}
		}
	}
	return next
}
