package cartsync

import (
	"sync"
	"time"
)

// Stopper is the part of *time.Timer the debouncer needs.
type Stopper interface {
	Stop() bool
}

// TimerFunc schedules f after d. Production uses AfterFunc; tests inject
// a manual clock.
type TimerFunc func(d time.Duration, f func()) Stopper

// AfterFunc is the real-time TimerFunc.
func AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// Debouncer runs a task on the trailing edge of a burst of triggers, with
// at most one run in flight.
//
// Schedule restarts the delay. When the delay expires while a run is in
// progress the trigger is kept, and the delay is re-armed once the run
// returns, so the state that caused it is synced by a later run.
type Debouncer struct {
	delay time.Duration
	run   func()
	after TimerFunc

	mu      sync.Mutex
	timer   Stopper
	gen     uint64 // invalidates timers that fired after Cancel or re-arm
	running bool
	pending bool
}

// NewDebouncer creates a debouncer for run. A nil after uses AfterFunc.
func NewDebouncer(delay time.Duration, run func(), after TimerFunc) *Debouncer {
	if after == nil {
		after = AfterFunc
	}
	return &Debouncer{delay: delay, run: run, after: after}
}

// Schedule (re)starts the delay; an earlier unexpired delay is discarded.
func (d *Debouncer) Schedule() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.armLocked()
}

// Cancel discards the pending delay and any trigger held for after the
// current run. A run already in progress is not interrupted.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = false
}

// Running reports whether a run is in progress.
func (d *Debouncer) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Armed reports whether a delay is counting down or a trigger is held.
func (d *Debouncer) Armed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil || d.pending
}

func (d *Debouncer) armLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
	}
	gen := d.gen
	d.timer = d.after(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	if d.running {
		d.pending = true
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.runAndRearm()
}

// Flush runs the task now if a delay is counting down, instead of waiting
// for it. It returns false when there was nothing to flush or a run is
// already in progress (the held trigger re-arms after it).
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	if d.timer == nil || d.running {
		d.mu.Unlock()
		return false
	}
	d.gen++
	d.timer.Stop()
	d.timer = nil
	d.running = true
	d.mu.Unlock()

	d.runAndRearm()
	return true
}

func (d *Debouncer) runAndRearm() {
	defer func() {
		d.mu.Lock()
		d.running = false
		if d.pending {
			d.pending = false
			d.armLocked()
		}
		d.mu.Unlock()
	}()

	d.run()
}
