package cartsync

import "strings"

// State is the engine's mode with respect to the signed-in shopper.
type State int

const (
	// Bootstrapping is the initial state and the state after sign-out.
	Bootstrapping State = iota
	// Guest keeps the cart in the local store only.
	Guest
	// LoadingAccount is merging the guest cart and fetching the server cart.
	LoadingAccount
	// Account mirrors the cart to the server through debounced syncs.
	Account
)

func (s State) String() string {
	switch s {
	case Bootstrapping:
		return "Bootstrapping"
	case Guest:
		return "Guest"
	case LoadingAccount:
		return "LoadingAccount"
	case Account:
		return "Account"
	default:
		return "Unknown"
	}
}

// Event drives a state transition.
type Event int

const (
	EventStart     Event = iota // engine start, or restart after sign-out
	EventSignedIn               // auth signal reported a sign-in
	EventSignedOut              // auth signal reported a sign-out
	EventLoaded                 // account load (merge + fetch) finished
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "Start"
	case EventSignedIn:
		return "SignedIn"
	case EventSignedOut:
		return "SignedOut"
	case EventLoaded:
		return "Loaded"
	default:
		return "Unknown"
	}
}

// Facts are the observations a transition depends on, gathered by the
// engine from the auth signal and the local store before calling Transition.
type Facts struct {
	Authenticated         bool
	CheckoutJustCompleted bool // checkoutComplete flag present
	LocalCartNonEmpty     bool
	MergedOnce            bool // cartMerged flag present
	NewAccount            bool // isNewUser flag present
}

// Effect is a side effect the engine performs after a transition, in order.
type Effect int

const (
	EffectLoadLocal         Effect = iota // snapshot = local cart
	EffectClearCheckoutFlag               // delete checkoutComplete
	EffectMergeGuestCart                  // bulk-merge local cart to the server
	EffectSetMergedFlag                   // write cartMerged
	EffectFetchRemote                     // fetch server cart, set snapshot and baseline
	EffectSelectAll                       // selection = every ref in the snapshot
	EffectCancelSync                      // drop pending sync trigger, bump epoch
	EffectResetMemory                     // clear snapshot, selection and baseline
	EffectRemoveMergedFlag                // delete cartMerged
	EffectRestart                         // feed EventStart
	EffectDropLocalCart                   // delete the stored cart of the previous account
	EffectAdoptBaseline                   // baseline = snapshot
)

func (e Effect) String() string {
	switch e {
	case EffectLoadLocal:
		return "LoadLocal"
	case EffectClearCheckoutFlag:
		return "ClearCheckoutFlag"
	case EffectMergeGuestCart:
		return "MergeGuestCart"
	case EffectSetMergedFlag:
		return "SetMergedFlag"
	case EffectFetchRemote:
		return "FetchRemote"
	case EffectSelectAll:
		return "SelectAll"
	case EffectCancelSync:
		return "CancelSync"
	case EffectResetMemory:
		return "ResetMemory"
	case EffectRemoveMergedFlag:
		return "RemoveMergedFlag"
	case EffectRestart:
		return "Restart"
	case EffectDropLocalCart:
		return "DropLocalCart"
	case EffectAdoptBaseline:
		return "AdoptBaseline"
	default:
		return "Unknown"
	}
}

// FormatEffects renders effects as "A, B, C" ("-" when empty).
func FormatEffects(effects []Effect) string {
	if len(effects) == 0 {
		return "-"
	}
	names := make([]string, len(effects))
	for i, e := range effects {
		names[i] = e.String()
	}
	return strings.Join(names, ", ")
}

// Transition is the engine's state machine. It is pure: no I/O, no timers.
// Unhandled (state, event) pairs leave the state unchanged with no effects.
func Transition(s State, e Event, f Facts) (State, []Effect) {
	// Sign-out resets from anywhere. The local cart is kept so the guest
	// cart reappears after re-bootstrap.
	if e == EventSignedOut {
		return Bootstrapping, []Effect{
			EffectCancelSync,
			EffectResetMemory,
			EffectRemoveMergedFlag,
			EffectRestart,
		}
	}

	switch s {
	case Bootstrapping:
		if e != EventStart {
			return s, nil
		}
		if f.CheckoutJustCompleted {
			// An order was just placed: do not merge or fetch, or the
			// ordered lines could come back from the server cart. A signed-in
			// shopper still syncs from the stored cart.
			if f.Authenticated {
				return Account, []Effect{EffectLoadLocal, EffectClearCheckoutFlag, EffectAdoptBaseline, EffectSelectAll}
			}
			return Guest, []Effect{EffectLoadLocal, EffectClearCheckoutFlag, EffectSelectAll}
		}
		if !f.Authenticated {
			return Guest, []Effect{EffectLoadLocal, EffectSelectAll}
		}
		return LoadingAccount, append([]Effect{EffectLoadLocal}, accountLoad(f)...)

	case Guest:
		if e != EventSignedIn {
			return s, nil
		}
		return LoadingAccount, accountLoad(f)

	case LoadingAccount:
		switch e {
		case EventLoaded:
			return Account, []Effect{EffectSelectAll}
		case EventSignedIn:
			return LoadingAccount, switchAccount()
		}
		return s, nil
	}

	// Account: a sign-in without a sign-out in between is another account
	// taking over. Start and Loaded are stale.
	if e == EventSignedIn {
		return LoadingAccount, switchAccount()
	}
	return s, nil
}

// switchAccount reloads for a new account. The previous account's cart,
// baseline and pending sync are dropped; there is no guest cart to merge.
func switchAccount() []Effect {
	return []Effect{EffectCancelSync, EffectResetMemory, EffectDropLocalCart, EffectFetchRemote}
}

// accountLoad is the effect list on entering LoadingAccount.
func accountLoad(f Facts) []Effect {
	var effects []Effect
	if f.LocalCartNonEmpty && !f.MergedOnce && f.NewAccount {
		effects = append(effects, EffectMergeGuestCart, EffectSetMergedFlag)
	}
	return append(effects, EffectFetchRemote)
}
