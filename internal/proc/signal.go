package proc

import (
	"math/bits"
	"sync/atomic"
)

// Signal numbers this kernel recognizes, matching the original
// kernel's syscall ABI constants (POSIX-numbered).
const (
	SIGINT  = 2
	SIGQUIT = 3
	SIGKILL = 9
	SIGPIPE = 13
	SIGTERM = 15
	SIGCHLD = 17
	SIGSEGV = 11
	SIGSTOP = 19
)

// Reserved handler-table values; anything else is a userspace handler
// address.
const (
	SigDfl = 0
	SigIgn = 1
)

/// MaxSignal is the highest signal number this kernel supports (bits
/// 1..63 of the pending mask; bit 0 is unused).
const MaxSignal = 63

/// Signal is a Unix-style signal number.
type Signal int

/// IsValidSignal reports whether signum is in 1..=MaxSignal.
func IsValidSignal(signum int) bool {
	return signum >= 1 && signum <= MaxSignal
}

/// SignalAction is the default disposition applied when no handler is
/// registered.
type SignalAction int

const (
	ActionTerminate SignalAction = iota
	ActionIgnore
)

/// DefaultAction returns the default action for a signal number.
func DefaultAction(signum int) SignalAction {
	switch signum {
	case SIGINT, SIGKILL, SIGQUIT, SIGSEGV, SIGPIPE, SIGTERM:
		return ActionTerminate
	case SIGCHLD:
		return ActionIgnore
	default:
		return ActionTerminate
	}
}

/// DispositionKind distinguishes SignalDisposition variants.
type DispositionKind int

const (
	DispositionDefault DispositionKind = iota
	DispositionIgnore
	DispositionHandler
)

/// SignalDisposition is the result of resolving how a dequeued signal
/// should be handled.
type SignalDisposition struct {
	Kind    DispositionKind
	Action  SignalAction // valid when Kind == DispositionDefault
	Handler uint64       // valid when Kind == DispositionHandler
}

/// SignalState is a per-process atomic pending-signal bitmask plus a
/// 64-slot handler table, safe to post to from interrupt context
/// without taking any lock (spec §3.8, §4.10).
//
// Bit N of pending represents signal N (1-indexed; bit 0 is unused).
// handlers[N] holds SigDfl, SigIgn, or a userspace handler address.
type SignalState struct {
	pending  atomic.Uint64
	handlers [MaxSignal + 1]atomic.Uint64
}

/// NewSignalState returns a SignalState with no pending signals and
/// every handler at SigDfl.
func NewSignalState() *SignalState {
	return &SignalState{}
}

/// Post sets signum's pending bit. Safe to call from any context.
func (s *SignalState) Post(signum int) {
	if !IsValidSignal(signum) {
		return
	}
	s.pending.Or(1 << uint(signum))
}

/// Dequeue pops the highest-priority pending signal, clearing its bit,
/// or returns ok=false if nothing is pending. SIGKILL is always
/// dequeued before any other pending signal; otherwise the lowest
/// numbered signal wins.
func (s *SignalState) Dequeue() (sig Signal, ok bool) {
	for {
		pending := s.pending.Load()
		if pending == 0 {
			return 0, false
		}

		var signum int
		if pending&(1<<SIGKILL) != 0 {
			signum = SIGKILL
		} else {
			signum = bits.TrailingZeros64(pending)
		}

		mask := uint64(1) << uint(signum)
		if s.pending.CompareAndSwap(pending, pending&^mask) {
			return Signal(signum), true
		}
	}
}

/// HasPending reports whether any signal is currently pending.
func (s *SignalState) HasPending() bool { return s.pending.Load() != 0 }

/// SetHandler installs handler for signum, returning the previous
/// value. SIGKILL and SIGSTOP cannot be caught or ignored: ok is false
/// and the table is left untouched for those.
func (s *SignalState) SetHandler(signum int, handler uint64) (old uint64, ok bool) {
	if !IsValidSignal(signum) || signum == SIGKILL || signum == SIGSTOP {
		return 0, false
	}
	return s.handlers[signum].Swap(handler), true
}

/// GetHandler returns the raw handler-table value for signum (SigDfl,
/// SigIgn, or a handler address).
func (s *SignalState) GetHandler(signum int) uint64 {
	if !IsValidSignal(signum) {
		return SigDfl
	}
	return s.handlers[signum].Load()
}

/// Disposition resolves how signum should currently be handled.
func (s *SignalState) Disposition(signum int) SignalDisposition {
	if signum == SIGKILL || signum == SIGSTOP {
		return SignalDisposition{Kind: DispositionDefault, Action: DefaultAction(signum)}
	}
	switch h := s.GetHandler(signum); h {
	case SigDfl:
		return SignalDisposition{Kind: DispositionDefault, Action: DefaultAction(signum)}
	case SigIgn:
		return SignalDisposition{Kind: DispositionIgnore}
	default:
		return SignalDisposition{Kind: DispositionHandler, Handler: h}
	}
}
