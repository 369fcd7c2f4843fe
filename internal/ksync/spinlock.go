// Package ksync implements the kernel's synchronization primitives:
// SpinLock/IrqSpinLock/RwLock/SeqLock/Semaphore/Condvar/WaitQueue/
// LazyLock, plus leveled deadlock avoidance and the optional PRNG
// stress delay (spec §4.4). All locks here are fail-fast and
// non-recursive.
package ksync

import (
	"runtime"
	"sync/atomic"
)

/// SpinLock is a TTAS (test-and-test-and-set) spin lock. Acquire spins
/// on a relaxed read before attempting the CAS, to avoid hammering the
/// cache line with failed exclusive-access requests under contention
/// (spec §4.4).
type SpinLock struct {
	state atomic.Bool
	level Level
}

/// NewSpinLock creates a spin lock at the given deadlock-avoidance
/// level (spec §4.4 "Leveled deadlock avoidance").
func NewSpinLock(level Level) *SpinLock {
	return &SpinLock{level: level}
}

/// Lock spins until the lock is acquired, registering its level with
/// the calling goroutine's held-lock set first.
func (l *SpinLock) Lock() {
	enter(l.level)
	for {
		if !l.state.Load() {
			if l.state.CompareAndSwap(false, true) {
				return
			}
		}
		runtime.Gosched()
	}
}

/// TryLock attempts to acquire the lock without spinning, returning
/// false immediately on contention.
func (l *SpinLock) TryLock() bool {
	if l.state.CompareAndSwap(false, true) {
		enter(l.level)
		return true
	}
	return false
}

/// Unlock releases the lock with Release ordering.
func (l *SpinLock) Unlock() {
	l.state.Store(false)
	leave(l.level)
}
