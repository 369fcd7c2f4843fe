package ksync

// IrqGate abstracts saving/restoring the interrupt flag around a
// critical section (spec §4.4 "Save RFLAGS, CLI, ... RAII drop
// restores IF"). The production implementation lives in
// internal/arch; hosted tests use a fake that just counts disables,
// since there is no real IRQ state to race against outside a kernel.
type IrqGate interface {
	// Disable masks interrupts and returns the previous IF state, to
	// be handed back to Restore.
	Disable() (prevEnabled bool)
	Restore(prevEnabled bool)
}

/// IrqSpinLock is a SpinLock that additionally disables interrupts for
/// the duration of the critical section, so an interrupt handler
/// running on the same CPU cannot deadlock against itself (spec §4.4).
/// It is the lock primitive in this package that is safe to take on
/// code paths that may themselves be interrupted. WaitQueue does not
/// use it (see WaitQueue).
type IrqSpinLock struct {
	inner SpinLock
	gate  IrqGate
}

/// NewIrqSpinLock creates an IRQ-safe spin lock at the given level,
/// using gate to mask/restore interrupts.
func NewIrqSpinLock(level Level, gate IrqGate) *IrqSpinLock {
	return &IrqSpinLock{inner: SpinLock{level: level}, gate: gate}
}

/// IrqGuard is the RAII token returned by Lock; its Unlock restores
/// the saved interrupt-enable state after releasing the spin lock.
type IrqGuard struct {
	l    *IrqSpinLock
	prev bool
}

/// Lock disables interrupts, then spins for the underlying lock.
func (l *IrqSpinLock) Lock() IrqGuard {
	prev := l.gate.Disable()
	l.inner.Lock()
	return IrqGuard{l: l, prev: prev}
}

/// Unlock releases the spin lock and restores the interrupt-enable
/// state that was active before Lock was called.
func (g IrqGuard) Unlock() {
	g.l.inner.Unlock()
	g.l.gate.Restore(g.prev)
}

// NoopIrqGate is an IrqGate that performs no real interrupt masking;
// used by hosted code and tests that only need the lock's mutual
// exclusion, not actual IRQ safety.
type NoopIrqGate struct{}

func (NoopIrqGate) Disable() bool      { return true }
func (NoopIrqGate) Restore(bool)       {}
