package ksync

import (
	"runtime"
	"sync/atomic"
)

/// Locker is satisfied by SpinLock and the stdlib sync.Mutex (not by
/// IrqSpinLock, whose Lock returns an IrqGuard); Condvar.Wait needs
/// only Lock/Unlock.
type Locker interface {
	Lock()
	Unlock()
}

/// Condvar is a condition variable built on a WaitQueue (spec §4.4).
/// Wait releases the caller's lock, blocks until Notify, then
/// reacquires the lock before returning — the classic Mesa-style
/// condvar contract. WaitAsync instead registers a caller-supplied
/// waker and releases the lock without blocking, so an executor future
/// can return Pending until notified.
type Condvar struct {
	waiters *WaitQueue
	gen     atomic.Uint64
}

/// NewCondvar creates a Condvar with the given waiter queue capacity.
func NewCondvar(level Level, waiterCapacity int) *Condvar {
	return &Condvar{waiters: NewWaitQueue(level, waiterCapacity)}
}

type spinWaiter struct {
	done atomic.Bool
}

func (w *spinWaiter) Wake() { w.done.Store(true) }

/// Wait releases lock, blocks (spinning) until Notify is observed,
/// then reacquires lock before returning.
func (c *Condvar) Wait(lock Locker) {
	w := &spinWaiter{}
	c.waiters.Register(w)
	lock.Unlock()
	for !w.done.Load() {
		runtime.Gosched()
	}
	lock.Lock()
}

/// WaitAsync registers w (typically the executor's task waker) and
/// releases lock, without blocking; the caller's future should return
/// Pending and rely on w.Wake() to be polled again (spec §4.4 "async
/// wait_async(guard) yields until notified").
func (c *Condvar) WaitAsync(lock Locker, w Waker) {
	c.waiters.Register(w)
	lock.Unlock()
}

/// NotifyOne wakes a single waiter.
func (c *Condvar) NotifyOne() bool { return c.waiters.WakeOne() }

/// NotifyAll wakes every waiter.
func (c *Condvar) NotifyAll() int { return c.waiters.WakeAll() }
