package ksync

import "sync/atomic"

/// Semaphore is a counting semaphore backed by an atomic permit count
/// and an internal wait queue (spec §4.4). It exposes a non-blocking
/// TryAcquire plus a Waiters queue so the async executor can build a
/// Pending/Ready future on top without this package depending on the
/// executor (spec §4.7 "Suspension points": wait queues are one of
/// them).
type Semaphore struct {
	permits atomic.Int32
	Waiters *WaitQueue
}

/// NewSemaphore creates a Semaphore with the given initial permit
/// count and a wait queue of the given capacity.
func NewSemaphore(level Level, initial int32, waiterCapacity int) *Semaphore {
	s := &Semaphore{Waiters: NewWaitQueue(level, waiterCapacity)}
	s.permits.Store(initial)
	return s
}

/// TryAcquire attempts to take one permit without blocking, returning
/// true on success.
func (s *Semaphore) TryAcquire() bool {
	for {
		p := s.permits.Load()
		if p <= 0 {
			return false
		}
		if s.permits.CompareAndSwap(p, p-1) {
			return true
		}
	}
}

/// Release returns one permit and wakes the oldest waiter, if any.
func (s *Semaphore) Release() {
	s.permits.Add(1)
	s.Waiters.WakeOne()
}

/// Available returns the current permit count.
func (s *Semaphore) Available() int32 { return s.permits.Load() }
