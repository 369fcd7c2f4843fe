package ksync

import (
	"runtime"
	"sync/atomic"
)

/// SeqLock implements the sequence lock described in spec §4.4: an
/// even sequence counter means the protected value is stable, odd
/// means a writer is mid-update. Readers retry if the counter was odd
/// at the start, or changed between the first and second load.
/// T must be a plain-old-data type safe to copy racily mid-write; the
/// retry loop discards any torn read.
type SeqLock[T any] struct {
	seq   atomic.Uint64
	value T
	level Level
	wmu   SpinLock // serializes writers only; readers never take it
}

/// NewSeqLock creates a SeqLock seeded with the given initial value.
func NewSeqLock[T any](level Level, initial T) *SeqLock[T] {
	return &SeqLock[T]{value: initial, level: level, wmu: SpinLock{level: level}}
}

/// Read returns a torn-free snapshot of the protected value.
func (s *SeqLock[T]) Read() T {
	for {
		s1 := s.seq.Load()
		if s1&1 != 0 {
			runtime.Gosched()
			continue
		}
		v := s.value
		s2 := s.seq.Load()
		if s1 == s2 {
			return v
		}
	}
}

/// Write replaces the protected value under the writer spin lock,
/// making the sequence counter odd for the duration of the update.
func (s *SeqLock[T]) Write(v T) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	s.seq.Add(1) // now odd: readers see a write in progress
	s.value = v
	s.seq.Add(1) // back to even: stable again
}
