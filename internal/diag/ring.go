// Package diag implements the kernel's panic snapshot, profiler ring
// buffer, and disassembly rendering (spec §4.13), grounded on
// internal/trap's MachineState (reused rather than duplicated here)
// and on biscuit's own panic path (biscuit/src/runtime/panic.go),
// which dumps register state to the console on an unrecoverable
// fault.
package diag

import "sync/atomic"

// Sample is one profiler ring-buffer entry (spec §4.13): a
// (timestamp_tick, cpu_id, rip) triple written from the timer ISR.
// Every field is written with a single atomic store, so Sample itself
// holds no lock and Record is IRQ-context safe (spec §5's IRQ context
// rules: no blocking, no allocation, no lock acquisition).
type Sample struct {
	Tick  uint64
	CPUID uint32
	RIP   uint64
}

// Ring is a fixed-size, single-writer-per-slot profiler ring buffer.
// Unlike a conventional ring buffer, it never blocks a writer on a
// full buffer: the write cursor simply wraps, overwriting the oldest
// sample, since timer-ISR context (spec §5) can never wait for a
// consumer to catch up. Concurrent CPUs claim slots through one shared
// write cursor advanced with an atomic add, so no lock is taken in
// this context.
type Ring struct {
	slots []atomic.Uint64 // packed (cpu_id<<48 | low 48 bits of tick) — see pack/unpack
	rips  []atomic.Uint64
	next  atomic.Uint64
}

// NewRing allocates a ring buffer holding up to capacity samples.
// capacity is rounded up to the next power of two so the write cursor
// can wrap with a mask instead of a division.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	n := 1
	for n < capacity {
		n <<= 1
	}
	return &Ring{slots: make([]atomic.Uint64, n), rips: make([]atomic.Uint64, n)}
}

func pack(tick uint64, cpuID uint32) uint64 {
	return (uint64(cpuID) << 48) | (tick & 0x0000_FFFF_FFFF_FFFF)
}

func unpack(v uint64) (tick uint64, cpuID uint32) {
	return v & 0x0000_FFFF_FFFF_FFFF, uint32(v >> 48)
}

// Record appends a sample, overwriting the oldest entry once the ring
// is full. Safe to call from IRQ/timer-ISR context: it performs no
// allocation, no blocking, and only atomic stores (spec §5).
func (r *Ring) Record(tick uint64, cpuID uint32, rip uint64) {
	idx := r.next.Add(1) - 1
	slot := idx & uint64(len(r.slots)-1)
	r.rips[slot].Store(rip)
	r.slots[slot].Store(pack(tick, cpuID))
}

// Drain copies out every sample currently in the ring, oldest first,
// without resetting the cursor (samples are read-only once written;
// later writes may still overwrite them before a subsequent Drain,
// which is an accepted race in a lossy profiler, not a correctness
// bug). Intended to be called from ordinary (non-IRQ) task context
// (spec §4.13: "drained ... by a later non-IRQ task").
func (r *Ring) Drain() []Sample {
	total := r.next.Load()
	n := uint64(len(r.slots))
	count := total
	if count > n {
		count = n
	}
	out := make([]Sample, 0, count)
	start := total - count
	for i := start; i < total; i++ {
		slot := i & (n - 1)
		packed := r.slots[slot].Load()
		tick, cpuID := unpack(packed)
		out = append(out, Sample{Tick: tick, CPUID: cpuID, RIP: r.rips[slot].Load()})
	}
	return out
}

// Len reports how many samples Drain would currently return.
func (r *Ring) Len() int {
	total := r.next.Load()
	n := uint64(len(r.slots))
	if total > n {
		return int(n)
	}
	return int(total)
}
