package ksync

import "sync/atomic"

// nanosFn, once registered, supplies a monotonic nanosecond clock the
// stress delay uses to time its spins; until then MaybeDelay is a
// no-op, matching spec §4.4's "stress delay (optional,
// behind a cfg)" and the confirmed Open Question disposition in
// SPEC_FULL.md.
var nanosFn atomic.Pointer[func() uint64]

/// SetNanosFn registers the nanosecond clock callback that enables the
/// lock-stress delay. Passing nil disables it again.
func SetNanosFn(fn func() uint64) {
	if fn == nil {
		nanosFn.Store(nil)
		return
	}
	nanosFn.Store(&fn)
}

// xorshift64 is a per-CPU PRNG stream; StressDelayFor is a pure
// function of (seed) so it is reproducible in tests without a real
// clock (spec §8.2 "PRNG stress delay is a pure function of its
// per-CPU seed").
func xorshift64(seed uint64) uint64 {
	x := seed
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	return x
}

/// StressDelayFor is the pure core of the stress delay: given a
/// per-CPU PRNG seed, it returns the next seed and the number of
/// microseconds the caller should spin before acquiring a lock. It
/// performs no I/O and reads no clock, so it is deterministic for a
/// fixed seed (spec §8.2).
func StressDelayFor(seed uint64) (nextSeed uint64, spinMicros uint64) {
	next := xorshift64(seed)
	return next, next % 8 // widen race windows with a small, bounded spin
}

/// CPUStressState holds one CPU's PRNG seed for the stress delay. The
/// caller supplies and persists this (typically one instance per
/// percpu.CPU) since ksync has no notion of "current CPU" at its
/// layer.
type CPUStressState struct {
	seed uint64
}

/// NewCPUStressState seeds a per-CPU stress-delay state.
func NewCPUStressState(seed uint64) *CPUStressState {
	if seed == 0 {
		seed = 0x9E3779B97F4A7C15 // avoid the xorshift fixed point at 0
	}
	return &CPUStressState{seed: seed}
}

/// MaybeDelay spins for StressDelayFor's PRNG-derived number of
/// microseconds, timed with the registered nanosecond clock, if one
/// has been registered; otherwise it is a no-op.
func (s *CPUStressState) MaybeDelay() {
	fnPtr := nanosFn.Load()
	if fnPtr == nil {
		return
	}
	next, spins := StressDelayFor(s.seed)
	s.seed = next
	clock := *fnPtr
	start := clock()
	for clock()-start < spins*1000 {
		// busy-spin; this is intentionally not Gosched()-friendly, to
		// actually widen the race window rather than yield it away.
	}
}
