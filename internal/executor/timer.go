package executor

import (
	"container/heap"
	"sync"
)

/// Tick counts 1 kHz timer interrupts since boot (spec §4.9: "the
/// timer driver fires at a nominal 1 kHz; 1 tick = 1 ms").
type Tick uint64

type timerEntry struct {
	deadline Tick
	waker    *Waker
	seq      uint64
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline != h[j].deadline {
		return h[i].deadline < h[j].deadline
	}
	return h[i].seq < h[j].seq
}
func (h timerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)        { *h = append(*h, x.(*timerEntry)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

/// TimerRegistry is the single global min-heap keyed by deadline tick
/// spec §4.9 describes. Timer interrupt handlers call Advance once per
/// tick; sleep_ticks-style futures call RegisterAt.
type TimerRegistry struct {
	mu   sync.Mutex
	now  Tick
	h    timerHeap
	seq  uint64
}

/// NewTimerRegistry creates an empty registry with the tick counter at
/// zero.
func NewTimerRegistry() *TimerRegistry { return &TimerRegistry{} }

/// Now returns the current tick count without advancing it.
func (r *TimerRegistry) Now() Tick {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now
}

/// RegisterAt schedules w to fire once r.Now() reaches deadline. If
/// deadline has already passed, w fires on the very next Advance.
func (r *TimerRegistry) RegisterAt(deadline Tick, w *Waker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	heap.Push(&r.h, &timerEntry{deadline: deadline, waker: w, seq: r.seq})
}

/// Advance increments the tick counter and returns every waker whose
/// deadline has now elapsed, in deadline order (spec §4.9 steps 1-2;
/// EOI'ing the LAPIC, step 3, is the caller's responsibility — it sits
/// in internal/trap, outside this package's scope).
func (r *TimerRegistry) Advance() []*Waker {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now++
	var fired []*Waker
	for r.h.Len() > 0 && r.h[0].deadline <= r.now {
		e := heap.Pop(&r.h).(*timerEntry)
		fired = append(fired, e.waker)
	}
	return fired
}
