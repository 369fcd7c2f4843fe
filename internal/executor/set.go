package executor

import "sync/atomic"

/// ExecutorSet owns every CPU's Executor and the shared wake-IPI
/// collaborator (spec §4.7's "one executor per CPU" model plus §4.8's
/// SMP wakeup). It is the unit a single kernel instance constructs
/// once, during bring-up, with one Executor per online CPU.
type ExecutorSet struct {
	executors []*Executor
	ipi       IPISender
	nextID    atomic.Uint64
	// No steal cursor is kept here: the pseudo-random victim offset
	// spec §4.8 describes as "derived from timer ticks" is passed by
	// StealOne's callers, so this package stays independent of the
	// timer driver's clock source.
}

/// NewExecutorSet builds one Executor per CPU ID in [0, cpuCount), wired
/// to ipi for remote wakeups. A nil ipi installs a no-op sender, which
/// is only sound for single-CPU configurations.
func NewExecutorSet(cpuCount int, ipi IPISender) *ExecutorSet {
	if ipi == nil {
		ipi = noopIPISender{}
	}
	s := &ExecutorSet{executors: make([]*Executor, cpuCount), ipi: ipi}
	for i := range s.executors {
		s.executors[i] = NewExecutor(i)
	}
	return s
}

/// Executor returns the executor owning cpuID.
func (s *ExecutorSet) Executor(cpuID int) *Executor { return s.executors[cpuID] }

/// CPUCount reports how many per-CPU executors this set manages.
func (s *ExecutorSet) CPUCount() int { return len(s.executors) }

/// Spawn installs future as a new task homed on homeCPU, at the given
/// priority, and marks it ready for its first poll.
func (s *ExecutorSet) Spawn(homeCPU int, priority Priority, affinity int, future Future, meta TaskMeta) TaskId {
	id := TaskId(s.nextID.Add(1))
	entry := &TaskEntry{ID: id, Priority: priority, Future: future, Meta: meta, Affinity: affinity}

	e := s.executors[homeCPU]
	e.mu.Lock()
	e.insertLocked(entry)
	e.pushReadyLocked(id, priority)
	e.mu.Unlock()
	return id
}

/// NewWaker mints the stable waker a task must register with its
/// Context before returning Pending (spec §4.7).
func (s *ExecutorSet) NewWaker(id TaskId, homeCPU int) *Waker {
	return &Waker{taskID: id, cpuID: homeCPU, set: s}
}

/// wake implements the waker contract's decode-push-IPI sequence
/// (spec §4.7): push taskID onto homeCPU's ready queue, then send a
/// wake IPI only if callerCPUID differs from homeCPU (invariant iii:
/// "at most one IPI per wake event").
func (s *ExecutorSet) wake(taskID TaskId, homeCPU, callerCPUID int) {
	e := s.executors[homeCPU]
	e.mu.Lock()
	entry, ok := e.tasks[taskID]
	already := false
	if ok {
		already = e.isReadyLocked(taskID)
		if !already {
			e.pushReadyLocked(taskID, entry.Priority)
		}
	}
	e.mu.Unlock()

	if !ok || already {
		return
	}
	if callerCPUID != homeCPU {
		s.ipi.SendWake(homeCPU)
	}
}

/// isReadyLocked reports whether id is already sitting in some
/// priority lane, suppressing the redundant pushes/IPIs invariant
/// (iii) allows callers to avoid. Caller must hold e.mu.
func (e *Executor) isReadyLocked(id TaskId) bool {
	for p := 0; p < numPriorities; p++ {
		for _, queued := range e.ready[p] {
			if queued == id {
				return true
			}
		}
	}
	return false
}

/// PollOnce runs one iteration of the poll loop on cpuID (spec §4.7
/// step 1-4): pop ready, look up the entry, poll it with a freshly
/// minted waker, and drop completed tasks. It returns true if a task
/// was polled, false if the ready queue was empty (the caller should
/// then try StealOne, and failing that, idle).
func (s *ExecutorSet) PollOnce(cpuID int) bool {
	e := s.executors[cpuID]

	e.mu.Lock()
	id, ok := e.popReadyLocked()
	if !ok {
		e.mu.Unlock()
		return false
	}
	entry, present := e.tasks[id]
	e.mu.Unlock()

	if !present {
		// Task completed or was stolen away between enqueue and poll.
		return true
	}

	cx := &Context{Waker: s.NewWaker(id, cpuID)}
	if entry.Future.Poll(cx) == Ready {
		e.mu.Lock()
		delete(e.tasks, id)
		e.mu.Unlock()
	}
	return true
}

/// StealOne attempts to steal exactly one task entry for thiefCPU from
/// another CPU's executor, starting the victim search at
/// pseudoOffset (spec §4.8 "iterate other CPUs starting at a
/// pseudo-random offset derived from timer ticks"). It returns the
/// stolen TaskId and true on success.
//
// Only currently-ready tasks that are unaffined or affined to
// thiefCPU are eligible: a task mid-poll
// (not in any ready lane) is left alone so stealing never races a
// concurrent PollOnce on the same entry.
func (s *ExecutorSet) StealOne(thiefCPU int, pseudoOffset int) (TaskId, bool) {
	n := len(s.executors)
	if n < 2 {
		return 0, false
	}
	for i := 1; i < n; i++ {
		victimID := (thiefCPU + pseudoOffset + i) % n
		if victimID == thiefCPU {
			continue
		}
		victim := s.executors[victimID]
		if !victim.mu.TryLock() {
			continue
		}
		id, entry, ok := victim.popStealableLocked(thiefCPU)
		victim.mu.Unlock()
		if !ok {
			continue
		}

		thief := s.executors[thiefCPU]
		thief.mu.Lock()
		thief.insertLocked(entry)
		thief.pushReadyLocked(id, entry.Priority)
		thief.mu.Unlock()
		return id, true
	}
	return 0, false
}

/// popStealableLocked removes and returns the first ready, unaffined
/// (or thiefCPU-affined) task entry, if any. Caller must hold e.mu.
func (e *Executor) popStealableLocked(thiefCPU int) (TaskId, *TaskEntry, bool) {
	for p := 0; p < numPriorities; p++ {
		lane := e.ready[p]
		for i, id := range lane {
			entry := e.tasks[id]
			if entry == nil {
				continue
			}
			if entry.Affinity != -1 && entry.Affinity != thiefCPU {
				continue
			}
			e.ready[p] = append(lane[:i:i], lane[i+1:]...)
			delete(e.tasks, id)
			return id, entry, true
		}
	}
	return 0, nil, false
}
