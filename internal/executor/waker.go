package executor

/// IPISender delivers the wake IPI spec §4.8 describes: its sole job
/// is to break a CPU out of `hlt`. A production build backs this with
/// a LAPIC ICR write; hosted tests use a recording fake.
type IPISender interface {
	SendWake(targetCPUID int)
}

/// noopIPISender is used when an ExecutorSet is built without an
/// explicit sender (e.g. single-CPU configurations, where a wake
/// always targets "current" and so never needs an IPI).
type noopIPISender struct{}

func (noopIPISender) SendWake(int) {}

/// Waker is the stable, cloneable handle a Future registers with
/// whatever it's waiting on. Its data is exactly the pair spec §4.7
/// describes encoding into a RawWaker: (task_id, cpu_id).
type Waker struct {
	taskID TaskId
	cpuID  int
	set    *ExecutorSet
}

/// Wake pushes the task back onto its home CPU's ready queue and, if
/// the caller is running on a different CPU, sends a wake IPI (spec
/// §4.7's wake/wake_by_ref contract — Go's garbage collector makes the
/// Rust drop(w) no-op moot, so there is no separate WakeByRef).
func (w *Waker) Wake(callerCPUID int) {
	w.set.wake(w.taskID, w.cpuID, callerCPUID)
}

/// TaskID reports which task this waker belongs to, mostly useful for
/// logging and tests.
func (w *Waker) TaskID() TaskId { return w.taskID }

/// HomeCPU reports the CPU this waker re-homes its task to.
func (w *Waker) HomeCPU() int { return w.cpuID }
