package boot

import (
	"github.com/hadron-os/hadron/internal/executor"
	"github.com/hadron-os/hadron/internal/klog"
	"github.com/hadron-os/hadron/internal/percpu"
	"github.com/hadron-os/hadron/internal/trap"
)

// initTask is the "process task" spec §4.10 step 8 describes: an
// async function that repeatedly enters userspace via
// trap.EnterUserspaceSave and, on each return, inspects TrapReason.
// Syscall and preemption are routine returns handled elsewhere (the
// syscall dispatch table, the scheduler); a fault reason ends the
// task, matching spec §7's unrecoverable-fault handling for user
// processes.
type initTask struct {
	cpu   *percpu.CPU
	entry trap.UserEntry
	run   trap.Runner
	done  bool
}

// newInitTaskFuture builds the process task future for cpu/entry,
// using run as the (hosted or hardware) Runner that stands in for the
// iretq-to-ring3-until-next-trap step.
func newInitTaskFuture(cpu *percpu.CPU, entry trap.UserEntry, run trap.Runner) executor.Future {
	return &initTask{cpu: cpu, entry: entry, run: run}
}

// Poll runs one iteration of the trap loop per call, yielding Pending
// in between so the task composes with the rest of the async executor
// rather than busy-looping inside a single poll (spec §4.7's "tasks
// return Pending rather than blocking").
func (t *initTask) Poll(cx *executor.Context) executor.Poll {
	if t.done {
		return executor.Ready
	}
	reason := trap.EnterUserspaceSave(t.cpu, t.entry, t.run)
	switch reason {
	case percpu.TrapSyscall, percpu.TrapPreempted:
		// Routine re-entry: dispatch already happened in the naked
		// stub's Go-hosted continuation before this function regains
		// control (spec §4.6); wake this task so the executor polls it
		// again, and resume userspace on that next poll.
		cx.Waker.Wake(cx.Waker.HomeCPU())
		return executor.Pending
	case percpu.TrapFault:
		klog.Logf(klog.Error, "hadron: process task on cpu %d faulted, terminating", t.cpu.ID)
		t.done = true
		return executor.Ready
	default:
		t.done = true
		return executor.Ready
	}
}
