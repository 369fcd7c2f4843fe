package proc

import (
	"sync"
	"sync/atomic"

	"github.com/hadron-os/hadron/internal/ksync"
	"github.com/hadron-os/hadron/internal/percpu"
	"github.com/hadron-os/hadron/internal/vmm"
)

/// ExitStatus records how a process terminated, for waitpid to
/// collect.
type ExitStatus struct {
	Code int
}

/// Process is one schedulable unit: an address space, an FD table
/// (guarded by its own lock since syscalls mutate it independently of
/// the process's signal and exit state), a signal state, a trap
/// context, and a parent link (spec §3.8).
type Process struct {
	Pid       Pid
	ParentPid Pid

	AS *vmm.AddressSpace

	fdMu sync.Mutex
	Fds  *FileDescriptorTable

	Signals *SignalState

	// UserCtx holds the most recent preemption save area for this
	// process's task (spec §4.6); nil until the first preemption.
	UserCtx *percpu.UserContext

	exited   atomic.Bool
	status   ExitStatus
	exitOnce sync.Once

	// exitWaiters wakes waitpid callers blocked on this process; sized
	// generously since it is rare for many callers to wait on the same
	// child concurrently.
	exitWaiters *ksync.WaitQueue
}

/// newProcess builds a Process with an empty FD table, no pending
/// signals, and the given parent.
func newProcess(pid, parentPid Pid, as *vmm.AddressSpace) *Process {
	return &Process{
		Pid:         pid,
		ParentPid:   parentPid,
		AS:          as,
		Fds:         NewFileDescriptorTable(),
		Signals:     NewSignalState(),
		exitWaiters: ksync.NewWaitQueue(ksync.LevelProcessTable, 32),
	}
}

/// WithFds runs fn with the FD table locked against concurrent
/// mutation from another syscall on the same process.
func (p *Process) WithFds(fn func(*FileDescriptorTable)) {
	p.fdMu.Lock()
	defer p.fdMu.Unlock()
	fn(p.Fds)
}

/// Exited reports whether the process has already terminated.
func (p *Process) Exited() bool { return p.exited.Load() }

/// Status returns the recorded exit status; only meaningful once
/// Exited() is true.
func (p *Process) Status() ExitStatus { return p.status }

/// MarkExited records the process's exit status exactly once, frees
/// its address space, and wakes every waitpid caller blocked on it
/// (spec §4.10 "Default(Terminate)").
func (p *Process) MarkExited(status ExitStatus) {
	p.exitOnce.Do(func() {
		p.status = status
		p.exited.Store(true)
		if p.AS != nil {
			p.AS.Close()
		}
		p.exitWaiters.WakeAll()
	})
}

/// WaitExit registers w to be woken when this process exits. Callers
/// must re-check Exited() after being woken, since WaitQueue delivery
/// and process exit are not a single atomic step.
func (p *Process) WaitExit(w ksync.Waker) {
	p.exitWaiters.Register(w)
}
