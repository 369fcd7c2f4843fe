package proc

import (
	"sync"
	"sync/atomic"

	"github.com/hadron-os/hadron/internal/vmm"
)

/// ProcessTable is the global Pid → *Process map (spec §3.8). PIDs are
/// allocated bump-only from nextPid, starting at 1 so Pid zero can
/// mean "no parent" (the kernel's own bootstrap process).
type ProcessTable struct {
	mu      sync.RWMutex
	procs   map[Pid]*Process
	nextPid atomic.Uint64
}

/// NewProcessTable returns an empty table whose first allocated Pid is
/// 1.
func NewProcessTable() *ProcessTable {
	t := &ProcessTable{procs: map[Pid]*Process{}}
	t.nextPid.Store(1)
	return t
}

/// allocPid returns the next Pid in the bump-only sequence.
func (t *ProcessTable) allocPid() Pid {
	return Pid(t.nextPid.Add(1) - 1)
}

/// Create allocates a fresh Pid, builds a Process around as, registers
/// it, and returns it (spec §8.3 scenario 2's "registration then
/// lookup yields the same *Process").
func (t *ProcessTable) Create(parentPid Pid, as *vmm.AddressSpace) *Process {
	pid := t.allocPid()
	p := newProcess(pid, parentPid, as)

	t.mu.Lock()
	t.procs[pid] = p
	t.mu.Unlock()
	return p
}

/// Lookup returns the process registered under pid, or ok=false if
/// none is (including after Unregister).
func (t *ProcessTable) Lookup(pid Pid) (*Process, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.procs[pid]
	return p, ok
}

/// Unregister removes pid from the table. It does not touch the
/// process's own state (callers call MarkExited separately); waitpid
/// still needs the *Process after unregistration to read its exit
/// status, so this is typically deferred until after the parent
/// collects it.
func (t *ProcessTable) Unregister(pid Pid) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.procs, pid)
}

/// Children returns every currently registered process whose
/// ParentPid is parent, in no particular order.
func (t *ProcessTable) Children(parent Pid) []*Process {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*Process
	for _, p := range t.procs {
		if p.ParentPid == parent {
			out = append(out, p)
		}
	}
	return out
}
