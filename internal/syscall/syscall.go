// Package syscall implements the syscall ABI's register-convention
// bookkeeping, dispatch table, and user-pointer validation (spec §6.2,
// §6.3), grounded on the original kernel's hadron-syscall crate's
// syscall-number DSL and on biscuit's own `Syscall` dispatch switch in
// biscuit/src/kernel (a single large case over syscall number feeding
// typed argument helpers).
package syscall

import "github.com/hadron-os/hadron/internal/errs"

// Number identifies one syscall, matching spec §6.2's representative
// subset. Real numeric values are a DSL-assigned implementation
// detail upstream; this repository assigns small sequential values
// since nothing outside the dispatch table depends on the exact
// numbers.
type Number uint64

const (
	TaskExit Number = iota
	TaskInfo
	TaskSpawn
	TaskWait
	VnodeOpen
	VnodeRead
	VnodeWrite
	HandleDup
	HandlePipe
	Query
	MemMap
	MemUnmap
	ClockGettime
)

func (n Number) String() string {
	switch n {
	case TaskExit:
		return "task_exit"
	case TaskInfo:
		return "task_info"
	case TaskSpawn:
		return "task_spawn"
	case TaskWait:
		return "task_wait"
	case VnodeOpen:
		return "vnode_open"
	case VnodeRead:
		return "vnode_read"
	case VnodeWrite:
		return "vnode_write"
	case HandleDup:
		return "handle_dup"
	case HandlePipe:
		return "handle_pipe"
	case Query:
		return "query"
	case MemMap:
		return "mem_map"
	case MemUnmap:
		return "mem_unmap"
	case ClockGettime:
		return "clock_gettime"
	default:
		return "unknown_syscall"
	}
}

// Args is the SysV-convention argument vector a dispatcher receives
// after the naked entry stub's Linux-ABI-to-SysV-ABI remap (spec §4.6
// step 4: "Remap Linux syscall ABI (RAX=nr, RDI/RSI/RDX/R10/R8/R9) to
// SysV ABI (RDI=nr, RSI/RDX/RCX/R8/R9 for first five args)"). At most
// five arguments are ever passed (spec §6.2).
type Args [5]uint64

// RemapLinuxABI performs the pure register-shuffling spec §4.6 step 4
// describes, isolated from the naked assembly stub so it can be unit
// tested: rax carries the syscall number and rdi/rsi/rdx/r10/r8/r9
// carry up to five Linux-convention arguments, which become the SysV
// Args vector a Go-hosted dispatcher receives.
func RemapLinuxABI(rax, rdi, rsi, rdx, r10, r8 uint64) (Number, Args) {
	return Number(rax), Args{rdi, rsi, rdx, r10, r8}
}

// Handler is one syscall's implementation: given the calling process
// context (opaque to this package — it is whatever internal/proc
// hands the dispatcher) and the argument vector, return a raw result
// or an error to translate to -errno.
type Handler func(ctx any, args Args) (uint64, error)

// Table maps syscall numbers to handlers (spec §6.2's "representative
// subset"). It is built once during L9 bring-up and never mutated
// concurrently with dispatch.
type Table struct {
	handlers map[Number]Handler
}

// NewTable returns an empty dispatch table.
func NewTable() *Table { return &Table{handlers: make(map[Number]Handler)} }

// Register installs handler for n, overwriting any previous entry.
func (t *Table) Register(n Number, handler Handler) {
	t.handlers[n] = handler
}

// Dispatch invokes the handler registered for n. An unregistered
// number yields ENOSYS, matching every other error path's -errno
// convention rather than panicking — unlike an unhandled IDT vector
// (spec §7 tier 3), an unknown syscall number is routine userspace
// misbehavior, not a fatal hardware condition.
func (t *Table) Dispatch(ctx any, n Number, args Args) int64 {
	h, ok := t.handlers[n]
	if !ok {
		return -int64(errs.ENOSYS)
	}
	ret, err := h(ctx, args)
	if err != nil {
		return -int64(ErrnoOf(err))
	}
	return int64(ret)
}

// ErrnoOf maps any recoverable error this package's callers might
// return into the small fixed errno set spec §6.3 names, reusing the
// VmmError/FsError mappings internal/errs already implements (spec
// §7's "components surface recoverable errors up to the syscall
// boundary, which translates them to errno values").
func ErrnoOf(err error) errs.Errno {
	if err == nil {
		return 0
	}
	switch err.(type) {
	case *errs.FsError:
		return errs.FromFsError(err)
	case *errs.VmmError:
		return errs.FromVmmError(err)
	default:
		return errs.EIO
	}
}
