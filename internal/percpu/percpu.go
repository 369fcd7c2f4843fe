// Package percpu implements per-CPU state: the fixed-offset CPU
// structure the naked trap stubs reach through GS-base, and the
// CpuLocal[T] generic container (spec §4.5).
package percpu

import "sync/atomic"

/// MaxCPUs bounds the number of CPU slots CpuLocal allocates eagerly;
/// spec leaves the exact figure to the implementation. 256 comfortably
/// covers any x86_64 system this kernel targets.
const MaxCPUs = 256

/// CPU is the per-CPU structure addressed via GS-base from assembly
/// (spec §4.5, Design Notes "two pieces of state must be per-CPU
/// pointer-reachable from the naked assembly stub"). KernelRSP and
/// UserRSP MUST stay the first two fields at their documented byte
/// offsets: a real x86_64 build's SYSCALL/trap stubs read them via
/// `gs:[0]` and `gs:[8]` respectively. Any struct change here must be
/// mirrored in the assembly stub (Design Notes: "generate the stub
/// from the struct layout" — cmd/hadron-gensections does not do
/// this).
type CPU struct {
	// Offset 0: kernel_rsp, read/written by the SYSCALL/trap entry
	// stubs via gs:[0].
	KernelRSP uintptr
	// Offset 8: user_rsp, the caller's RSP stashed on SYSCALL entry,
	// read/written via gs:[8].
	UserRSP uintptr

	// Offset 16: ID is this CPU's logical index into CpuLocal slices.
	ID int
	// Offset 24: APICID is the local APIC ID used to target IPIs
	// (spec §4.8).
	APICID uint32

	// Offset 32: UserCtx points at the save area the ring-3 preemption
	// path fills in before longjmp'ing back into the kernel (spec
	// §4.6 "Timer preemption").
	UserCtx *UserContext
	// Offset 40: SavedRSP is the process task's kernel stack pointer,
	// restored by restore_kernel_context (spec §4.6 setjmp/longjmp
	// pair).
	SavedRSP uintptr

	// TrapReason records why the last re-entry into the kernel
	// happened (spec §4.6).
	TrapReason TrapReason
}

/// TrapReason enumerates why control returned to the process task from
/// enter_userspace_save (spec §4.6, §4.10).
type TrapReason uint8

const (
	TrapNone TrapReason = iota
	TrapSyscall
	TrapFault
	TrapPreempted
)

/// UserContext is the save area for a preempted ring-3 task's GPRs and
/// trap frame (spec §4.6).
type UserContext struct {
	GPRs    [15]uint64
	RIP     uint64
	RSP     uint64
	RFLAGS  uint64
}

/// CpuLocal[T] wraps one T per CPU slot, indexed by the current CPU's
/// ID (spec §4.5). It is Send+Sync because each CPU only ever touches
/// its own slot once started; during setup, any CPU may write any
/// slot.
type CpuLocal[T any] struct {
	slots [MaxCPUs]T
}

/// NewCpuLocal creates a CpuLocal[T] with every slot at T's zero
/// value.
func NewCpuLocal[T any]() *CpuLocal[T] { return &CpuLocal[T]{} }

/// Get returns a pointer to the slot for the given CPU ID.
func (c *CpuLocal[T]) Get(cpuID int) *T { return &c.slots[cpuID] }

/// CPUTable owns the live *CPU for every online CPU, keyed by ID; it
/// stands in for "read current CPU via GS-base" in hosted code, which
/// instead threads the owning *CPU explicitly through call sites that
/// would, on real hardware, use assembly to load it from GS-base.
type CPUTable struct {
	cpus  [MaxCPUs]*CPU
	count atomic.Int32
}

/// NewCPUTable creates an empty CPU table.
func NewCPUTable() *CPUTable { return &CPUTable{} }

/// Register installs cpu at its own ID slot, bumping the online CPU
/// count. Called once per CPU during bring-up (spec §2 L6).
func (t *CPUTable) Register(cpu *CPU) {
	t.cpus[cpu.ID] = cpu
	t.count.Add(1)
}

/// Get returns the registered *CPU for id, or nil if none is
/// registered there.
func (t *CPUTable) Get(id int) *CPU { return t.cpus[id] }

/// Online returns the number of CPUs registered in this table.
func (t *CPUTable) Online() int32 { return t.count.Load() }
