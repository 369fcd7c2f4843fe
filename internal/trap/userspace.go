package trap

import "github.com/hadron-os/hadron/internal/percpu"

/// UserEntry describes where a process task should resume userspace
/// execution (spec §4.6 enter_userspace_save).
type UserEntry struct {
	RIP uintptr
	RSP uintptr
}

/// Runner models the ring-3 execution a real kernel enters via
/// `iretq`: the binary format loader and userspace itself are external
/// collaborators (spec §1), so this package cannot literally run user
/// code. Instead a Runner stands in for "the CPU executing userspace
/// until the next trap", and is responsible for calling
/// cpu.UserCtx/TrapReason exactly as the naked assembly stubs would on
/// a syscall, fault, or preemption (spec §4.6).
type Runner interface {
	RunUntilTrap(cpu *percpu.CPU, entry UserEntry)
}

/// EnterUserspaceSave is the Go-hosted analogue of spec §4.6's
/// `enter_userspace_save`/`restore_kernel_context` setjmp/longjmp
/// pair: on real hardware this pushes callee-saved registers, stores
/// RSP into cpu.SavedRSP, builds an iretq frame, and zeroes GPRs
/// before iretq; "returning" happens only when a later trap's naked
/// stub restores cpu.SavedRSP and executes a bare `ret`, which
/// reenters this call as if it were an ordinary function return.
//
// Here, run encapsulates exactly that contract: it must leave
// cpu.TrapReason set to whatever caused the return before coming back
// to this function, and it runs synchronously on the calling
// goroutine so no real context switch occurs — this function simply
// records the (conceptual) saved-stack generation and delegates to
// run, asserting the postcondition a real trampoline would establish.
func EnterUserspaceSave(cpu *percpu.CPU, entry UserEntry, run Runner) percpu.TrapReason {
	cpu.TrapReason = percpu.TrapNone
	run.RunUntilTrap(cpu, entry)
	if cpu.TrapReason == percpu.TrapNone {
		panic("trap: Runner returned without setting TrapReason")
	}
	return cpu.TrapReason
}

/// MachineState is the CPU register snapshot rendered to the console
/// on a kernel panic (spec §7 "Kernel panics render the MachineState
/// snapshot").
type MachineState struct {
	CR0, CR2, CR3, CR4 uint64
	RFLAGS             uint64
	EFER               uint64
	CS, SS, DS, ES     uint16
	RIP, RSP           uint64
}

/// String renders the snapshot in the fixed field order spec §7 lists,
/// so panic output is stable and greppable.
func (m MachineState) String() string {
	return "CR0=" + hex64(m.CR0) + " CR2=" + hex64(m.CR2) + " CR3=" + hex64(m.CR3) +
		" CR4=" + hex64(m.CR4) + " RFLAGS=" + hex64(m.RFLAGS) + " EFER=" + hex64(m.EFER) +
		" CS=" + hex16(m.CS) + " SS=" + hex16(m.SS) + " DS=" + hex16(m.DS) + " ES=" + hex16(m.ES) +
		" RIP=" + hex64(m.RIP) + " RSP=" + hex64(m.RSP)
}

func hex64(v uint64) string { return toHex(v, 16) }
func hex16(v uint16) string { return toHex(uint64(v), 4) }

func toHex(v uint64, width int) string {
	const digits = "0123456789abcdef"
	buf := make([]byte, width+2)
	buf[0], buf[1] = '0', 'x'
	for i := width - 1; i >= 0; i-- {
		buf[2+i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf)
}
