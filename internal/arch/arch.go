// Package arch collects the L0 architecture primitives spec §2 calls
// out as the bottom layer everything else depends on: port I/O,
// MSR/CR register access, segment loads, TLB invalidation, the TSC,
// and interrupt gating (spec §2 "L0 Arch primitives"). Every hardware
// touch is behind the Ports interface so the layers above it (ksync's
// IrqGate, paging's MapFlush, trap's MSRConfig) stay host-testable,
// grounded on biscuit's own split between the hardware-facing
// Page_i/Blockmem_i/Disk_i interfaces and their pure-Go logic.
package arch

// Ports is the complete hardware-access surface the kernel core calls
// through. A real x86_64 build satisfies it with the asm-backed HW
// type in this package (ports_amd64.go/.s); hosted tests and tooling
// satisfy it with Fake.
type Ports interface {
	// In8/Out8 perform single-byte port I/O (spec §2 L0).
	In8(port uint16) uint8
	Out8(port uint16, value uint8)
	In32(port uint16) uint32
	Out32(port uint16, value uint32)

	// ReadMSR/WriteMSR access a model-specific register by number
	// (spec §4.6 SYSCALL MSR setup: EFER, STAR, LSTAR, SFMASK).
	ReadMSR(msr uint32) uint64
	WriteMSR(msr uint32, value uint64)

	// ReadCR0..ReadCR4 read the control registers spec §7's
	// MachineState snapshot records on panic.
	ReadCR0() uint64
	ReadCR2() uint64
	ReadCR3() uint64
	ReadCR4() uint64
	WriteCR3(value uint64)

	// FlushTLBAddr invalidates a single virtual address's TLB entry
	// (the x86_64 INVLPG instruction), the production backer of
	// paging.MapFlush (spec §3.5).
	FlushTLBAddr(virt uint64)
	// FlushTLBAll reloads CR3 with its current value, invalidating
	// every non-global TLB entry; used when an operation touches more
	// than one virtual address (e.g. AddressSpace construction).
	FlushTLBAll()

	// RDTSC returns the raw time-stamp counter (spec §2 L0 "TSC").
	RDTSC() uint64

	// DisableInterrupts masks maskable interrupts (CLI) and reports
	// whether they were enabled beforehand; EnableInterrupts executes
	// STI. Together these back ksync.IrqGate (spec §4.4 IrqSpinLock).
	DisableInterrupts() (wasEnabled bool)
	EnableInterrupts()

	// WriteGSBase and WriteKernelGSBase load GS_BASE/KERNEL_GS_BASE
	// (spec §4.5 init_gs_base).
	WriteGSBase(value uint64)
	WriteKernelGSBase(value uint64)
}

// MSR numbers spec §4.6 names by role, not by their hex values; kept
// here so trap.NewMSRConfig's caller can look them up without
// duplicating magic numbers.
const (
	MsrEFER  uint32 = 0xC000_0080
	MsrSTAR  uint32 = 0xC000_0081
	MsrLSTAR uint32 = 0xC000_0082
	MsrCSTAR uint32 = 0xC000_0083
	MsrSFMASK uint32 = 0xC000_0084
	MsrGSBase       uint32 = 0xC000_0101
	MsrKernelGSBase uint32 = 0xC000_0102
)

// EferSCE is the SYSCALL-enable bit in the EFER MSR (spec §4.6
// "EFER.SCE = 1").
const EferSCE uint64 = 1 << 0
