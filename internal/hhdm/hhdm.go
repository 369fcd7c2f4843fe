// Package hhdm implements the higher-half direct map: a constant-offset
// translation from any RAM-backed physical address to a kernel-virtual
// pointer (spec §3.3).
package hhdm

import (
	"sync/atomic"

	"github.com/hadron-os/hadron/internal/mem"
)

// offset is established exactly once at boot by Init, then read by
// every later translation; Acquire/Release give every CPU a consistent
// view without a lock on the hot path (spec §5 memory model).
var offset atomic.Uint64
var initialized atomic.Bool

/// Init records HHDM_OFFSET from the boot info (spec §6.1
/// BootInfo.hhdm_offset). Calling it twice panics: the offset is fixed
/// for the lifetime of the boot session.
func Init(hhdmOffset uint64) {
	if !initialized.CompareAndSwap(false, true) {
		panic("hhdm: Init called twice")
	}
	offset.Store(hhdmOffset)
}

/// Offset returns the current HHDM offset. Panics if Init has not run.
func Offset() uint64 {
	if !initialized.Load() {
		panic("hhdm: Offset read before Init")
	}
	return offset.Load()
}

/// ToVirt translates a RAM-backed physical address to its
/// direct-mapped kernel-virtual address.
func ToVirt(p mem.PhysAddr) mem.VirtAddr {
	return mem.MustVirtAddr(p.Uint64() + Offset())
}

/// ToPhys translates a direct-mapped kernel-virtual address back to
/// its physical address. Panics (programmer error, spec §7 tier 2) if
/// v lies below the direct map base — it was never produced by ToVirt.
func ToPhys(v mem.VirtAddr) mem.PhysAddr {
	off := Offset()
	if v.Uint64() < off {
		panic("hhdm: virtual address below direct map base")
	}
	return mem.PhysAddr(v.Uint64() - off)
}

/// ResetForTest reinitializes the HHDM offset outside of the normal
/// once-per-boot Init path. It exists only so other packages' hosted
/// tests (paging, vmm) can stand up a fresh direct-map identity
/// mapping per test case; production boot code must use Init.
func ResetForTest(hhdmOffset uint64) {
	offset.Store(hhdmOffset)
	initialized.Store(true)
}

/// ForgetForTest clears the once-per-boot guard without touching the
/// stored offset, so a test harness that exercises the real Init path
/// repeatedly (e.g. internal/boot running kernel_init once per test
/// case) can do so without tripping Init's double-call panic.
/// Production code never calls this.
func ForgetForTest() {
	initialized.Store(false)
}
