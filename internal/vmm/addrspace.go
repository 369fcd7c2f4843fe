// Package vmm implements the kernel virtual memory manager: heap
// growth, the MMIO region allocator, the kernel stack allocator, and
// per-process address spaces sharing the kernel upper half (spec
// §3.4, §3.6, §4.3).
package vmm

import (
	"unsafe"

	"github.com/hadron-os/hadron/internal/errs"
	"github.com/hadron-os/hadron/internal/hhdm"
	"github.com/hadron-os/hadron/internal/mem"
	"github.com/hadron-os/hadron/internal/paging"
)

// pml4Entries is the number of entries in one PML4 table. Entries
// 256..511 (the upper half) describe the kernel; 0..255 describe the
// current process (spec §3.4).
const pml4Entries = 512
const upperHalfStart = 256

type pml4Table [pml4Entries]uint64

func pml4At(phys mem.PhysAddr) *pml4Table {
	v := hhdm.ToVirt(phys)
	return (*pml4Table)(unsafe.Pointer(uintptr(v.Uint64())))
}

/// KernelRoot holds the physical address of the single PML4
/// established at boot by the bootloader, describing the kernel's
/// upper-half mappings (spec §3.4). It never changes after boot: no
/// new kernel-range PDPT may be allocated once any AddressSpace
/// exists, or later processes would not observe it (Design Notes).
type KernelRoot struct {
	PML4 mem.PhysAddr
}

/// AddressSpace is a per-process page-table root plus lifecycle hooks.
/// The upper half is shared by reference (identical physical
/// sub-tree addresses across every process), so kernel memory is
/// visible everywhere and CR3 switches never require kernel TLB work
/// (spec §3.4).
type AddressSpace struct {
	pml4    mem.PhysAddr
	mapper  paging.PageMapper
	free    func(mem.PhysFrame)
	freed   bool
}

/// NewAddressSpace allocates a PML4 frame, zeroes its lower half, and
/// bit-copies the kernel root's upper half into it (spec §4.3). The
/// copy captures physical sub-tree addresses, not their contents, so
/// later additions to the kernel mapping (e.g. MMIO regions mapped
/// after process creation) are automatically visible to this address
/// space too.
func NewAddressSpace(root KernelRoot, fa paging.FrameAllocator, mapper paging.PageMapper, free func(mem.PhysFrame)) (*AddressSpace, error) {
	frame, ok := fa.AllocateFrame()
	if !ok {
		return nil, errs.NewVmmError(errs.OutOfMemory)
	}
	dst := pml4At(frame.StartAddress())
	src := pml4At(root.PML4)
	for i := 0; i < upperHalfStart; i++ {
		dst[i] = 0
	}
	for i := upperHalfStart; i < pml4Entries; i++ {
		dst[i] = src[i]
	}
	return &AddressSpace{pml4: frame.StartAddress(), mapper: mapper, free: free}, nil
}

/// Root returns the physical PML4 address, for loading into CR3.
func (as *AddressSpace) Root() mem.PhysAddr { return as.pml4 }

/// MapUserPage installs a single user-accessible mapping. Per spec
/// §5's shared-resource policy, AddressSpace mutations are not
/// internally locked; callers serialize per-process (typically by
/// running the owning process's task on a single-threaded async
/// context).
func (as *AddressSpace) MapUserPage(page mem.Page, frame mem.PhysFrame, flags paging.MapFlags, fa paging.FrameAllocator) (*paging.MapFlush, error) {
	return as.mapper.Map(as.pml4, page, frame, flags|paging.User, fa)
}

/// UnmapUserPage removes a single user-accessible mapping.
func (as *AddressSpace) UnmapUserPage(page mem.Page) (mem.PhysFrame, *paging.MapFlush, error) {
	return as.mapper.Unmap(as.pml4, page)
}

/// Translate performs a lookup in this address space, usable for both
/// kernel-upper-half and user-lower-half addresses.
func (as *AddressSpace) Translate(v mem.VirtAddr) (mem.PhysAddr, bool) {
	translator, ok := as.mapper.(paging.PageTranslator)
	if !ok {
		panic("vmm: mapper does not implement PageTranslator")
	}
	return translator.TranslateAddr(as.pml4, v)
}

/// Close frees the PML4 frame via the stored deallocation callback.
/// It does not touch any lower-half leaf frames — the caller
/// (process teardown) is responsible for walking and freeing those
/// first, since only it knows which are still referenced elsewhere
/// (e.g. COW-shared pages).
func (as *AddressSpace) Close() {
	if as.freed {
		return
	}
	as.freed = true
	as.free(mem.FrameFromStart(as.pml4, mem.Size4KiB))
}
