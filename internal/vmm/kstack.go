package vmm

import (
	"sync"

	"github.com/hadron-os/hadron/internal/errs"
	"github.com/hadron-os/hadron/internal/mem"
	"github.com/hadron-os/hadron/internal/paging"
)

/// KernelStackPages is the number of 4 KiB frames backing one kernel
/// stack, not counting its guard page.
const KernelStackPages = 4

/// KernelStackAllocator hands out kernel stacks in a dedicated virtual
/// window, each with an unmapped guard page immediately below it so
/// that overflow takes a page fault rather than corrupting
/// neighboring BSS (spec §3.6, §4.3).
type KernelStackAllocator struct {
	mu     sync.Mutex
	root   mem.PhysAddr
	mapper paging.PageMapper
	fa     paging.FrameAllocator
	next   mem.VirtAddr
}

/// NewKernelStackAllocator reserves stacks starting at `start`, each
/// stack plus its guard page occupying (KernelStackPages+1) pages of
/// virtual space.
func NewKernelStackAllocator(root mem.PhysAddr, mapper paging.PageMapper, fa paging.FrameAllocator, start mem.VirtAddr) *KernelStackAllocator {
	return &KernelStackAllocator{root: root, mapper: mapper, fa: fa, next: start}
}

/// KernelStack is a single allocated kernel stack (spec §4.3).
type KernelStack struct {
	guardPage mem.VirtAddr
	base      mem.VirtAddr
	top       mem.VirtAddr
}

/// Top returns the initial stack pointer value (the highest mapped
/// address, exclusive).
func (s KernelStack) Top() mem.VirtAddr { return s.top }

/// Allocate maps KernelStackPages frames and leaves one unmapped guard
/// page directly below the mapped range.
func (a *KernelStackAllocator) Allocate() (KernelStack, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	guard := a.next
	base := mem.VirtAddr(guard.Uint64() + mem.PageSizeBytes)

	for i := 0; i < KernelStackPages; i++ {
		frame, ok := a.fa.AllocateFrame()
		if !ok {
			return KernelStack{}, errs.NewVmmError(errs.OutOfMemory)
		}
		va := mem.VirtAddr(base.Uint64() + uint64(i)*mem.PageSizeBytes)
		page := mem.PageFromStart(va, mem.Size4KiB)
		flush, err := a.mapper.Map(a.root, page, frame, paging.Writable, a.fa)
		if err != nil {
			return KernelStack{}, err
		}
		flush.Ignore()
	}

	top := mem.VirtAddr(base.Uint64() + KernelStackPages*mem.PageSizeBytes)
	a.next = mem.VirtAddr(top.Uint64() + mem.PageSizeBytes) // reserve room for the next guard page
	return KernelStack{guardPage: guard, base: base, top: top}, nil
}
