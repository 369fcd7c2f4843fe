package vmm

import (
	"github.com/hadron-os/hadron/internal/errs"
	"github.com/hadron-os/hadron/internal/mem"
	"github.com/hadron-os/hadron/internal/paging"
)

/// Heap tracks the kernel heap's virtual range and grows it
/// page-by-page on demand (spec §3.6, §4.3). The global allocator's
/// out-of-memory callback is expected to call Grow.
type Heap struct {
	root    mem.PhysAddr
	mapper  paging.PageMapper
	fa      paging.FrameAllocator
	next    mem.VirtAddr
	end     mem.VirtAddr // exclusive upper bound of the heap window
}

/// NewHeap reserves [start, start+windowBytes) as the kernel heap's
/// virtual window and maps nothing yet; MapInitialHeap or Grow extend
/// it page by page.
func NewHeap(root mem.PhysAddr, mapper paging.PageMapper, fa paging.FrameAllocator, start mem.VirtAddr, windowBytes uint64) *Heap {
	return &Heap{
		root:   root,
		mapper: mapper,
		fa:     fa,
		next:   start,
		end:    mem.VirtAddr(start.Uint64() + windowBytes),
	}
}

func roundUpPages(n uint64) uint64 {
	pages := n / mem.PageSizeBytes
	if n%mem.PageSizeBytes != 0 {
		pages++
	}
	return pages
}

/// Grow rounds minBytes up to a page multiple, allocates that many
/// frames, maps them contiguously at the next heap virtual address,
/// and returns the new block's start and length in bytes (spec §4.3).
/// The caller (the global allocator's free-list) is responsible for
/// extending its free list with the returned block.
func (h *Heap) Grow(minBytes uint64) (mem.VirtAddr, uint64, error) {
	pages := roundUpPages(minBytes)
	if pages == 0 {
		pages = 1
	}
	blockStart := h.next
	if uint64(h.end)-uint64(blockStart) < pages*mem.PageSizeBytes {
		return 0, 0, errs.NewVmmError(errs.OutOfMemory)
	}
	for i := uint64(0); i < pages; i++ {
		frame, ok := h.fa.AllocateFrame()
		if !ok {
			return 0, 0, errs.NewVmmError(errs.OutOfMemory)
		}
		va := mem.VirtAddr(h.next.Uint64() + i*mem.PageSizeBytes)
		page := mem.PageFromStart(va, mem.Size4KiB)
		flush, err := h.mapper.Map(h.root, page, frame, paging.Writable, h.fa)
		if err != nil {
			return 0, 0, err
		}
		flush.Ignore() // freshly mapped kernel page, cannot be stale in any TLB
	}
	h.next = mem.VirtAddr(h.next.Uint64() + pages*mem.PageSizeBytes)
	return blockStart, pages * mem.PageSizeBytes, nil
}

/// MapInitialHeap performs the boot-time initial heap mapping (spec
/// §3.6): a convenience wrapper for the first Grow call, kept as a
/// distinct entry point so boot.Init's bring-up order reads linearly
/// (spec §8.3 scenario 1 references vmm.map_initial_heap explicitly).
func (h *Heap) MapInitialHeap(bytes uint64) (mem.VirtAddr, error) {
	start, _, err := h.Grow(bytes)
	return start, err
}
