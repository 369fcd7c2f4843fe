package vmm

import (
	"sync"

	"github.com/hadron-os/hadron/internal/errs"
	"github.com/hadron-os/hadron/internal/mem"
	"github.com/hadron-os/hadron/internal/paging"
)

/// MmioRegion is a first-fit virtual region allocator over a fixed
/// kernel virtual window, used to back device register mappings
/// (spec §3.6, §4.3).
type MmioRegion struct {
	mu    sync.Mutex
	start mem.VirtAddr
	size  uint64
	// used holds allocated [offset, offset+len) byte ranges, sorted by
	// offset, relative to start.
	used []span
}

type span struct{ off, len uint64 }

/// NewMmioRegion reserves [start, start+windowBytes) for MMIO mappings.
func NewMmioRegion(start mem.VirtAddr, windowBytes uint64) *MmioRegion {
	return &MmioRegion{start: start, size: windowBytes}
}

func (r *MmioRegion) firstFit(length uint64) (uint64, bool) {
	cursor := uint64(0)
	for _, s := range r.used {
		if s.off-cursor >= length {
			return cursor, true
		}
		cursor = s.off + s.len
	}
	if r.size-cursor >= length {
		return cursor, true
	}
	return 0, false
}

func (r *MmioRegion) insert(off, length uint64) {
	i := 0
	for i < len(r.used) && r.used[i].off < off {
		i++
	}
	r.used = append(r.used, span{})
	copy(r.used[i+1:], r.used[i:])
	r.used[i] = span{off: off, len: length}
}

func (r *MmioRegion) remove(off uint64) {
	for i, s := range r.used {
		if s.off == off {
			r.used = append(r.used[:i], r.used[i+1:]...)
			return
		}
	}
}

/// MmioMapping is the RAII guard returned by MapMMIO (spec §4.3).
/// Dropping it (calling Close) unmaps the pages and returns the
/// virtual range to the region allocator, but never deallocates the
/// backing physical frames — those belong to a device, not the PMM.
/// For a permanent device mapping the caller simply never calls
/// Close, matching spec's "leak the guard" guidance.
type MmioMapping struct {
	region *MmioRegion
	root   mem.PhysAddr
	mapper paging.PageMapper
	start  mem.VirtAddr
	pages  uint64
	closed bool
}

/// VirtAddr returns the mapped kernel-virtual base of the region.
func (g *MmioMapping) VirtAddr() mem.VirtAddr { return g.start }

/// Close unmaps the pages and releases the virtual range.
func (g *MmioMapping) Close() {
	if g.closed {
		return
	}
	g.closed = true
	for i := uint64(0); i < g.pages; i++ {
		va := mem.VirtAddr(g.start.Uint64() + i*mem.PageSizeBytes)
		_, flush, err := g.mapper.Unmap(g.root, mem.PageFromStart(va, mem.Size4KiB))
		if err == nil {
			flush.Flush()
		}
	}
	g.region.mu.Lock()
	g.region.remove(g.start.Uint64() - g.region.start.Uint64())
	g.region.mu.Unlock()
}

/// MapMMIO rounds size to a page multiple, allocates a virtual region,
/// and maps each page with WRITABLE|CACHE_DISABLE|!EXECUTABLE (spec
/// §4.3). It never allocates physical frames: phys is device memory
/// supplied by the caller.
func MapMMIO(region *MmioRegion, root mem.PhysAddr, mapper paging.PageMapper, fa paging.FrameAllocator, phys mem.PhysAddr, size uint64) (*MmioMapping, error) {
	pages := roundUpPages(size)
	if pages == 0 {
		pages = 1
	}
	length := pages * mem.PageSizeBytes

	region.mu.Lock()
	off, ok := region.firstFit(length)
	if !ok {
		region.mu.Unlock()
		return nil, errs.NewVmmError(errs.OutOfMemory)
	}
	region.insert(off, length)
	region.mu.Unlock()

	start := mem.VirtAddr(region.start.Uint64() + off)
	flags := paging.Writable | paging.CacheDisable
	physBase := phys.AlignDown(mem.Size4KiB)
	for i := uint64(0); i < pages; i++ {
		va := mem.VirtAddr(start.Uint64() + i*mem.PageSizeBytes)
		pa := mem.PhysAddr(physBase.Uint64() + i*mem.PageSizeBytes)
		page := mem.PageFromStart(va, mem.Size4KiB)
		frame := mem.FrameFromStart(pa, mem.Size4KiB)
		flush, err := mapper.Map(root, page, frame, flags, fa)
		if err != nil {
			region.mu.Lock()
			region.remove(off)
			region.mu.Unlock()
			return nil, err
		}
		flush.Ignore()
	}

	return &MmioMapping{region: region, root: root, mapper: mapper, start: start, pages: pages}, nil
}
