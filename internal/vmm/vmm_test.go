package vmm

import (
	"testing"
	"unsafe"

	"github.com/hadron-os/hadron/internal/hhdm"
	"github.com/hadron-os/hadron/internal/mem"
	"github.com/hadron-os/hadron/internal/paging"
)

func uintptrOf(b []byte) uintptr { return uintptr(unsafe.Pointer(&b[0])) }

// arena backs "physical memory" with real host memory, identity
// mapped through the HHDM (offset 0), exactly as paging's test helper
// does — vmm builds directly on paging, so its tests need the same
// hosted-physical-memory trick.
type arena struct {
	buf   []byte
	base  uint64
	nextF uint64
	total uint64
}

func newArena(t *testing.T, pages uint64) *arena {
	t.Helper()
	raw := make([]byte, (pages+1)*uint64(mem.Size4KiB))
	base := uint64(uintptrOf(raw))
	aligned := (base + uint64(mem.Size4KiB) - 1) &^ (uint64(mem.Size4KiB) - 1)
	hhdm.ResetForTest(0)
	return &arena{buf: raw, base: aligned, total: pages}
}

func (a *arena) AllocateFrame() (mem.PhysFrame, bool) {
	if a.nextF >= a.total {
		return mem.PhysFrame{}, false
	}
	addr := mem.PhysAddr(a.base + a.nextF*uint64(mem.Size4KiB))
	a.nextF++
	return mem.FrameFromStart(addr, mem.Size4KiB), true
}

func (a *arena) DeallocateFrame(mem.PhysFrame) {}

func newRoot(t *testing.T, a *arena) mem.PhysAddr {
	t.Helper()
	f, ok := a.AllocateFrame()
	if !ok {
		t.Fatal("arena exhausted allocating root")
	}
	dst := pml4At(f.StartAddress())
	for i := range dst {
		dst[i] = 0
	}
	return f.StartAddress()
}

func TestHeapGrowMapsSequentialPages(t *testing.T) {
	a := newArena(t, 64)
	root := newRoot(t, a)
	mapper := &paging.X86_64Mapper{}
	heap := NewHeap(root, mapper, a, mem.MustVirtAddr(0x0000_0050_0000_0000), 16*mem.PageSizeBytes)

	start, n, err := heap.Grow(mem.PageSizeBytes*3 - 1) // rounds up to 3 pages
	if err != nil {
		t.Fatalf("Grow failed: %v", err)
	}
	if n != 3*mem.PageSizeBytes {
		t.Fatalf("grew %d bytes, want 3 pages", n)
	}
	for i := uint64(0); i < 3; i++ {
		va := mem.VirtAddr(start.Uint64() + i*mem.PageSizeBytes)
		if _, ok := mapper.TranslateAddr(root, va); !ok {
			t.Fatalf("page %d of grown heap not mapped", i)
		}
	}
}

func TestMmioFirstFitAndRelease(t *testing.T) {
	a := newArena(t, 64)
	root := newRoot(t, a)
	mapper := &paging.X86_64Mapper{}
	region := NewMmioRegion(mem.MustVirtAddr(0x0000_0060_0000_0000), 16*mem.PageSizeBytes)

	m1, err := MapMMIO(region, root, mapper, a, mem.PhysAddr(0xfee00000), mem.PageSizeBytes*2)
	if err != nil {
		t.Fatalf("first MapMMIO failed: %v", err)
	}
	m2, err := MapMMIO(region, root, mapper, a, mem.PhysAddr(0xfec00000), mem.PageSizeBytes)
	if err != nil {
		t.Fatalf("second MapMMIO failed: %v", err)
	}
	if m1.VirtAddr() == m2.VirtAddr() {
		t.Fatal("overlapping MMIO regions allocated")
	}

	phys, ok := mapper.TranslateAddr(root, m1.VirtAddr())
	if !ok || phys != mem.PhysAddr(0xfee00000) {
		t.Fatalf("MMIO translate = %v, %v", phys, ok)
	}

	m1.Close()
	if _, ok := mapper.TranslateAddr(root, m1.VirtAddr()); ok {
		t.Fatal("MMIO mapping still translates after Close")
	}

	// the freed range should be reusable by a new first-fit allocation.
	m3, err := MapMMIO(region, root, mapper, a, mem.PhysAddr(0xfee00000), mem.PageSizeBytes*2)
	if err != nil {
		t.Fatalf("MapMMIO after release failed: %v", err)
	}
	if m3.VirtAddr() != m1.VirtAddr() {
		t.Fatalf("expected first-fit to reuse freed range, got %v want %v", m3.VirtAddr(), m1.VirtAddr())
	}
}

func TestKernelStackHasUnmappedGuardPage(t *testing.T) {
	a := newArena(t, 64)
	root := newRoot(t, a)
	mapper := &paging.X86_64Mapper{}
	alloc := NewKernelStackAllocator(root, mapper, a, mem.MustVirtAddr(0x0000_0070_0000_0000))

	s1, err := alloc.Allocate()
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if _, ok := mapper.TranslateAddr(root, s1.guardPage); ok {
		t.Fatal("guard page is mapped")
	}
	if _, ok := mapper.TranslateAddr(root, s1.base); !ok {
		t.Fatal("stack base page not mapped")
	}

	s2, err := alloc.Allocate()
	if err != nil {
		t.Fatalf("second Allocate failed: %v", err)
	}
	if s2.guardPage == s1.guardPage {
		t.Fatal("second stack reused the first stack's guard page")
	}
}

func TestAddressSpaceSharesKernelUpperHalf(t *testing.T) {
	a := newArena(t, 128)
	kroot := newRoot(t, a)
	mapper := &paging.X86_64Mapper{}

	// Map a kernel-range page before either process is created, then
	// map another one after process 1 exists. Both processes must
	// observe the identical physical address for every kernel-upper
	// virtual address, even the page mapped after P1 was created —
	// because the copy shares the PDPT/PD sub-tree by physical
	// address (spec §8.1 AddressSpace invariant).
	kva1 := mem.MustVirtAddr(0xffff_8000_0010_0000)
	kva2 := mem.MustVirtAddr(0xffff_8000_0020_0000)
	f1, _ := a.AllocateFrame()
	flush, err := mapper.Map(kroot, mem.PageFromStart(kva1, mem.Size4KiB), f1, paging.Writable, a)
	if err != nil {
		t.Fatalf("kernel map 1 failed: %v", err)
	}
	flush.Ignore()

	root := KernelRoot{PML4: kroot}
	p1, err := NewAddressSpace(root, a, mapper, a.DeallocateFrame)
	if err != nil {
		t.Fatalf("NewAddressSpace p1 failed: %v", err)
	}

	f2, _ := a.AllocateFrame()
	flush2, err := mapper.Map(kroot, mem.PageFromStart(kva2, mem.Size4KiB), f2, paging.Writable, a)
	if err != nil {
		t.Fatalf("kernel map 2 failed: %v", err)
	}
	flush2.Ignore()

	p2, err := NewAddressSpace(root, a, mapper, a.DeallocateFrame)
	if err != nil {
		t.Fatalf("NewAddressSpace p2 failed: %v", err)
	}

	for _, va := range []mem.VirtAddr{kva1, kva2} {
		got1, ok1 := p1.Translate(va)
		got2, ok2 := p2.Translate(va)
		if !ok1 || !ok2 || got1 != got2 {
			t.Fatalf("kernel mapping %v diverged between address spaces: p1=%v/%v p2=%v/%v", va, got1, ok1, got2, ok2)
		}
	}

	p1.Close()
	p2.Close()
}
