package paging

import (
	"testing"
	"unsafe"

	"github.com/hadron-os/hadron/internal/hhdm"
	"github.com/hadron-os/hadron/internal/mem"
)

// hostArena backs "physical memory" with real host memory so the page
// table walker's HHDM-relative pointer arithmetic operates on
// addressable bytes during `go test`. hhdm.Offset is pinned to 0 so
// ToVirt/ToPhys are the identity function: a "physical address" here
// is simply the real address of a byte in arena, page-aligned.
type hostArena struct {
	buf   []byte
	base  uintptr
	nextF uint64
	total uint64
}

func newHostArena(t *testing.T, pages uint64) *hostArena {
	t.Helper()
	// over-allocate by one page so we can align the base up.
	raw := make([]byte, (pages+1)*uint64(mem.Size4KiB))
	base := uintptr(unsafe.Pointer(&raw[0]))
	aligned := (base + uintptr(mem.Size4KiB) - 1) &^ (uintptr(mem.Size4KiB) - 1)

	hhdmResetForTest(0)
	return &hostArena{buf: raw, base: aligned, total: pages}
}

func hhdmResetForTest(offset uint64) {
	// test-only: hhdm.Init panics on reinit, so pierce the package's
	// atomics directly via its exported test hook.
	hhdm.ResetForTest(offset)
}

func (a *hostArena) AllocateFrame() (mem.PhysFrame, bool) {
	if a.nextF >= a.total {
		return mem.PhysFrame{}, false
	}
	addr := mem.PhysAddr(a.base) + mem.PhysAddr(a.nextF*uint64(mem.Size4KiB))
	a.nextF++
	return mem.FrameFromStart(addr, mem.Size4KiB), true
}

func (a *hostArena) root() mem.PhysAddr {
	f, ok := a.AllocateFrame()
	if !ok {
		panic("arena exhausted allocating root")
	}
	zeroTable(f.StartAddress())
	return f.StartAddress()
}

func TestMapTranslateUnmapRoundTrip(t *testing.T) {
	arena := newHostArena(t, 64)
	root := arena.root()
	m := &X86_64Mapper{}

	va := mem.MustVirtAddr(0x0000_0040_0000_0000)
	page := mem.PageFromStart(va, mem.Size4KiB)

	backing, ok := arena.AllocateFrame()
	if !ok {
		t.Fatal("could not allocate backing frame")
	}

	flush, err := m.Map(root, page, backing, Writable, arena)
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	flush.Ignore() // fresh mapping, no stale TLB entry is possible

	got, ok := m.TranslateAddr(root, va)
	if !ok || got != backing.StartAddress() {
		t.Fatalf("TranslateAddr = %v, %v; want %v, true", got, ok, backing.StartAddress())
	}

	freed, unflush, err := m.Unmap(root, page)
	if err != nil {
		t.Fatalf("Unmap failed: %v", err)
	}
	unflush.Ignore()
	if freed != backing {
		t.Fatalf("Unmap returned frame %v, want %v", freed, backing)
	}

	if _, ok := m.TranslateAddr(root, va); ok {
		t.Fatal("TranslateAddr succeeded after Unmap")
	}
}

func TestUnmapNotMapped(t *testing.T) {
	arena := newHostArena(t, 8)
	root := arena.root()
	m := &X86_64Mapper{}
	page := mem.PageFromStart(mem.MustVirtAddr(0x1000_0000), mem.Size4KiB)

	if _, _, err := m.Unmap(root, page); err == nil {
		t.Fatal("expected NotMapped error")
	}
}

func TestUpdateFlagsPreservesAddress(t *testing.T) {
	arena := newHostArena(t, 64)
	root := arena.root()
	m := &X86_64Mapper{}
	va := mem.MustVirtAddr(0x2000_0000)
	page := mem.PageFromStart(va, mem.Size4KiB)
	backing, _ := arena.AllocateFrame()

	flush, err := m.Map(root, page, backing, 0, arena)
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	flush.Ignore()

	uflush, err := m.UpdateFlags(root, page, Writable|Executable)
	if err != nil {
		t.Fatalf("UpdateFlags failed: %v", err)
	}
	uflush.Ignore()

	got, ok := m.TranslateAddr(root, va)
	if !ok || got != backing.StartAddress() {
		t.Fatalf("address changed after UpdateFlags: %v", got)
	}
}

func TestMapFlushFlushInvokesCallback(t *testing.T) {
	arena := newHostArena(t, 8)
	root := arena.root()
	flushed := false
	m := &X86_64Mapper{Flush: func(mem.VirtAddr) { flushed = true }}
	va := mem.MustVirtAddr(0x3000_0000)
	page := mem.PageFromStart(va, mem.Size4KiB)
	backing, _ := arena.AllocateFrame()

	flush, err := m.Map(root, page, backing, Writable, arena)
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	flush.Flush()
	if !flushed {
		t.Fatal("expected Flush to invoke the registered callback")
	}
}
