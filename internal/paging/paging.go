// Package paging implements the architecture-neutral page mapper
// interface and its x86_64 4-level implementation (spec §3.5, §4.2).
package paging

import (
	"fmt"

	"github.com/hadron-os/hadron/internal/errs"
	"github.com/hadron-os/hadron/internal/mem"
)

/// MapFlags is a bitset of architecture-neutral mapping attributes
/// (spec §3.5).
type MapFlags uint32

const (
	Writable MapFlags = 1 << iota
	Executable
	User
	Global
	CacheDisable
)

/// FrameAllocator is implemented by whatever owns physical frames; the
/// mapper calls it to allocate intermediate page-table frames as
/// needed (spec §4.2).
type FrameAllocator interface {
	AllocateFrame() (mem.PhysFrame, bool)
}

/// FrameDeallocator is the dual of FrameAllocator. The x86_64 mapper in
/// this package never reclaims intermediate tables itself (that would
/// require tracking per-table occupancy), and no code in this
/// repository uses this interface: vmm.AddressSpace.Close takes a
/// plain deallocation callback and frees only the PML4 frame.
type FrameDeallocator interface {
	DeallocateFrame(mem.PhysFrame)
}

/// MapFlush is a must-use RAII token tied to a single virtual address
/// whose TLB entry may now be stale (spec §3.5). The address is
/// invalidated only by Flush: dropping a MapFlush without calling
/// Flush or Ignore performs no TLB invalidation. Resolved reports
/// whether Flush or Ignore was called, so tests can detect a dropped
/// token.
type MapFlush struct {
	addr     mem.VirtAddr
	flush    func(mem.VirtAddr)
	resolved bool
}

func newMapFlush(addr mem.VirtAddr, flush func(mem.VirtAddr)) *MapFlush {
	return &MapFlush{addr: addr, flush: flush}
}

/// Flush eagerly invalidates the TLB entry for this address.
func (m *MapFlush) Flush() {
	if m.resolved {
		return
	}
	m.resolved = true
	if m.flush != nil {
		m.flush(m.addr)
	}
}

/// Ignore discards the flush obligation because the mapping was fresh
/// and cannot be present in any TLB (e.g. a brand new address space
/// that has never been loaded into CR3).
func (m *MapFlush) Ignore() {
	m.resolved = true
}

/// Resolved reports whether Flush or Ignore has been called; used only
/// by tests to catch a silently dropped MapFlush, since Go has no
/// linear types and finalizers are not suitable for this deadline
/// (spec Design Notes: "must-use flush tokens").
func (m *MapFlush) Resolved() bool { return m.resolved }

/// UnmapError enumerates the ways Unmap can fail (spec §3.5).
type UnmapError int

const (
	UnmapNotMapped UnmapError = iota
	UnmapSizeMismatch
)

func (e UnmapError) Error() string {
	switch e {
	case UnmapNotMapped:
		return "paging: not mapped"
	case UnmapSizeMismatch:
		return "paging: page size mismatch"
	default:
		return fmt.Sprintf("paging: unknown unmap error %d", int(e))
	}
}

/// PageMapper installs, removes, and adjusts mappings in a single
/// address space rooted at a PhysAddr (a PML4 physical frame on
/// x86_64). It is architecture-neutral; the x86_64 type below is the
/// only implementation in this repository (spec §4.2).
type PageMapper interface {
	Map(root mem.PhysAddr, page mem.Page, frame mem.PhysFrame, flags MapFlags, fa FrameAllocator) (*MapFlush, error)
	Unmap(root mem.PhysAddr, page mem.Page) (mem.PhysFrame, *MapFlush, error)
	UpdateFlags(root mem.PhysAddr, page mem.Page, flags MapFlags) (*MapFlush, error)
}

/// PageTranslator performs a size-agnostic virtual-to-physical walk,
/// stopping early at whichever level holds a huge-page leaf (spec
/// §3.5, §4.2).
type PageTranslator interface {
	TranslateAddr(root mem.PhysAddr, virt mem.VirtAddr) (mem.PhysAddr, bool)
}

// asVmmOutOfMemory adapts an allocator exhaustion into the recoverable
// VmmError sum type at the mapper boundary (spec §7).
func asVmmOutOfMemory() error { return errs.NewVmmError(errs.OutOfMemory) }
