package paging

import (
	"unsafe"

	"github.com/hadron-os/hadron/internal/errs"
	"github.com/hadron-os/hadron/internal/hhdm"
	"github.com/hadron-os/hadron/internal/mem"
)

// x86_64 page table entry bits. The address bits (12..51) never leak
// into the flag bits and vice versa: every read/write masks against
// addrMask, per spec §4.2's invariant.
const (
	entPresent  = uint64(1) << 0
	entWritable = uint64(1) << 1
	entUser     = uint64(1) << 2
	entPWT      = uint64(1) << 3
	entPCD      = uint64(1) << 4
	entHuge     = uint64(1) << 7 // PS bit at PD/PDPT level
	entGlobal   = uint64(1) << 8
	entNX       = uint64(1) << 63

	addrMask = uint64(0x000f_ffff_ffff_f000) // bits 12..51
)

/// table is a 512-entry page table page, addressed through the HHDM.
type table [512]uint64

func tableAt(phys mem.PhysAddr) *table {
	v := hhdm.ToVirt(phys)
	return (*table)(unsafe.Pointer(uintptr(v.Uint64())))
}

func entryAddr(e uint64) mem.PhysAddr { return mem.PhysAddr(e & addrMask) }

func flagsToEntryBits(f MapFlags) uint64 {
	bits := entPresent
	if f&Writable != 0 {
		bits |= entWritable
	}
	if f&User != 0 {
		bits |= entUser
	}
	if f&Global != 0 {
		bits |= entGlobal
	}
	if f&CacheDisable != 0 {
		bits |= entPCD
	}
	if f&Executable == 0 {
		bits |= entNX
	}
	return bits
}

// levelIndex extracts the 9-bit index for page-table level `level`
// (4=PML4, 3=PDPT, 2=PD, 1=PT) out of a virtual address.
func levelIndex(virt mem.VirtAddr, level int) int {
	shift := uint(12 + 9*(level-1))
	return int((virt.Uint64() >> shift) & 0x1ff)
}

func leafLevelFor(size mem.PageSize) int {
	switch size {
	case mem.Size4KiB:
		return 1
	case mem.Size2MiB:
		return 2
	case mem.Size1GiB:
		return 3
	default:
		panic("paging: unsupported page size")
	}
}

/// X86_64Mapper is the x86_64 4-level PageMapper/PageTranslator
/// implementation (spec §4.2). It carries no state of its own: every
/// call is parameterized by the PML4 physical root, so one value can
/// safely serve every address space.
type X86_64Mapper struct {
	// Flush is called to invalidate a single virtual address's TLB
	// entry. Left nil in hosted tests, where there is no real TLB.
	Flush func(mem.VirtAddr)
}

var _ PageMapper = (*X86_64Mapper)(nil)
var _ PageTranslator = (*X86_64Mapper)(nil)

// walkCreate walks from the PML4 down to the table one level above
// targetLevel, allocating intermediate tables from fa as needed.
// Returns the table at targetLevel+1 whose entry indexes the final
// leaf, or an error if allocation fails.
func (m *X86_64Mapper) walkCreate(root mem.PhysAddr, virt mem.VirtAddr, targetLevel int, fa FrameAllocator) (*table, error) {
	cur := tableAt(root)
	for level := 4; level > targetLevel; level-- {
		idx := levelIndex(virt, level)
		e := cur[idx]
		if e&entPresent == 0 {
			frame, ok := fa.AllocateFrame()
			if !ok {
				return nil, asVmmOutOfMemory()
			}
			zeroTable(frame.StartAddress())
			// Intermediate tables are always writable+user so that
			// leaf-level flags (which are the ones that matter for
			// permission checks) are the effective restriction.
			cur[idx] = uint64(frame.StartAddress()) | entPresent | entWritable | entUser
			e = cur[idx]
		}
		cur = tableAt(entryAddr(e))
	}
	return cur, nil
}

func zeroTable(phys mem.PhysAddr) {
	t := tableAt(phys)
	for i := range t {
		t[i] = 0
	}
}

/// Map installs a single mapping (spec §4.2).
func (m *X86_64Mapper) Map(root mem.PhysAddr, page mem.Page, frame mem.PhysFrame, flags MapFlags, fa FrameAllocator) (*MapFlush, error) {
	if page.Size() != frame.Size() {
		return nil, errs.NewVmmError(errs.SizeMismatch)
	}
	level := leafLevelFor(page.Size())
	leafTable, err := m.walkCreate(root, page.StartAddress(), level, fa)
	if err != nil {
		return nil, err
	}
	idx := levelIndex(page.StartAddress(), level)
	bits := flagsToEntryBits(flags)
	if level > 1 {
		bits |= entHuge
	}
	leafTable[idx] = uint64(frame.StartAddress()) | bits
	return newMapFlush(page.StartAddress(), m.Flush), nil
}

// walkToLeaf returns the table holding the leaf entry for a lookup at
// page.Size(), and the index into it, or ok=false if any intermediate
// table is absent.
func (m *X86_64Mapper) walkToLeaf(root mem.PhysAddr, page mem.Page) (*table, int, bool) {
	level := leafLevelFor(page.Size())
	cur := tableAt(root)
	for l := 4; l > level; l-- {
		idx := levelIndex(page.StartAddress(), l)
		e := cur[idx]
		if e&entPresent == 0 {
			return nil, 0, false
		}
		cur = tableAt(entryAddr(e))
	}
	return cur, levelIndex(page.StartAddress(), level), true
}

/// Unmap removes a single mapping (spec §4.2): NotMapped if any
/// intermediate table is absent, SizeMismatch if the leaf's PS bit
/// doesn't match the requested page size.
func (m *X86_64Mapper) Unmap(root mem.PhysAddr, page mem.Page) (mem.PhysFrame, *MapFlush, error) {
	leafTable, idx, ok := m.walkToLeaf(root, page)
	if !ok {
		return mem.PhysFrame{}, nil, errs.NewVmmError(errs.NotMapped)
	}
	e := leafTable[idx]
	if e&entPresent == 0 {
		return mem.PhysFrame{}, nil, errs.NewVmmError(errs.NotMapped)
	}
	wantHuge := page.Size() != mem.Size4KiB
	gotHuge := e&entHuge != 0
	if wantHuge != gotHuge {
		return mem.PhysFrame{}, nil, errs.NewVmmError(errs.SizeMismatch)
	}
	frame := mem.FrameFromStart(entryAddr(e), page.Size())
	leafTable[idx] = 0
	return frame, newMapFlush(page.StartAddress(), m.Flush), nil
}

/// UpdateFlags replaces the flag bits of an existing mapping, leaving
/// its address untouched (spec §4.2).
func (m *X86_64Mapper) UpdateFlags(root mem.PhysAddr, page mem.Page, flags MapFlags) (*MapFlush, error) {
	leafTable, idx, ok := m.walkToLeaf(root, page)
	if !ok {
		return nil, errs.NewVmmError(errs.NotMapped)
	}
	e := leafTable[idx]
	if e&entPresent == 0 {
		return nil, errs.NewVmmError(errs.NotMapped)
	}
	addr := e & addrMask
	huge := e & entHuge
	leafTable[idx] = addr | huge | flagsToEntryBits(flags)
	return newMapFlush(page.StartAddress(), m.Flush), nil
}

/// TranslateAddr performs a size-agnostic walk, stopping early at any
/// huge-page entry and combining the leaf base with the residual
/// offset (spec §4.2).
func (m *X86_64Mapper) TranslateAddr(root mem.PhysAddr, virt mem.VirtAddr) (mem.PhysAddr, bool) {
	cur := tableAt(root)
	for level := 4; level >= 1; level-- {
		idx := levelIndex(virt, level)
		e := cur[idx]
		if e&entPresent == 0 {
			return 0, false
		}
		if level > 1 && e&entHuge != 0 {
			base := entryAddr(e)
			shift := uint(12 + 9*(level-1))
			offset := virt.Uint64() & ((uint64(1) << shift) - 1)
			return base + mem.PhysAddr(offset), true
		}
		if level == 1 {
			offset := virt.Uint64() & 0xfff
			return entryAddr(e) + mem.PhysAddr(offset), true
		}
		cur = tableAt(entryAddr(e))
	}
	return 0, false
}
