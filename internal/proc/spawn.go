package proc

import (
	"fmt"
	"unsafe"

	"github.com/hadron-os/hadron/internal/errs"
	"github.com/hadron-os/hadron/internal/hhdm"
	"github.com/hadron-os/hadron/internal/mem"
	"github.com/hadron-os/hadron/internal/paging"
	"github.com/hadron-os/hadron/internal/trap"
	"github.com/hadron-os/hadron/internal/vfs"
	"github.com/hadron-os/hadron/internal/vmm"
)

// BinaryLoader stands in for the binary-format loader spec §4.10 step
// 2 names as an external collaborator: parsing whatever executable
// format the kernel ships (out of scope here) and returning the
// segments Spawn maps.
type BinaryLoader interface {
	Load(data []byte) (ExecImage, error)
}

// ExecImage is what a BinaryLoader hands back to Spawn: an entry point
// plus the segments to map into the new AddressSpace.
type ExecImage struct {
	Entry    mem.VirtAddr
	Segments []Segment
}

// Segment is one loadable region of an ExecImage (spec §4.10 step 3:
// "allocate frames, copy segment.data (zero-fill up to memsz), map
// with requested flags plus USER").
type Segment struct {
	VirtAddr mem.VirtAddr
	Data     []byte
	MemSize  uint64
	Flags    paging.MapFlags
}

// SpawnEnv bundles every collaborator Spawn needs but does not itself
// own: the VFS to resolve path through, the frame allocator/mapper
// pair backing the new AddressSpace, the BinaryLoader, and where to
// place the user stack (spec §4.10 steps 1-6). Constructed once during
// bring-up (internal/boot) and passed to every Spawn call thereafter.
type SpawnEnv struct {
	VFS             *vfs.Vfs
	MaxSymlinkDepth int

	KernelRoot vmm.KernelRoot
	Frames     paging.FrameAllocator
	FreeFrame  func(mem.PhysFrame)
	Mapper     paging.PageMapper

	Loader BinaryLoader

	UserStackBase  mem.VirtAddr
	UserStackPages int

	Kstacks *vmm.KernelStackAllocator

	// ConsolePath is opened three times (for stdin/stdout/stderr) to
	// seed FDs 0/1/2 at spawn (spec §4.10 step 7: "populated FD table
	// (0/1/2 -> /dev/console)").
	ConsolePath string
}

// Spawn implements spec §4.10's spawn(path, argv) algorithm end to
// end except for step 8 (handing the resulting UserEntry and kernel
// stack to the executor, which only internal/boot's composition code
// is positioned to do, since that is where the ExecutorSet and
// trap.Runner live). It returns the registered Process, its kernel
// stack, and the UserEntry the caller passes to
// trap.EnterUserspaceSave.
func Spawn(env SpawnEnv, table *ProcessTable, parentPid Pid, path string, argv []string) (*Process, vmm.KernelStack, trap.UserEntry, error) {
	// Step 1: resolve path via VFS and read the whole file into a
	// kernel buffer.
	inode, err := env.VFS.Resolve(path, env.MaxSymlinkDepth)
	if err != nil {
		return nil, vmm.KernelStack{}, trap.UserEntry{}, fmt.Errorf("proc: resolve %s: %w", path, err)
	}
	data := make([]byte, inode.Size())
	if _, err := inode.Read(data, 0); err != nil {
		return nil, vmm.KernelStack{}, trap.UserEntry{}, fmt.Errorf("proc: read %s: %w", path, err)
	}

	// Step 2: load_binary external collaborator.
	image, err := env.Loader.Load(data)
	if err != nil {
		return nil, vmm.KernelStack{}, trap.UserEntry{}, fmt.Errorf("proc: load %s: %w", path, err)
	}

	// Step 3: create the AddressSpace and map every segment.
	as, err := vmm.NewAddressSpace(env.KernelRoot, env.Frames, env.Mapper, env.FreeFrame)
	if err != nil {
		return nil, vmm.KernelStack{}, trap.UserEntry{}, fmt.Errorf("proc: new address space: %w", err)
	}
	if err := mapSegments(as, env.Frames, image.Segments); err != nil {
		as.Close()
		return nil, vmm.KernelStack{}, trap.UserEntry{}, fmt.Errorf("proc: map segments: %w", err)
	}

	// Step 4 (dynamic relocation) is an external collaborator this
	// kernel does not ship (spec.md Non-goals exclude a dynamic
	// linker); static images only.

	// Step 5: allocate a user stack region.
	userRSP, err := mapUserStack(as, env.Frames, env.UserStackBase, env.UserStackPages)
	if err != nil {
		as.Close()
		return nil, vmm.KernelStack{}, trap.UserEntry{}, fmt.Errorf("proc: map user stack: %w", err)
	}

	// Step 6: allocate a kernel stack with guard page.
	kstack, err := env.Kstacks.Allocate()
	if err != nil {
		as.Close()
		return nil, vmm.KernelStack{}, trap.UserEntry{}, fmt.Errorf("proc: allocate kernel stack: %w", err)
	}

	// Step 7: create Process with a fresh PID and an FD table seeded
	// 0/1/2 -> ConsolePath, empty signal state (SignalState is
	// already empty from newProcess).
	p := table.Create(parentPid, as)
	if err := seedConsoleFds(env.VFS, env.MaxSymlinkDepth, env.ConsolePath, p); err != nil {
		table.Unregister(p.Pid)
		as.Close()
		return nil, vmm.KernelStack{}, trap.UserEntry{}, fmt.Errorf("proc: seed console fds: %w", err)
	}

	entry := trap.UserEntry{RIP: uintptr(image.Entry), RSP: uintptr(userRSP)}
	return p, kstack, entry, nil
}

// mapSegments maps every segment into as, copying segment.Data and
// zero-filling the remainder up to MemSize (spec §4.10 step 3).
func mapSegments(as *vmm.AddressSpace, fa paging.FrameAllocator, segments []Segment) error {
	for _, seg := range segments {
		if err := mapOneSegment(as, fa, seg); err != nil {
			return err
		}
	}
	return nil
}

func mapOneSegment(as *vmm.AddressSpace, fa paging.FrameAllocator, seg Segment) error {
	size := seg.MemSize
	if size == 0 {
		size = uint64(len(seg.Data))
	}
	pageCount := (size + uint64(mem.Size4KiB) - 1) / uint64(mem.Size4KiB)
	base := mem.PageFromStart(seg.VirtAddr, mem.Size4KiB).StartAddress()
	for i := uint64(0); i < pageCount; i++ {
		frame, ok := fa.AllocateFrame()
		if !ok {
			return errs.NewVmmError(errs.OutOfMemory)
		}
		page := mem.PageFromStart(mem.VirtAddr(uint64(base)+i*uint64(mem.Size4KiB)), mem.Size4KiB)
		flush, err := as.MapUserPage(page, frame, seg.Flags, fa)
		if err != nil {
			return err
		}
		flush.Flush()
		copySegmentData(page, frame, seg.Data, i)
	}
	return nil
}

// copySegmentData writes the slice of seg.Data covering page i's
// range into the frame just mapped, through its HHDM view, then
// explicitly zeroes any tail past len(seg.Data): mem.Bitmap.AllocateFrame
// only clears a bitmap bit and makes no promise about frame contents,
// so BSS (MemSize > len(Data)) must be zeroed here rather than assumed
// (spec §4.10 step 3: "copy segment.data (zero-fill up to memsz)").
func copySegmentData(page mem.Page, frame mem.PhysFrame, data []byte, pageIndex uint64) {
	dst := frameBytes(frame.StartAddress(), uint64(mem.Size4KiB))
	pageStart := pageIndex * uint64(mem.Size4KiB)
	if pageStart >= uint64(len(data)) {
		clear(dst)
		return
	}
	end := pageStart + uint64(mem.Size4KiB)
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	n := copy(dst, data[pageStart:end])
	clear(dst[n:])
}

// frameBytes views a physical frame as a byte slice through the HHDM,
// the same access pattern internal/vmm's pml4At uses for page tables.
func frameBytes(phys mem.PhysAddr, size uint64) []byte {
	v := hhdm.ToVirt(phys)
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(v.Uint64()))), size)
}

// mapUserStack allocates and maps env.UserStackPages worth of frames
// upward from base, returning the initial RSP (the top of the mapped
// region, since the stack grows down).
func mapUserStack(as *vmm.AddressSpace, fa paging.FrameAllocator, base mem.VirtAddr, pages int) (mem.VirtAddr, error) {
	if pages <= 0 {
		pages = 1
	}
	for i := 0; i < pages; i++ {
		frame, ok := fa.AllocateFrame()
		if !ok {
			return 0, errs.NewVmmError(errs.OutOfMemory)
		}
		page := mem.PageFromStart(mem.VirtAddr(uint64(base)+uint64(i)*uint64(mem.Size4KiB)), mem.Size4KiB)
		flush, err := as.MapUserPage(page, frame, paging.Writable, fa)
		if err != nil {
			return 0, err
		}
		flush.Flush()
	}
	return mem.VirtAddr(uint64(base) + uint64(pages)*uint64(mem.Size4KiB)), nil
}

// seedConsoleFds opens consolePath three times and installs the
// results at fds 0/1/2 (spec §4.10 step 7).
func seedConsoleFds(v *vfs.Vfs, maxSymlinkDepth int, consolePath string, p *Process) error {
	for _, fd := range []Fd{Stdin, Stdout, Stderr} {
		inode, err := v.Resolve(consolePath, maxSymlinkDepth)
		if err != nil {
			return err
		}
		p.WithFds(func(t *FileDescriptorTable) {
			t.InstallAt(fd, &OpenFile{Inode: inode, Flags: OpenRead | OpenWrite})
		})
	}
	return nil
}
