package proc

import (
	"testing"
	"unsafe"

	"github.com/hadron-os/hadron/internal/hhdm"
	"github.com/hadron-os/hadron/internal/mem"
	"github.com/hadron-os/hadron/internal/paging"
	"github.com/hadron-os/hadron/internal/vfs"
	"github.com/hadron-os/hadron/internal/vmm"
)

// arena backs "physical memory" with real host memory identity-mapped
// through the HHDM at offset 0, the same hosted-physical-memory trick
// internal/vmm's own tests use.
type arena struct {
	buf   []byte
	base  uint64
	nextF uint64
	total uint64
}

func uintptrOf(b []byte) uintptr { return uintptr(unsafe.Pointer(&b[0])) }

func newArena(t *testing.T, pages uint64) *arena {
	t.Helper()
	raw := make([]byte, (pages+1)*uint64(mem.Size4KiB))
	for i := range raw {
		raw[i] = 0xAA
	}
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

func newRootPML4(t *testing.T, a *arena) mem.PhysAddr {
	t.Helper()
	f, ok := a.AllocateFrame()
	if !ok {
		t.Fatal("arena exhausted allocating root")
	}
	// zero the frame so NewAddressSpace's upper-half copy starts clean.
	for i, p := 0, f.StartAddress(); i < int(mem.PageSizeBytes); i++ {
		*(*byte)(unsafe.Pointer(uintptr(hhdm.ToVirt(p).Uint64()) + uintptr(i))) = 0
	}
	return f.StartAddress()
}

type stubLoader struct {
	image ExecImage
	err   error
}

func (s stubLoader) Load([]byte) (ExecImage, error) { return s.image, s.err }

func TestSpawnEndToEnd(t *testing.T) {
	a := newArena(t, 256)
	root := vmm.KernelRoot{PML4: newRootPML4(t, a)}
	mapper := &paging.X86_64Mapper{}

	v := vfs.NewVfs()
	ramfs := vfs.NewRamfs()
	v.Mount("/", ramfs)
	if _, err := vfs.Create(ramfs.Root(), "console", vfs.CharDevice, vfs.ReadWrite); err != nil {
		t.Fatalf("create /console: %v", err)
	}
	if _, err := v.CreatePath("/bin", vfs.Directory, vfs.ReadWrite, 8); err != nil {
		t.Fatalf("mkdir /bin: %v", err)
	}
	bin, err := v.CreatePath("/bin/hello", vfs.File, vfs.ReadWrite, 8)
	if err != nil {
		t.Fatalf("create /bin/hello: %v", err)
	}
	payload := []byte{0x90, 0x90, 0x90, 0x90}
	if _, err := bin.Write(payload, 0); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	loader := stubLoader{image: ExecImage{
		Entry: mem.MustVirtAddr(0x0000_0040_0000_1000),
		Segments: []Segment{{
			VirtAddr: mem.MustVirtAddr(0x0000_0040_0000_0000),
			Data:     payload,
			MemSize:  uint64(mem.Size4KiB),
			Flags:    paging.Executable,
		}},
	}}

	kstacks := vmm.NewKernelStackAllocator(root.PML4, mapper, a, mem.MustVirtAddr(0x0000_0050_0000_0000))
	env := SpawnEnv{
		VFS:             v,
		MaxSymlinkDepth: 8,
		KernelRoot:      root,
		Frames:          a,
		FreeFrame:       a.DeallocateFrame,
		Mapper:          mapper,
		Loader:          loader,
		UserStackBase:   mem.MustVirtAddr(0x0000_0060_0000_0000),
		UserStackPages:  2,
		Kstacks:         kstacks,
		ConsolePath:     "/console",
	}

	table := NewProcessTable()
	p, kstack, entry, err := Spawn(env, table, 0, "/bin/hello", nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if p.Pid == 0 {
		t.Fatal("expected nonzero PID")
	}
	if entry.RIP != uintptr(0x0000_0040_0000_1000) {
		t.Fatalf("entry.RIP = %#x, want %#x", entry.RIP, 0x0000_0040_0000_1000)
	}
	if entry.RSP == 0 {
		t.Fatal("entry.RSP not set")
	}
	if kstack.Top() == 0 {
		t.Fatal("kernel stack top not set")
	}

	for _, fd := range []Fd{Stdin, Stdout, Stderr} {
		if _, ok := p.Fds.Get(fd); !ok {
			t.Fatalf("fd %v not seeded at spawn", fd)
		}
	}

	phys, ok := mapper.TranslateAddr(p.AS.Root(), mem.MustVirtAddr(0x0000_0040_0000_0000))
	if !ok {
		t.Fatal("entry segment not mapped")
	}
	gotByte := *(*byte)(unsafe.Pointer(uintptr(hhdm.ToVirt(phys).Uint64())))
	if gotByte != 0x90 {
		t.Fatalf("segment byte = %#x, want 0x90", gotByte)
	}

	// The arena is poisoned with 0xAA before any frame is handed out
	// (see newArena), so a BSS tail still reading 0xAA here would mean
	// copySegmentData failed to zero-fill past len(Data) up to MemSize.
	tailPtr := uintptr(hhdm.ToVirt(phys).Uint64()) + uintptr(len(payload))
	tailByte := *(*byte)(unsafe.Pointer(tailPtr))
	if tailByte != 0 {
		t.Fatalf("bss tail byte = %#x, want 0 (zero-filled)", tailByte)
	}
}

func TestSpawnRejectsMissingBinary(t *testing.T) {
	a := newArena(t, 64)
	root := vmm.KernelRoot{PML4: newRootPML4(t, a)}
	mapper := &paging.X86_64Mapper{}
	v := vfs.NewVfs()
	v.Mount("/", vfs.NewRamfs())

	env := SpawnEnv{
		VFS: v, MaxSymlinkDepth: 8, KernelRoot: root, Frames: a,
		FreeFrame: a.DeallocateFrame, Mapper: mapper,
		Loader:      stubLoader{},
		ConsolePath: "/console",
		Kstacks:     vmm.NewKernelStackAllocator(root.PML4, mapper, a, mem.MustVirtAddr(0x0000_0070_0000_0000)),
	}
	if _, _, _, err := Spawn(env, NewProcessTable(), 0, "/bin/nope", nil); err == nil {
		t.Fatal("expected error resolving a missing binary")
	}
}
