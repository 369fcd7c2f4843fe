package boot

import (
	"testing"
	"unsafe"

	"github.com/hadron-os/hadron/internal/arch"
	"github.com/hadron-os/hadron/internal/hhdm"
	"github.com/hadron-os/hadron/internal/kconfig"
	"github.com/hadron-os/hadron/internal/mem"
	"github.com/hadron-os/hadron/internal/paging"
	"github.com/hadron-os/hadron/internal/percpu"
	"github.com/hadron-os/hadron/internal/proc"
	"github.com/hadron-os/hadron/internal/trap"
	"github.com/hadron-os/hadron/internal/vfs"
)

type fakeInfo struct {
	regions []mem.MemoryRegion
	hhdm    uint64
	root    mem.PhysAddr
}

func (f fakeInfo) MemoryMap() []mem.MemoryRegion   { return f.regions }
func (f fakeInfo) HHDMOffset() uint64              { return f.hhdm }
func (f fakeInfo) PageTableRoot() mem.PhysAddr      { return f.root }
func (f fakeInfo) RSDPAddress() mem.PhysAddr        { return 0 }
func (f fakeInfo) Framebuffer() (Framebuffer, bool) { return Framebuffer{}, false }
func (f fakeInfo) Cmdline() []byte                  { return nil }

func testConfig() kconfig.Config {
	cfg := kconfig.Default()
	cfg.MaxCPUs = 1
	cfg.ReservedFrames = 0
	cfg.KernelHeapPages = 4
	cfg.MMIOWindowStart = 0x0000_2000_0000_0000
	cfg.MMIOWindowSize = 1 << 24
	return cfg
}

func uintptrOfSlice(b []byte) uintptr { return uintptr(unsafe.Pointer(&b[0])) }

// newFakeInfo backs the boot memory map with real host memory, page-
// aligned, and reports an HHDM offset of 0 (identity mapping), the
// same hosted-physical-memory trick internal/vmm and internal/proc's
// tests use.
func newFakeInfo(t *testing.T) fakeInfo {
	t.Helper()
	const pages = 4096
	buf := make([]byte, (pages+1)*int(mem.PageSizeBytes))
	base := (uint64(uintptrOfSlice(buf)) + mem.PageSizeBytes - 1) &^ (mem.PageSizeBytes - 1)
	return fakeInfo{
		regions: []mem.MemoryRegion{{Base: mem.PhysAddr(base), Size: pages * mem.PageSizeBytes, Kind: mem.Usable}},
		hhdm:    0,
		root:    mem.PhysAddr(base),
	}
}

func TestInitBringsUpEveryLayer(t *testing.T) {
	hhdm.ForgetForTest()
	info := newFakeInfo(t)
	ports := arch.NewFake()

	k, err := Init(info, ports, testConfig())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if k.PMM.TotalFrames() == 0 {
		t.Fatal("PMM has no frames")
	}
	if k.CPUs.Get(0) == nil {
		t.Fatal("CPU 0 not registered")
	}
	if k.VFS == nil || vfs.Global() == nil {
		t.Fatal("VFS not initialized/published globally")
	}
	if k.Executor.CPUCount() != 1 {
		t.Fatalf("executor CPUCount = %d, want 1", k.Executor.CPUCount())
	}
	if _, err := k.VFS.Resolve("/dev/null", 8); err != nil {
		t.Fatalf("devfs not mounted: %v", err)
	}
	if _, err := k.VFS.Resolve("/proc/meminfo", 8); err != nil {
		t.Fatalf("procfs not mounted: %v", err)
	}
}

type stubLoader struct{ image proc.ExecImage }

func (s stubLoader) Load([]byte) (proc.ExecImage, error) { return s.image, nil }

// stubRunner immediately reports a fault, so the spawned process task
// completes (Ready) on its very first poll instead of looping forever
// waiting for real hardware.
type stubRunner struct{}

func (stubRunner) RunUntilTrap(cpu *percpu.CPU, entry trap.UserEntry) {
	cpu.TrapReason = percpu.TrapFault
}

func TestSpawnInitRunsProcessTaskToCompletion(t *testing.T) {
	hhdm.ForgetForTest()
	info := newFakeInfo(t)
	ports := arch.NewFake()
	k, err := Init(info, ports, testConfig())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	rootInode, err := k.VFS.Resolve("/", 8)
	if err != nil {
		t.Fatalf("resolve /: %v", err)
	}
	if _, err := vfs.Create(rootInode, "init", vfs.File, vfs.ReadWrite); err != nil {
		t.Fatalf("create /init: %v", err)
	}
	binInode, err := k.VFS.Resolve("/init", 8)
	if err != nil {
		t.Fatalf("resolve /init: %v", err)
	}
	payload := []byte{0x90}
	if _, err := binInode.Write(payload, 0); err != nil {
		t.Fatalf("write /init: %v", err)
	}

	loader := stubLoader{image: proc.ExecImage{
		Entry: mem.MustVirtAddr(0x0000_0040_0000_1000),
		Segments: []proc.Segment{{
			VirtAddr: mem.MustVirtAddr(0x0000_0040_0000_0000),
			Data:     payload,
			MemSize:  uint64(mem.Size4KiB),
			Flags:    paging.Executable,
		}},
	}}

	p, err := k.SpawnInit(loader, "/init", nil, stubRunner{})
	if err != nil {
		t.Fatalf("SpawnInit: %v", err)
	}
	if p.Pid == 0 {
		t.Fatal("expected nonzero PID for init")
	}

	if !k.Executor.PollOnce(0) {
		t.Fatal("expected the init process task to be ready to poll")
	}
}
