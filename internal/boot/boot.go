// Package boot implements the BootInfo abstraction and the ordered
// bring-up of every layer below it: L0 CPU init through L11
// driver/filesystem/init-process spawn (spec §2 "Control flow on
// entry", §6.1), grounded on the original kernel's hadron-boot crate
// and on biscuit's own main.go bring-up sequence (pmsize → fs init →
// proc init → run init binary).
package boot

import (
	"fmt"

	"github.com/hadron-os/hadron/internal/arch"
	"github.com/hadron-os/hadron/internal/executor"
	"github.com/hadron-os/hadron/internal/hhdm"
	"github.com/hadron-os/hadron/internal/kconfig"
	"github.com/hadron-os/hadron/internal/klog"
	"github.com/hadron-os/hadron/internal/mem"
	"github.com/hadron-os/hadron/internal/paging"
	"github.com/hadron-os/hadron/internal/percpu"
	"github.com/hadron-os/hadron/internal/proc"
	"github.com/hadron-os/hadron/internal/registry"
	"github.com/hadron-os/hadron/internal/trap"
	"github.com/hadron-os/hadron/internal/vfs"
	"github.com/hadron-os/hadron/internal/vmm"
)

// Info is what the boot loader hands kernel_init (spec §6.1). ACPI
// table parsing, DWARF/FDT parsers, the UEFI/Limine protocol that
// produces a concrete Info, and console/framebuffer drivers are
// external collaborators (spec §1); this package only consumes the
// interface.
type Info interface {
	MemoryMap() []mem.MemoryRegion
	HHDMOffset() uint64
	PageTableRoot() mem.PhysAddr
	RSDPAddress() mem.PhysAddr
	Framebuffer() (Framebuffer, bool)
	Cmdline() []byte
}

// Framebuffer is the optional framebuffer descriptor spec §6.1 names;
// the console/TTY layer that consumes it is out of scope (spec §1).
type Framebuffer struct {
	VirtAddr    mem.VirtAddr
	Width       uint32
	Height      uint32
	Pitch       uint32
	Bpp         uint8
	PixelFormat uint8
}

// ACPIProvider stands in for ACPI table parsing (spec §1 "Deliberately
// out of scope"). No implementation exists in this repository and
// boot.Init does not call it: Init registers only the BSP and does not
// discover local APIC/IOAPIC IDs.
type ACPIProvider interface {
	CPUAPICIDs(rsdp mem.PhysAddr) ([]uint32, error)
}

// BinaryLoader, ExecImage, and Segment (spec §4.10's "load_binary(data)
// external collaborator") live in internal/proc, next to Spawn, which
// is their only consumer; defining them here would make internal/proc
// import internal/boot while internal/boot already imports
// internal/proc.

// ConsoleSink stands in for the TTY/framebuffer console layer (spec
// §1): it is whatever klog.SetPrintFn eventually wraps.
type ConsoleSink func(string)

// Kernel is everything kernel_init assembles: the live layer-0-through-
// 11 state a running kernel image needs to keep reachable (spec §2's
// layering table, collapsed into one struct since Go has no global
// mutable statics the way the original Rust crate's `static` items
// do — every layer here is constructed once in Init and threaded
// explicitly afterward, which is also why boot.Init takes the place of
// the original's scattered `lazy_static!`/`OnceCell` globals).
type Kernel struct {
	Ports arch.Ports

	PMM        *mem.Bitmap
	KernelRoot vmm.KernelRoot
	Mapper     *paging.X86_64Mapper
	Heap       *vmm.Heap
	MMIO       *vmm.MmioRegion
	Kstacks    *vmm.KernelStackAllocator

	CPUs     *percpu.CPUTable
	IDT      *trap.IDT
	Executor *executor.ExecutorSet
	Timers   *executor.TimerRegistry

	VFS   *vfs.Vfs
	Procs *proc.ProcessTable

	Config kconfig.Config
}

// reservedRegion marks boot-provided reserved ranges non-allocatable
// (spec §3.2 invariant c: "Frames handed to hardware ... are never in
// the allocator's pool").
func reservedRegion(k mem.RegionKind) bool { return k != mem.Usable }

// Init performs the ordered bring-up spec §2 describes: L0 CPU/arch
// init, L1-L4 memory stack, L5 sync (implicitly ready — ksync has no
// global state to initialize), L6 per-CPU, L7 trap/syscall, L8
// executor, L9-L11 process/VFS/driver registry. It returns the
// assembled Kernel or an error from the first stage that cannot
// proceed (matching spec §7's propagation policy: PMM/VMM exhaustion
// during bring-up is recoverable in principle, but kernel_init itself
// has no caller to hand it to besides a boot failure).
func Init(info Info, ports arch.Ports, cfg kconfig.Config) (*Kernel, error) {
	// L2, run first: establish the constant HHDM offset before
	// anything else touches physical memory through it.
	hhdm.Init(info.HHDMOffset())

	klog.Logf(klog.Info, "hadron: bring-up starting (hhdm offset %#x)", info.HHDMOffset())

	// L1: populate the bitmap frame allocator from the boot memory
	// map, honoring spec §3.2 invariant c by only marking Usable
	// regions free.
	pmm, err := buildPMM(info.MemoryMap(), cfg)
	if err != nil {
		return nil, fmt.Errorf("boot: pmm init: %w", err)
	}

	// L2 is hhdm.Init above; L3 is the mapper, stateless:
	mapper := &paging.X86_64Mapper{Flush: ports.FlushTLBAddr}

	// L4: kernel heap, MMIO window, kernel stacks, and the kernel
	// root PML4 the bootloader already built.
	kernelRoot := vmm.KernelRoot{PML4: info.PageTableRoot()}
	heapStart := mem.VirtAddr(cfg.MMIOWindowStart - uint64(cfg.KernelHeapPages)*mem.PageSizeBytes*2)
	heap := vmm.NewHeap(kernelRoot.PML4, mapper, pmm, heapStart, uint64(cfg.KernelHeapPages)*mem.PageSizeBytes*2)
	if _, err := heap.MapInitialHeap(uint64(cfg.KernelHeapPages) * mem.PageSizeBytes); err != nil {
		return nil, fmt.Errorf("boot: initial heap mapping: %w", err)
	}
	mmio := vmm.NewMmioRegion(mem.VirtAddr(cfg.MMIOWindowStart), cfg.MMIOWindowSize)
	kstacks := vmm.NewKernelStackAllocator(kernelRoot.PML4, mapper, pmm, mem.VirtAddr(cfg.MMIOWindowStart+cfg.MMIOWindowSize))

	// L6: per-CPU state. Only the BSP (ID 0) is registered; Init does
	// not consult an ACPIProvider, so no AP is registered here.
	cpus := percpu.NewCPUTable()
	cpus.Register(&percpu.CPU{ID: 0})

	// L7: IDT with the IPI_WAKE no-op stub installed. SYSCALL MSR
	// values are not computed here: the entry stub address is a
	// link-time constant this package cannot know, so the caller
	// computes them with trap.NewMSRConfig and writes them.
	idt := trap.NewIDT()
	idt.InstallNoopIPIWake()

	// L8: one executor per configured CPU plus the global timer
	// registry.
	execSet := executor.NewExecutorSet(cfg.MaxCPUs, nil)
	timers := executor.NewTimerRegistry()

	// L9/L10: process table and VFS, mounted with ramfs at root and
	// devfs/procfs under it (spec §8.3 scenarios 3-4).
	procs := proc.NewProcessTable()
	v := vfs.NewVfs()
	v.Mount("/", vfs.NewRamfs())
	devfs := vfs.NewDevfs()
	devfs.SetConsoleSink(klog.Print)
	v.Mount("/dev", devfs)
	v.Mount("/proc", vfs.NewProcfs(pmm))
	vfs.Init(v)

	klog.Logf(klog.Info, "hadron: bring-up complete: %d/%d frames free, %d PCI drivers, %d platform drivers registered",
		pmm.FreeFrames(), pmm.TotalFrames(), len(registry.PCIDrivers()), len(registry.PlatformDrivers()))

	return &Kernel{
		Ports:      ports,
		PMM:        pmm,
		KernelRoot: kernelRoot,
		Mapper:     mapper,
		Heap:       heap,
		MMIO:       mmio,
		Kstacks:    kstacks,
		CPUs:       cpus,
		IDT:        idt,
		Executor:   execSet,
		Timers:     timers,
		VFS:        v,
		Procs:      procs,
		Config:     cfg,
	}, nil
}

func buildPMM(regions []mem.MemoryRegion, cfg kconfig.Config) (*mem.Bitmap, error) {
	if len(regions) == 0 {
		return nil, fmt.Errorf("boot: empty memory map")
	}
	lowest, highest := regions[0].Base, regions[0].Base
	for _, r := range regions {
		if r.Base < lowest {
			lowest = r.Base
		}
		end := mem.PhysAddr(uint64(r.Base) + r.Size)
		if end > highest {
			highest = end
		}
	}
	frameCount := (uint64(highest) - uint64(lowest)) / mem.PageSizeBytes
	bitmap := mem.NewBitmap(lowest, frameCount)
	for _, r := range regions {
		if reservedRegion(r.Kind) {
			continue
		}
		bitmap.MarkUsable(r)
	}
	// Hold back cfg.ReservedFrames worth of the earliest free frames
	// for early allocations the bootstrap path itself needs before any
	// subsystem can recycle memory (spec §4.1's failure path treats
	// exhaustion during bring-up as fatal, so reserving headroom here
	// keeps the common case from hitting it).
	for i := 0; i < cfg.ReservedFrames; i++ {
		if _, ok := bitmap.AllocateFrame(); !ok {
			break
		}
	}
	return bitmap, nil
}
