package boot

import (
	"fmt"

	"github.com/hadron-os/hadron/internal/executor"
	"github.com/hadron-os/hadron/internal/mem"
	"github.com/hadron-os/hadron/internal/proc"
	"github.com/hadron-os/hadron/internal/trap"
)

// initStackBase is where every process's user stack is mapped,
// chosen well below the canonical-address ceiling so a large stack
// can grow without colliding with USER_ADDR_MAX (internal/syscall).
const initStackBase = mem.VirtAddr(0x0000_7000_0000_0000)

const defaultUserStackPages = 16

// SpawnEnv returns the proc.SpawnEnv wired against this Kernel's
// memory stack and VFS, ready to hand to proc.Spawn. loader is the
// BinaryLoader external collaborator (spec §4.10 step 2); this
// package does not ship one.
func (k *Kernel) SpawnEnv(loader proc.BinaryLoader, consolePath string) proc.SpawnEnv {
	return proc.SpawnEnv{
		VFS:             k.VFS,
		MaxSymlinkDepth: k.Config.MaxSymlinkDepth,
		KernelRoot:      k.KernelRoot,
		Frames:          k.PMM,
		FreeFrame:       k.PMM.DeallocateFrame,
		Mapper:          k.Mapper,
		Loader:          loader,
		UserStackBase:   initStackBase,
		UserStackPages:  defaultUserStackPages,
		Kstacks:         k.Kstacks,
		ConsolePath:     consolePath,
	}
}

// SpawnInit spawns the first userspace process (spec §2's control flow
// ends with kernel_init handing off to the init binary named on the
// boot cmdline) and registers its process task with the BSP's
// executor so it runs the next time that executor polls (spec §4.10
// step 8).
func (k *Kernel) SpawnInit(loader proc.BinaryLoader, path string, argv []string, runner trap.Runner) (*proc.Process, error) {
	env := k.SpawnEnv(loader, "/dev/console")
	p, kstack, entry, err := proc.Spawn(env, k.Procs, 0, path, argv)
	if err != nil {
		return nil, fmt.Errorf("boot: spawn init %s: %w", path, err)
	}

	cpu := k.CPUs.Get(0)
	if cpu == nil {
		return nil, fmt.Errorf("boot: no CPU 0 registered to run init")
	}
	cpu.KernelRSP = uintptr(kstack.Top())

	k.Executor.Spawn(0, executor.PriorityNormal, -1, newInitTaskFuture(cpu, entry, runner), executor.TaskMeta{Name: path})
	return p, nil
}
