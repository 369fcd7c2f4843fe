//go:build linux

package arch

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// DevMemWindow is a host-side stand-in for an MMIO region mapping,
// used only by integration tests that want to exercise
// vmm.MapMMIO-shaped code against real physical memory windows
// outside of QEMU (spec §3 "Host-testable hardware boundary"). It
// opens /dev/mem and mmaps [phys, phys+size) directly, mirroring what
// the kernel's own PageMapper does with WRITABLE|CACHE_DISABLE flags,
// except here the "mapping" is a hosted mmap rather than a page-table
// walk.
type DevMemWindow struct {
	f    *os.File
	data []byte
}

// OpenDevMemWindow mmaps size bytes of physical memory starting at
// phys via /dev/mem. Requires CAP_SYS_RAWIO; tests that cannot obtain
// it should skip rather than treat failure as a bug.
func OpenDevMemWindow(phys uintptr, size int) (*DevMemWindow, error) {
	f, err := os.OpenFile("/dev/mem", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("arch: open /dev/mem: %w", err)
	}
	data, err := unix.Mmap(int(f.Fd()), int64(phys), size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("arch: mmap /dev/mem at %#x: %w", phys, err)
	}
	return &DevMemWindow{f: f, data: data}, nil
}

// Bytes returns the mapped window, valid until Close.
func (w *DevMemWindow) Bytes() []byte { return w.data }

// Close unmaps the window and closes the backing /dev/mem handle.
func (w *DevMemWindow) Close() error {
	err := unix.Munmap(w.data)
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}
