package registry

import (
	"testing"

	"github.com/hadron-os/hadron/internal/vfs"
)

func TestRegisterAndMatchPCIDriver(t *testing.T) {
	defer ResetForTest()
	RegisterPCIDriver(PciDriverEntry{
		Name:    "ahci",
		IDTable: []PciDeviceId{PciDeviceIdWithClass(0x01, 0x06)},
		Probe: func(info PciDeviceInfo, svc Services) (Registration, error) {
			return Registration{Name: "ahci"}, nil
		},
	})

	info := PciDeviceInfo{Class: 0x01, Subclass: 0x06}
	d, ok := MatchPCIDriver(info)
	if !ok || d.Name != "ahci" {
		t.Fatalf("MatchPCIDriver = (%+v, %v), want ahci", d, ok)
	}
}

func TestMatchPCIDriverRejectsMismatch(t *testing.T) {
	defer ResetForTest()
	RegisterPCIDriver(PciDriverEntry{
		Name:    "e1000e",
		IDTable: []PciDeviceId{NewPciDeviceId(0x8086, 0x100e)},
	})

	if _, ok := MatchPCIDriver(PciDeviceInfo{VendorID: 0x10de, DeviceID: 0x0010}); ok {
		t.Fatal("mismatched vendor/device must not match")
	}
}

func TestPciDeviceIdWildcardFields(t *testing.T) {
	id := NewPciDeviceId(0x8086, 0x100e)
	if id.Subvendor != PciAnyID || id.Subdevice != PciAnyID {
		t.Fatal("NewPciDeviceId must leave subvendor/subdevice as wildcards")
	}
}

func TestRegisterFileSystemAndLookup(t *testing.T) {
	defer ResetForTest()
	RegisterFileSystem(FsEntry{
		Name: "ramfs",
		Kind: VirtualFs,
		New:  func() vfs.FileSystem { return vfs.NewRamfs() },
	})

	e, ok := LookupFileSystem("ramfs")
	if !ok {
		t.Fatal("expected ramfs entry to be registered")
	}
	if _, ok := e.New().(*vfs.Ramfs); !ok {
		t.Fatal("New() should construct a *vfs.Ramfs")
	}
}

func TestPCIDriversSnapshotIsNotLive(t *testing.T) {
	defer ResetForTest()
	RegisterPCIDriver(PciDriverEntry{Name: "one"})
	snap := PCIDrivers()
	RegisterPCIDriver(PciDriverEntry{Name: "two"})

	if len(snap) != 1 {
		t.Fatalf("snapshot len = %d, want 1 (snapshot must not observe later registrations)", len(snap))
	}
}
