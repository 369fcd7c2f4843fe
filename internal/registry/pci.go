// Package registry implements the constructor-registration pattern
// spec §6.4's Design Notes call for as a linker-section substitute:
// "objects run a constructor that appends themselves to a registry."
// Each descriptor type below mirrors one of the four named linker
// sections (hadron_pci_drivers, hadron_platform_drivers, hadron_block_fs
// /hadron_virtual_fs/hadron_initramfs), grounded on the original
// kernel's hadron-driver-api/src/pci.rs for the PCI matching fields and
// crates/linkset/src/lib.rs for the section-iteration contract that Go
// package-level registration replaces. cmd/hadron-gensections produces
// the equivalent of a build-time generated static array for callers
// that want one without relying on init() ordering.
package registry

import "sync"

/// PciAnyID is the wildcard value PciDeviceId fields use to match any
/// vendor/device/subsystem ID.
const PciAnyID uint16 = 0xFFFF

/// PciAddress is a PCI bus/device/function address.
type PciAddress struct {
	Bus      uint8
	Device   uint8
	Function uint8
}

/// PciBarKind distinguishes PciBar variants.
type PciBarKind int

const (
	PciBarUnused PciBarKind = iota
	PciBarMemory
	PciBarIO
)

/// PciBar is a decoded Base Address Register.
type PciBar struct {
	Kind         PciBarKind
	Base         uint64
	Size         uint64
	Prefetchable bool
	Is64Bit      bool
}

/// PciDeviceInfo is the full discovered-device record a probe function
/// receives.
type PciDeviceInfo struct {
	Address             PciAddress
	VendorID            uint16
	DeviceID            uint16
	Revision            uint8
	ProgIF              uint8
	Subclass            uint8
	Class               uint8
	HeaderType          uint8
	SubsystemVendorID   uint16
	SubsystemDeviceID   uint16
	InterruptLine       uint8
	InterruptPin        uint8
	Bars                [6]PciBar
}

/// PciDeviceId matches a driver against discovered hardware.
type PciDeviceId struct {
	Vendor    uint16
	Device    uint16
	Subvendor uint16
	Subdevice uint16
	Class     uint32
	ClassMask uint32
}

/// NewPciDeviceId builds an ID entry matching a specific vendor/device
/// pair.
func NewPciDeviceId(vendor, device uint16) PciDeviceId {
	return PciDeviceId{Vendor: vendor, Device: device, Subvendor: PciAnyID, Subdevice: PciAnyID}
}

/// PciDeviceIdWithClass builds an ID entry matching a PCI class and
/// subclass, ignoring vendor/device.
func PciDeviceIdWithClass(class, subclass uint8) PciDeviceId {
	return PciDeviceId{
		Vendor: PciAnyID, Device: PciAnyID, Subvendor: PciAnyID, Subdevice: PciAnyID,
		Class:     uint32(class)<<16 | uint32(subclass)<<8,
		ClassMask: 0xFFFF00,
	}
}

/// Matches reports whether id matches the discovered device info.
func (id PciDeviceId) Matches(info PciDeviceInfo) bool {
	if id.Vendor != PciAnyID && id.Vendor != info.VendorID {
		return false
	}
	if id.Device != PciAnyID && id.Device != info.DeviceID {
		return false
	}
	if id.Subvendor != PciAnyID && id.Subvendor != info.SubsystemVendorID {
		return false
	}
	if id.Subdevice != PciAnyID && id.Subdevice != info.SubsystemDeviceID {
		return false
	}
	if id.ClassMask != 0 {
		devClass := uint32(info.Class)<<16 | uint32(info.Subclass)<<8 | uint32(info.ProgIF)
		if devClass&id.ClassMask != id.Class&id.ClassMask {
			return false
		}
	}
	return true
}

/// Services is whatever the kernel hands a probe/init function —
/// logging, MMIO mapping, interrupt registration. Kept as an opaque
/// interface{} here since its concrete shape belongs to internal/boot,
/// which this package cannot import without a cycle.
type Services any

/// Registration is returned by a successful probe/init call; its
/// payload is driver-defined and never inspected by the registry.
type Registration struct {
	Name    string
	Payload any
}

/// PciDriverEntry mirrors the `hadron_pci_drivers` linker-section
/// descriptor.
type PciDriverEntry struct {
	Name     string
	IDTable  []PciDeviceId
	Probe    func(PciDeviceInfo, Services) (Registration, error)
}

/// PlatformDriverEntry mirrors `hadron_platform_drivers`.
type PlatformDriverEntry struct {
	Name       string
	Compatible string
	Init       func(Services) (Registration, error)
}

var (
	mu                sync.Mutex
	pciDrivers        []PciDriverEntry
	platformDrivers   []PlatformDriverEntry
)

/// RegisterPCIDriver appends entry to the PCI driver table. Called from
/// a driver package's init() function, the constructor-registration
/// substitute the Design Notes describe for linker-section discovery.
func RegisterPCIDriver(entry PciDriverEntry) {
	mu.Lock()
	defer mu.Unlock()
	pciDrivers = append(pciDrivers, entry)
}

/// RegisterPlatformDriver appends entry to the platform driver table.
func RegisterPlatformDriver(entry PlatformDriverEntry) {
	mu.Lock()
	defer mu.Unlock()
	platformDrivers = append(platformDrivers, entry)
}

/// PCIDrivers returns every registered PCI driver entry, computed the
/// way the original's `(end - start) / size_of::<Entry>()` does: a full
/// snapshot, not a live view.
func PCIDrivers() []PciDriverEntry {
	mu.Lock()
	defer mu.Unlock()
	out := make([]PciDriverEntry, len(pciDrivers))
	copy(out, pciDrivers)
	return out
}

/// PlatformDrivers returns every registered platform driver entry.
func PlatformDrivers() []PlatformDriverEntry {
	mu.Lock()
	defer mu.Unlock()
	out := make([]PlatformDriverEntry, len(platformDrivers))
	copy(out, platformDrivers)
	return out
}

/// MatchPCIDriver returns the first registered PCI driver whose ID
/// table matches info, or ok=false if none do.
func MatchPCIDriver(info PciDeviceInfo) (PciDriverEntry, bool) {
	mu.Lock()
	defer mu.Unlock()
	for _, d := range pciDrivers {
		for _, id := range d.IDTable {
			if id.Matches(info) {
				return d, true
			}
		}
	}
	return PciDriverEntry{}, false
}

/// ResetForTest clears every registered entry; production code never
/// calls this.
func ResetForTest() {
	mu.Lock()
	defer mu.Unlock()
	pciDrivers = nil
	platformDrivers = nil
	fsDrivers = nil
	initramfsEntries = nil
}
