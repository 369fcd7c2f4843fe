package registry

import "github.com/hadron-os/hadron/internal/vfs"

/// FsKind distinguishes the two non-initramfs linker sections spec
/// §6.4 names: `hadron_block_fs` (needs a backing block device) versus
/// `hadron_virtual_fs` (synthetic, like ramfs/devfs/procfs).
type FsKind int

const (
	BlockFs FsKind = iota
	VirtualFs
)

/// FsEntry mirrors the hadron_block_fs/hadron_virtual_fs descriptor:
/// a named constructor producing a mountable vfs.FileSystem.
type FsEntry struct {
	Name string
	Kind FsKind
	New  func() vfs.FileSystem
}

/// InitramfsEntry mirrors `hadron_initramfs`: an embedded archive blob
/// to unpack at a mount point during bring-up.
type InitramfsEntry struct {
	Name       string
	MountPoint string
	Data       []byte
}

var (
	fsDrivers        []FsEntry
	initramfsEntries []InitramfsEntry
)

/// RegisterFileSystem appends entry to the filesystem driver table.
func RegisterFileSystem(entry FsEntry) {
	mu.Lock()
	defer mu.Unlock()
	fsDrivers = append(fsDrivers, entry)
}

/// RegisterInitramfs appends entry to the initramfs table.
func RegisterInitramfs(entry InitramfsEntry) {
	mu.Lock()
	defer mu.Unlock()
	initramfsEntries = append(initramfsEntries, entry)
}

/// FileSystems returns every registered filesystem driver entry.
func FileSystems() []FsEntry {
	mu.Lock()
	defer mu.Unlock()
	out := make([]FsEntry, len(fsDrivers))
	copy(out, fsDrivers)
	return out
}

/// InitramfsEntries returns every registered initramfs entry.
func InitramfsEntries() []InitramfsEntry {
	mu.Lock()
	defer mu.Unlock()
	out := make([]InitramfsEntry, len(initramfsEntries))
	copy(out, initramfsEntries)
	return out
}

/// LookupFileSystem returns the registered entry named name, or
/// ok=false if none was registered under that name.
func LookupFileSystem(name string) (FsEntry, bool) {
	mu.Lock()
	defer mu.Unlock()
	for _, e := range fsDrivers {
		if e.Name == name {
			return e, true
		}
	}
	return FsEntry{}, false
}
