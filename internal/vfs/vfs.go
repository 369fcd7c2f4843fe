package vfs

import (
	"strings"
	"sync"

	"github.com/hadron-os/hadron/internal/errs"
	"github.com/hadron-os/hadron/internal/ksync"
)

/// FileSystem is implemented by every mountable backend.
type FileSystem interface {
	Root() Inode
}

/// Vfs is the mount table and path resolver (spec §4.11). Its lock is
/// at ksync.LevelMountTable (level 3, above PMM and VMM), matching the global PMM/VMM/executor lock hierarchy spec
/// §5 lays out, and resolve runs fully inside one acquisition as the
/// Concurrency note requires.
type Vfs struct {
	mu     *ksync.SpinLock
	mounts map[string]FileSystem
}

/// NewVfs creates an empty mount table.
func NewVfs() *Vfs {
	return &Vfs{mu: ksync.NewSpinLock(ksync.LevelMountTable), mounts: make(map[string]FileSystem)}
}

/// Mount installs fs at path, overwriting any previous mount there.
func (v *Vfs) Mount(path string, fs FileSystem) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.mounts[path] = fs
}

/// Resolve resolves an absolute path to an inode, following symlinks
/// up to MaxSymlinkDepth (spec §4.11, §8.1 "Symlink termination").
func (v *Vfs) Resolve(path string, maxSymlinkDepth int) (Inode, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.resolveLocked(path, 0, maxSymlinkDepth)
}

func (v *Vfs) resolveLocked(path string, depth, maxSymlinkDepth int) (Inode, error) {
	if depth > maxSymlinkDepth {
		return nil, errs.NewFsError(errs.SymlinkLoop)
	}
	if !IsAbsolute(path) {
		return nil, errs.NewFsError(errs.InvalidArgument)
	}

	mountPaths := make([]string, 0, len(v.mounts))
	for m := range v.mounts {
		mountPaths = append(mountPaths, m)
	}
	mount, ok := LongestPrefixMatch(path, mountPaths)
	if !ok {
		return nil, errs.NewFsError(errs.NotFound)
	}
	fs := v.mounts[mount]
	current := fs.Root()

	remainder := StripMountPrefix(path, mount)
	if remainder == "" {
		return current, nil
	}

	for _, component := range Components(remainder) {
		child, err := PollImmediate(current.Lookup(component))
		if err != nil {
			return nil, err
		}
		current = child

		if current.InodeType() == Symlink {
			target, err := current.ReadLink()
			if err != nil {
				return nil, err
			}
			if !IsAbsolute(target) {
				target = Join("/", target)
			}
			current, err = v.resolveLocked(target, depth+1, maxSymlinkDepth)
			if err != nil {
				return nil, err
			}
		}
	}
	return current, nil
}

/// CreatePath resolves path's parent directory and creates a new inode
/// named after path's final component there (spec §8.3 scenario 3:
/// "create('/tmp/a.txt', File, rw)").
func (v *Vfs) CreatePath(path string, kind InodeType, perms Permissions, maxSymlinkDepth int) (Inode, error) {
	dir, name, err := splitParent(path)
	if err != nil {
		return nil, err
	}
	parent, err := v.Resolve(dir, maxSymlinkDepth)
	if err != nil {
		return nil, err
	}
	return Create(parent, name, kind, perms)
}

/// UnlinkPath resolves path's parent directory and removes its final
/// component.
func (v *Vfs) UnlinkPath(path string, maxSymlinkDepth int) error {
	dir, name, err := splitParent(path)
	if err != nil {
		return err
	}
	parent, err := v.Resolve(dir, maxSymlinkDepth)
	if err != nil {
		return err
	}
	return Unlink(parent, name)
}

func splitParent(path string) (dir, name string, err error) {
	if !IsAbsolute(path) {
		return "", "", errs.NewFsError(errs.InvalidArgument)
	}
	idx := strings.LastIndexByte(path, '/')
	name = path[idx+1:]
	if name == "" {
		return "", "", errs.NewFsError(errs.InvalidArgument)
	}
	dir = path[:idx]
	if dir == "" {
		dir = "/"
	}
	return dir, name, nil
}

var (
	globalMu  sync.Mutex
	globalVfs *Vfs
)

/// Init installs vfs as the process-wide VFS instance, panicking if one
/// is already installed (grounded on the original kernel's vfs::init,
/// which has the identical "panic if already initialized" contract).
func Init(v *Vfs) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalVfs != nil {
		panic("vfs: already initialized")
	}
	globalVfs = v
}

/// Global returns the process-wide VFS instance, panicking if Init has
/// not run yet.
func Global() *Vfs {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalVfs == nil {
		panic("vfs: not initialized")
	}
	return globalVfs
}

/// ResetGlobalForTest clears the process-wide VFS instance so test
/// cases can call Init repeatedly; production code never calls this.
func ResetGlobalForTest() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalVfs = nil
}
