package vfs

import (
	"sort"
	"sync"

	"github.com/hadron-os/hadron/internal/errs"
)

/// Ramfs is an in-memory filesystem: every inode's contents live in a
/// Go byte slice, so every operation really does complete in the
/// single poll poll_immediate expects (spec §8.3 scenario 3).
type Ramfs struct {
	root *ramInode
}

/// NewRamfs creates a ramfs with an empty root directory.
func NewRamfs() *Ramfs {
	return &Ramfs{root: newRamDir()}
}

func (r *Ramfs) Root() Inode { return r.root }

type ramInode struct {
	mu       sync.RWMutex
	kind     InodeType
	perms    Permissions
	data     []byte
	children map[string]*ramInode
	target   string // symlink target
}

func newRamDir() *ramInode {
	return &ramInode{kind: Directory, perms: ReadWrite, children: make(map[string]*ramInode)}
}

func newRamFile(perms Permissions) *ramInode {
	return &ramInode{kind: File, perms: perms}
}

func (n *ramInode) InodeType() InodeType   { return n.kind }
func (n *ramInode) Permissions() Permissions { return n.perms }

func (n *ramInode) Size() int64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return int64(len(n.data))
}

func (n *ramInode) Lookup(name string) LookupFuture {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.kind != Directory {
		return Immediate(nil, errs.NewFsError(errs.NotADirectory))
	}
	child, ok := n.children[name]
	if !ok {
		return Immediate(nil, errs.NewFsError(errs.NotFound))
	}
	return Immediate(child, nil)
}

func (n *ramInode) Readdir() ([]DirEntry, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.kind != Directory {
		return nil, errs.NewFsError(errs.NotADirectory)
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]DirEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, DirEntry{Name: name, Type: n.children[name].kind})
	}
	return entries, nil
}

func (n *ramInode) ReadLink() (string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.kind != Symlink {
		return "", errUnsupported()
	}
	return n.target, nil
}

func (n *ramInode) Read(buf []byte, offset int64) (int, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.kind == Directory {
		return 0, errs.NewFsError(errs.IsADirectory)
	}
	if offset >= int64(len(n.data)) {
		return 0, nil
	}
	return copy(buf, n.data[offset:]), nil
}

func (n *ramInode) Write(buf []byte, offset int64) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.kind == Directory {
		return 0, errs.NewFsError(errs.IsADirectory)
	}
	end := offset + int64(len(buf))
	if end > int64(len(n.data)) {
		grown := make([]byte, end)
		copy(grown, n.data)
		n.data = grown
	}
	return copy(n.data[offset:end], buf), nil
}

/// Create adds a new inode named name under dir (which must be a
/// Ramfs directory inode obtained via Lookup/Root), of the given type
/// and permissions. It mirrors the original kernel's ramfs create
/// entry point (spec §8.3 scenario 3: "create(path, File, rw)").
func Create(dir Inode, name string, kind InodeType, perms Permissions) (Inode, error) {
	d, ok := dir.(*ramInode)
	if !ok {
		return nil, errUnsupported()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.kind != Directory {
		return nil, errs.NewFsError(errs.NotADirectory)
	}
	if _, exists := d.children[name]; exists {
		return nil, errs.NewFsError(errs.AlreadyExists)
	}
	var child *ramInode
	switch kind {
	case Directory:
		child = newRamDir()
	default:
		child = newRamFile(perms)
	}
	d.children[name] = child
	return child, nil
}

/// CreateSymlink adds a symlink named name under dir, pointing at target.
func CreateSymlink(dir Inode, name, target string) (Inode, error) {
	d, ok := dir.(*ramInode)
	if !ok {
		return nil, errUnsupported()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.kind != Directory {
		return nil, errs.NewFsError(errs.NotADirectory)
	}
	if _, exists := d.children[name]; exists {
		return nil, errs.NewFsError(errs.AlreadyExists)
	}
	child := &ramInode{kind: Symlink, target: target}
	d.children[name] = child
	return child, nil
}

/// Unlink removes name from dir.
func Unlink(dir Inode, name string) error {
	d, ok := dir.(*ramInode)
	if !ok {
		return errUnsupported()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.children[name]; !exists {
		return errs.NewFsError(errs.NotFound)
	}
	delete(d.children, name)
	return nil
}
