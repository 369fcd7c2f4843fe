package proc

import (
	"sync"

	"github.com/hadron-os/hadron/internal/errs"
	"github.com/hadron-os/hadron/internal/vfs"
)

/// OpenFlags mirrors the permission bits an open() call records
/// alongside the inode (spec §3.8 OpenFile).
type OpenFlags uint32

const (
	OpenRead OpenFlags = 1 << iota
	OpenWrite
	OpenCloexec
)

/// OpenFile is one live entry in a FileDescriptorTable: an inode, a
/// per-descriptor cursor, and the flags it was opened with (spec
/// §3.8).
type OpenFile struct {
	Inode  vfs.Inode
	Offset int64
	Flags  OpenFlags
}

/// FileDescriptorTable is a dense index of a process's open files
/// (spec §3.8). Slots are reused once closed; the table never shrinks.
type FileDescriptorTable struct {
	mu      sync.Mutex
	entries []*OpenFile
}

/// NewFileDescriptorTable returns an empty table.
func NewFileDescriptorTable() *FileDescriptorTable {
	return &FileDescriptorTable{}
}

/// Install inserts file at the lowest free slot, or appends one, and
/// returns its Fd.
func (t *FileDescriptorTable) Install(file *OpenFile) Fd {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.entries {
		if e == nil {
			t.entries[i] = file
			return Fd(i)
		}
	}
	t.entries = append(t.entries, file)
	return Fd(len(t.entries) - 1)
}

/// InstallAt installs file at exactly fd, growing the table if needed
/// and overwriting (without closing) whatever was already there. Used
/// to seed 0/1/2 at process creation and to implement dup2.
func (t *FileDescriptorTable) InstallAt(fd Fd, file *OpenFile) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.growLocked(int(fd) + 1)
	t.entries[fd] = file
}

func (t *FileDescriptorTable) growLocked(n int) {
	for len(t.entries) < n {
		t.entries = append(t.entries, nil)
	}
}

/// Get returns the entry at fd, or ok=false if fd is out of range or
/// closed.
func (t *FileDescriptorTable) Get(fd Fd) (*OpenFile, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(fd) < 0 || int(fd) >= len(t.entries) || t.entries[fd] == nil {
		return nil, false
	}
	return t.entries[fd], true
}

/// Dup2 copies the entry at oldFd into newFd, sharing the same
/// *OpenFile (and therefore cursor) the way POSIX dup2 does.
func (t *FileDescriptorTable) Dup2(oldFd, newFd Fd) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(oldFd) < 0 || int(oldFd) >= len(t.entries) || t.entries[oldFd] == nil {
		return errs.NewFsError(errs.InvalidArgument)
	}
	t.growLocked(int(newFd) + 1)
	t.entries[newFd] = t.entries[oldFd]
	return nil
}

/// Close drops the entry at fd. Closing an already-closed or
/// out-of-range fd is a no-op error, not a panic.
func (t *FileDescriptorTable) Close(fd Fd) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(fd) < 0 || int(fd) >= len(t.entries) || t.entries[fd] == nil {
		return errs.NewFsError(errs.InvalidArgument)
	}
	t.entries[fd] = nil
	return nil
}
