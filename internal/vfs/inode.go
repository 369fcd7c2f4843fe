// Package vfs implements the mount table, longest-prefix path
// resolver with symlink following, and the ramfs/devfs/procfs
// backends (spec §4.11, §6.4, §8.3 scenarios 3-4).
package vfs

import (
	"github.com/hadron-os/hadron/internal/errs"
	"github.com/hadron-os/hadron/internal/executor"
)

/// InodeType classifies what an Inode represents.
type InodeType int

const (
	File InodeType = iota
	Directory
	Symlink
	CharDevice
	BlockDevice
)

func (t InodeType) String() string {
	switch t {
	case File:
		return "file"
	case Directory:
		return "directory"
	case Symlink:
		return "symlink"
	case CharDevice:
		return "chardev"
	case BlockDevice:
		return "blockdev"
	default:
		return "unknown"
	}
}

/// Permissions is the small rwx-per-class bitmask FD operations check
/// against (spec §7 FsError::PermissionDenied).
type Permissions uint16

const (
	PermOwnerRead Permissions = 1 << iota
	PermOwnerWrite
	PermOwnerExec
)

/// ReadWrite is the common case: owner-readable and owner-writable.
const ReadWrite = PermOwnerRead | PermOwnerWrite

/// LookupResult is what a Lookup future resolves to.
type LookupResult struct {
	Inode Inode
	Err   error
}

/// DirEntry is one entry returned by Inode.Readdir: a child's name
/// paired with its type, enough for a directory listing without
/// forcing a second Lookup per entry.
type DirEntry struct {
	Name string
	Type InodeType
}

/// LookupFuture is the "async Inode interface" spec §4.11 calls for:
/// lookup is the one operation the original resolver drives through
/// poll_immediate, so it alone is modeled as a future here. Every
/// other Inode operation is plain synchronous Go, matching what
/// ramfs/devfs/procfs (the only backends this kernel ships) actually
/// need: their data lives in memory or is computed on the spot, so
/// wrapping them in futures would only add ceremony poll_immediate
/// would immediately unwrap anyway.
type LookupFuture = executor.ValueFuture[LookupResult]

/// immediateLookup is a LookupFuture that is always Ready on its first
/// poll — what every backend in this kernel returns, since none of
/// them block on I/O.
type immediateLookup struct {
	result LookupResult
}

func (f immediateLookup) Poll(cx *executor.Context) (LookupResult, executor.Poll) {
	return f.result, executor.Ready
}

/// Immediate wraps inode/err as an already-resolved LookupFuture.
func Immediate(inode Inode, err error) LookupFuture {
	return immediateLookup{result: LookupResult{Inode: inode, Err: err}}
}

/// PollImmediate drives a LookupFuture to completion and panics if it
/// is not Ready on the first poll — the Go analogue of the original
/// kernel's `poll_immediate` helper, which "asserts" synchronous
/// completion for ramfs-family filesystems (spec §4.11 Concurrency).
func PollImmediate(f LookupFuture) (Inode, error) {
	cx := &executor.Context{}
	result, p := f.Poll(cx)
	if p != executor.Ready {
		panic("vfs: lookup future did not resolve immediately")
	}
	return result.Inode, result.Err
}

/// Inode is implemented by every filesystem backend. Read/Write take
/// an offset rather than maintaining file-position state themselves;
/// internal/proc's OpenFile tracks the cursor per open file
/// description.
type Inode interface {
	InodeType() InodeType
	Permissions() Permissions
	Size() int64

	/// Lookup resolves name within this inode (which must be a
	/// Directory) to a child Inode.
	Lookup(name string) LookupFuture

	/// Readdir lists a Directory's children. Non-directories return
	/// FsError::NotADirectory (spec §3.9 Inode trait "readdir()").
	Readdir() ([]DirEntry, error)

	/// ReadLink returns a Symlink's target path.
	ReadLink() (string, error)

	Read(buf []byte, offset int64) (int, error)
	Write(buf []byte, offset int64) (int, error)
}

/// errUnsupported is the stock FsError for inode operations a backend
/// doesn't implement (e.g. ReadLink on a non-symlink).
func errUnsupported() error { return errs.NewFsError(errs.NotSupported) }
