package vfs

import (
	"fmt"
	"sort"

	"github.com/hadron-os/hadron/internal/errs"
	"github.com/hadron-os/hadron/internal/mem"
)

/// Procfs exposes live kernel state as files, the way the original
/// kernel's fs/procfs.rs does for /proc/meminfo: content is generated
/// on each read rather than stored.
type Procfs struct {
	root *procDir
}

/// NewProcfs creates a procfs whose /proc/meminfo reads through pmm.
func NewProcfs(pmm *mem.Bitmap) *Procfs {
	root := &procDir{children: map[string]Inode{
		"meminfo": &procMeminfo{pmm: pmm},
	}}
	return &Procfs{root: root}
}

func (p *Procfs) Root() Inode { return p.root }

type procDir struct {
	children map[string]Inode
}

func (d *procDir) InodeType() InodeType      { return Directory }
func (d *procDir) Permissions() Permissions  { return PermOwnerRead }
func (d *procDir) Size() int64               { return 0 }
func (d *procDir) ReadLink() (string, error) { return "", errUnsupported() }
func (d *procDir) Read([]byte, int64) (int, error)  { return 0, errs.NewFsError(errs.IsADirectory) }
func (d *procDir) Write([]byte, int64) (int, error) { return 0, errs.NewFsError(errs.IsADirectory) }

func (d *procDir) Lookup(name string) LookupFuture {
	child, ok := d.children[name]
	if !ok {
		return Immediate(nil, errs.NewFsError(errs.NotFound))
	}
	return Immediate(child, nil)
}

func (d *procDir) Readdir() ([]DirEntry, error) {
	names := make([]string, 0, len(d.children))
	for name := range d.children {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]DirEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, DirEntry{Name: name, Type: d.children[name].InodeType()})
	}
	return entries, nil
}

/// procMeminfo generates /proc/meminfo's content from the live PMM
/// state on every read, exactly as the original kernel does.
type procMeminfo struct {
	pmm *mem.Bitmap
}

func (m *procMeminfo) InodeType() InodeType      { return File }
func (m *procMeminfo) Permissions() Permissions  { return PermOwnerRead }
func (m *procMeminfo) Size() int64               { return 0 }
func (m *procMeminfo) ReadLink() (string, error) { return "", errUnsupported() }
func (m *procMeminfo) Lookup(string) LookupFuture {
	return Immediate(nil, errs.NewFsError(errs.NotADirectory))
}
func (m *procMeminfo) Readdir() ([]DirEntry, error) {
	return nil, errs.NewFsError(errs.NotADirectory)
}
func (m *procMeminfo) Write([]byte, int64) (int, error) {
	return 0, errs.NewFsError(errs.PermissionDenied)
}

func (m *procMeminfo) Read(buf []byte, offset int64) (int, error) {
	const pageSizeBytes = 4096
	total := m.pmm.TotalFrames()
	free := m.pmm.FreeFrames()
	totalKB := total * pageSizeBytes / 1024
	freeKB := free * pageSizeBytes / 1024
	content := fmt.Sprintf("MemTotal:    %d kB\nMemFree:     %d kB\nMemUsed:     %d kB\n",
		totalKB, freeKB, totalKB-freeKB)

	bytes := []byte(content)
	if offset >= int64(len(bytes)) {
		return 0, nil
	}
	return copy(buf, bytes[offset:]), nil
}
