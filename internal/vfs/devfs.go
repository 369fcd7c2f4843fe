package vfs

import (
	"sort"

	"github.com/hadron-os/hadron/internal/errs"
)

/// Devfs is the character-device filesystem mounted at /dev. It ships
/// the two devices spec §8.3 scenario 4 tests (null and zero) plus
/// console, which spec §4.10 step 7 requires every freshly spawned
/// process's FDs 0/1/2 to resolve to.
type Devfs struct {
	root *devDir
}

/// NewDevfs creates a devfs populated with /dev/null, /dev/zero, and
/// /dev/console.
func NewDevfs() *Devfs {
	root := &devDir{children: map[string]Inode{
		"null":    nullDevice{},
		"zero":    zeroDevice{},
		"console": &consoleDevice{},
	}}
	return &Devfs{root: root}
}

func (d *Devfs) Root() Inode { return d.root }

type devDir struct {
	children map[string]Inode
}

func (d *devDir) InodeType() InodeType     { return Directory }
func (d *devDir) Permissions() Permissions { return ReadWrite }
func (d *devDir) Size() int64              { return 0 }
func (d *devDir) ReadLink() (string, error) { return "", errUnsupported() }
func (d *devDir) Read([]byte, int64) (int, error)  { return 0, errs.NewFsError(errs.IsADirectory) }
func (d *devDir) Write([]byte, int64) (int, error) { return 0, errs.NewFsError(errs.IsADirectory) }

func (d *devDir) Lookup(name string) LookupFuture {
	child, ok := d.children[name]
	if !ok {
		return Immediate(nil, errs.NewFsError(errs.NotFound))
	}
	return Immediate(child, nil)
}

func (d *devDir) Readdir() ([]DirEntry, error) {
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

/// nullDevice implements /dev/null: reads always report EOF (0 bytes),
/// writes always report success without storing anything (spec §8.3
/// scenario 4).
type nullDevice struct{}

func (nullDevice) InodeType() InodeType     { return CharDevice }
func (nullDevice) Permissions() Permissions { return ReadWrite }
func (nullDevice) Size() int64              { return 0 }
func (nullDevice) ReadLink() (string, error) { return "", errUnsupported() }
func (nullDevice) Lookup(string) LookupFuture {
	return Immediate(nil, errs.NewFsError(errs.NotADirectory))
}
func (nullDevice) Readdir() ([]DirEntry, error) { return nil, errs.NewFsError(errs.NotADirectory) }
func (nullDevice) Read(buf []byte, offset int64) (int, error)  { return 0, nil }
func (nullDevice) Write(buf []byte, offset int64) (int, error) { return len(buf), nil }

/// zeroDevice implements /dev/zero: reads fill the buffer with zero
/// bytes and report a full read; writes are discarded but report
/// success (spec §8.3 scenario 4: "read(0, &mut [0xFF;64]) fills buffer
/// with zeros and returns 64").
type zeroDevice struct{}

func (zeroDevice) InodeType() InodeType     { return CharDevice }
func (zeroDevice) Permissions() Permissions { return ReadWrite }
func (zeroDevice) Size() int64              { return 0 }
func (zeroDevice) ReadLink() (string, error) { return "", errUnsupported() }
func (zeroDevice) Lookup(string) LookupFuture {
	return Immediate(nil, errs.NewFsError(errs.NotADirectory))
}
func (zeroDevice) Readdir() ([]DirEntry, error) { return nil, errs.NewFsError(errs.NotADirectory) }
func (zeroDevice) Read(buf []byte, offset int64) (int, error) {
	for i := range buf {
		buf[i] = 0
	}
	return len(buf), nil
}
func (zeroDevice) Write(buf []byte, offset int64) (int, error) { return len(buf), nil }

/// consoleDevice implements /dev/console, the FD every freshly spawned
/// process's stdin/stdout/stderr resolve to (spec §4.10 step 7). Writes
/// are forwarded to the kernel's console sink if one is attached; reads
/// report EOF, since there is no keyboard driver behind this device
/// yet.
type consoleDevice struct {
	sink func(string)
}

func (c *consoleDevice) InodeType() InodeType     { return CharDevice }
func (c *consoleDevice) Permissions() Permissions { return ReadWrite }
func (c *consoleDevice) Size() int64              { return 0 }
func (c *consoleDevice) ReadLink() (string, error) { return "", errUnsupported() }
func (c *consoleDevice) Lookup(string) LookupFuture {
	return Immediate(nil, errs.NewFsError(errs.NotADirectory))
}
func (c *consoleDevice) Readdir() ([]DirEntry, error) {
	return nil, errs.NewFsError(errs.NotADirectory)
}
func (c *consoleDevice) Read(buf []byte, offset int64) (int, error) { return 0, nil }
func (c *consoleDevice) Write(buf []byte, offset int64) (int, error) {
	if c.sink != nil {
		c.sink(string(buf))
	}
	return len(buf), nil
}

/// SetConsoleSink attaches fn as the output sink for /dev/console's
/// writes, if root was built by NewDevfs. Used by boot.Init to wire
/// the early console (spec §2's "serial/console output established").
func (d *Devfs) SetConsoleSink(fn func(string)) {
	if cd, ok := d.root.children["console"].(*consoleDevice); ok {
		cd.sink = fn
	}
}
