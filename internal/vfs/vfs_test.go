package vfs

import (
	"testing"

	"github.com/hadron-os/hadron/internal/errs"
)

func TestResolveRootIsLongestPrefixMount(t *testing.T) {
	v := NewVfs()
	ramfs := NewRamfs()
	v.Mount("/", ramfs)

	inode, err := v.Resolve("/", 8)
	if err != nil {
		t.Fatalf("Resolve(/): %v", err)
	}
	if inode != ramfs.Root() {
		t.Fatal("Resolve(/) must return the mounted root")
	}
}

func TestResolveRejectsRelativePath(t *testing.T) {
	v := NewVfs()
	v.Mount("/", NewRamfs())
	if _, err := v.Resolve("rel/path", 8); !isFsError(err, errs.InvalidArgument) {
		t.Fatalf("err = %v, want InvalidArgument", err)
	}
}

func TestResolveLongestPrefixAmongMultipleMounts(t *testing.T) {
	v := NewVfs()
	rootFs := NewRamfs()
	mntFs := NewRamfs()
	v.Mount("/", rootFs)
	v.Mount("/mnt", mntFs)

	if _, err := Create(rootFs.Root(), "mnt", Directory, ReadWrite); err != nil {
		t.Fatalf("setup: %v", err)
	}

	inode, err := v.Resolve("/mnt", 8)
	if err != nil {
		t.Fatalf("Resolve(/mnt): %v", err)
	}
	if inode != mntFs.Root() {
		t.Fatal("Resolve(/mnt) should hit the more specific mount, not /'s child directory")
	}
}

func TestRamfsCreateWriteReadUnlinkRoundtrip(t *testing.T) {
	v := NewVfs()
	ramfs := NewRamfs()
	v.Mount("/", ramfs)

	if _, err := Create(ramfs.Root(), "tmp", Directory, ReadWrite); err != nil {
		t.Fatalf("mkdir /tmp: %v", err)
	}

	inode, err := v.CreatePath("/tmp/a.txt", File, ReadWrite, 8)
	if err != nil {
		t.Fatalf("create /tmp/a.txt: %v", err)
	}

	n, err := inode.Write([]byte("hello"), 0)
	if err != nil || n != 5 {
		t.Fatalf("Write = (%d, %v), want (5, nil)", n, err)
	}

	buf := make([]byte, 5)
	n, err = inode.Read(buf, 0)
	if err != nil || n != 5 || string(buf) != "hello" {
		t.Fatalf("Read = (%q, %d, %v), want (\"hello\", 5, nil)", buf, n, err)
	}

	if err := v.UnlinkPath("/tmp/a.txt", 8); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if _, err := v.Resolve("/tmp/a.txt", 8); !isFsError(err, errs.NotFound) {
		t.Fatalf("err = %v, want NotFound after unlink", err)
	}
}

func TestReaddirListsChildrenSortedAndRejectsNonDirectory(t *testing.T) {
	v := NewVfs()
	ramfs := NewRamfs()
	v.Mount("/", ramfs)

	if _, err := Create(ramfs.Root(), "b.txt", File, ReadWrite); err != nil {
		t.Fatalf("create /b.txt: %v", err)
	}
	if _, err := Create(ramfs.Root(), "a.txt", File, ReadWrite); err != nil {
		t.Fatalf("create /a.txt: %v", err)
	}
	if _, err := Create(ramfs.Root(), "sub", Directory, ReadWrite); err != nil {
		t.Fatalf("mkdir /sub: %v", err)
	}

	root, err := v.Resolve("/", 8)
	if err != nil {
		t.Fatalf("Resolve(/): %v", err)
	}
	entries, err := root.Readdir()
	if err != nil {
		t.Fatalf("Readdir(/): %v", err)
	}
	want := []DirEntry{{Name: "a.txt", Type: File}, {Name: "b.txt", Type: File}, {Name: "sub", Type: Directory}}
	if len(entries) != len(want) {
		t.Fatalf("Readdir(/) = %v, want %v", entries, want)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Fatalf("entries[%d] = %+v, want %+v", i, entries[i], want[i])
		}
	}

	file, err := v.Resolve("/a.txt", 8)
	if err != nil {
		t.Fatalf("Resolve(/a.txt): %v", err)
	}
	if _, err := file.Readdir(); !isFsError(err, errs.NotADirectory) {
		t.Fatalf("Readdir(/a.txt) err = %v, want NotADirectory", err)
	}
}

func TestDevNullSemantics(t *testing.T) {
	v := NewVfs()
	v.Mount("/dev", NewDevfs())

	inode, err := v.Resolve("/dev/null", 8)
	if err != nil {
		t.Fatalf("Resolve(/dev/null): %v", err)
	}
	if inode.InodeType() != CharDevice {
		t.Fatal("/dev/null must be a CharDevice")
	}
	buf := make([]byte, 16)
	n, err := inode.Read(buf, 0)
	if err != nil || n != 0 {
		t.Fatalf("Read(/dev/null) = (%d, %v), want (0, nil)", n, err)
	}
	n, err = inode.Write([]byte("x"), 0)
	if err != nil || n != 1 {
		t.Fatalf("Write(/dev/null) = (%d, %v), want (1, nil)", n, err)
	}
}

func TestDevZeroSemantics(t *testing.T) {
	v := NewVfs()
	v.Mount("/dev", NewDevfs())

	inode, err := v.Resolve("/dev/zero", 8)
	if err != nil {
		t.Fatalf("Resolve(/dev/zero): %v", err)
	}
	buf := make([]byte, 64)
	for i := range buf {
		buf[i] = 0xFF
	}
	n, err := inode.Read(buf, 0)
	if err != nil || n != 64 {
		t.Fatalf("Read(/dev/zero) = (%d, %v), want (64, nil)", n, err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("buf[%d] = %#x, want 0", i, b)
		}
	}
}

func TestSymlinkFollowedDuringResolve(t *testing.T) {
	v := NewVfs()
	ramfs := NewRamfs()
	v.Mount("/", ramfs)

	if _, err := Create(ramfs.Root(), "real.txt", File, ReadWrite); err != nil {
		t.Fatalf("create real.txt: %v", err)
	}
	if _, err := CreateSymlink(ramfs.Root(), "link.txt", "/real.txt"); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	inode, err := v.Resolve("/link.txt", 8)
	if err != nil {
		t.Fatalf("Resolve(/link.txt): %v", err)
	}
	if inode.InodeType() != File {
		t.Fatal("resolving a symlink must yield the target's inode, not the link itself")
	}
}

func TestSymlinkLoopReturnsErrorWithinDepthBound(t *testing.T) {
	v := NewVfs()
	ramfs := NewRamfs()
	v.Mount("/", ramfs)

	if _, err := CreateSymlink(ramfs.Root(), "a", "/b"); err != nil {
		t.Fatalf("symlink a: %v", err)
	}
	if _, err := CreateSymlink(ramfs.Root(), "b", "/a"); err != nil {
		t.Fatalf("symlink b: %v", err)
	}

	if _, err := v.Resolve("/a", 8); !isFsError(err, errs.SymlinkLoop) {
		t.Fatalf("err = %v, want SymlinkLoop", err)
	}
}

func isFsError(err error, kind errs.FsErrorKind) bool {
	fe, ok := err.(*errs.FsError)
	return ok && fe.Kind == kind
}
