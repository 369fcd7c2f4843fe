package syscall

import (
	"github.com/hadron-os/hadron/internal/errs"
	"github.com/hadron-os/hadron/internal/mem"
)

// UserAddrMax is the first address a user pointer may never reach or
// exceed (spec §6.2): `0x0000_8000_0000_0000`, the top of the
// canonical low half on x86_64. Any user-supplied pointer at or above
// this is rejected outright, never walked.
const UserAddrMax uint64 = 0x0000_8000_0000_0000

// UserPtr validates a single user-supplied pointer value before any
// kernel code dereferences the memory it names (spec §6.2: "User
// pointers are validated by a UserPtr<T>/UserSlice abstraction").
// This package never actually dereferences the address — real access
// happens through the AddressSpace mapped into the currently running
// process, which is outside this package's scope; UserPtr only
// performs the three checks spec §6.2 names: range, alignment, and
// overflow.
type UserPtr struct {
	addr  uint64
	align uint64
}

// NewUserPtr validates addr against USER_ADDR_MAX and the required
// alignment (the natural alignment of whatever T the caller intends
// to read/write, passed explicitly since this package has no generics
// over arbitrary memory layouts).
func NewUserPtr(addr, align uint64) (UserPtr, error) {
	if addr >= UserAddrMax {
		return UserPtr{}, errs.NewFsError(errs.InvalidArgument)
	}
	if align != 0 && addr%align != 0 {
		return UserPtr{}, errs.NewFsError(errs.InvalidArgument)
	}
	return UserPtr{addr: addr, align: align}, nil
}

// Addr returns the validated address.
func (p UserPtr) Addr() uint64 { return p.addr }

// UserSlice validates a user-supplied (pointer, length) pair: every
// byte in [addr, addr+length) must be below USER_ADDR_MAX, and the
// range must not wrap the 64-bit address space (spec §6.2's "checks
// overflow").
type UserSlice struct {
	addr   uint64
	length uint64
}

// NewUserSlice validates addr/length per spec §6.2.
func NewUserSlice(addr, length uint64) (UserSlice, error) {
	end := addr + length
	if end < addr {
		// unsigned wraparound: the range overflows the address space.
		return UserSlice{}, errs.NewFsError(errs.InvalidArgument)
	}
	if end > UserAddrMax {
		return UserSlice{}, errs.NewFsError(errs.InvalidArgument)
	}
	return UserSlice{addr: addr, length: length}, nil
}

func (s UserSlice) Addr() uint64   { return s.addr }
func (s UserSlice) Length() uint64 { return s.length }

// VirtAddr exposes the validated address as a mem.VirtAddr for callers
// that go on to translate it through an AddressSpace.
func (s UserSlice) VirtAddr() (mem.VirtAddr, bool) {
	return mem.NewVirtAddr(s.addr)
}
