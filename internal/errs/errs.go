// Package errs collects the recoverable-error taxonomy shared by the
// memory, filesystem, and driver layers (spec §7).
package errs

import "fmt"

/// VmmError is returned by the paging and virtual-memory layers.
type VmmError struct {
	Kind VmmErrorKind
}

/// VmmErrorKind enumerates the distinct VmmError conditions.
type VmmErrorKind int

const (
	OutOfMemory VmmErrorKind = iota
	NotMapped
	SizeMismatch
	InvalidAddress
)

func (k VmmErrorKind) String() string {
	switch k {
	case OutOfMemory:
		return "out of memory"
	case NotMapped:
		return "not mapped"
	case SizeMismatch:
		return "page size mismatch"
	case InvalidAddress:
		return "invalid address"
	default:
		return "unknown vmm error"
	}
}

func (e *VmmError) Error() string { return "vmm: " + e.Kind.String() }

/// NewVmmError wraps a VmmErrorKind as an error.
func NewVmmError(kind VmmErrorKind) error { return &VmmError{Kind: kind} }

/// FsError is returned by the VFS and filesystem backends.
type FsError struct {
	Kind FsErrorKind
}

/// FsErrorKind enumerates the distinct FsError conditions.
type FsErrorKind int

const (
	NotFound FsErrorKind = iota
	NotADirectory
	IsADirectory
	AlreadyExists
	PermissionDenied
	IoError
	InvalidArgument
	NotSupported
	SymlinkLoop
	Interrupted
)

func (k FsErrorKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case NotADirectory:
		return "not a directory"
	case IsADirectory:
		return "is a directory"
	case AlreadyExists:
		return "already exists"
	case PermissionDenied:
		return "permission denied"
	case IoError:
		return "i/o error"
	case InvalidArgument:
		return "invalid argument"
	case NotSupported:
		return "not supported"
	case SymlinkLoop:
		return "symlink loop"
	case Interrupted:
		return "interrupted"
	default:
		return "unknown fs error"
	}
}

func (e *FsError) Error() string { return "fs: " + e.Kind.String() }

/// NewFsError wraps an FsErrorKind as an error.
func NewFsError(kind FsErrorKind) error { return &FsError{Kind: kind} }

/// Is reports whether err is an FsError of the given kind, so callers can
/// use errors.Is(err, errs.NewFsError(errs.NotFound)) style checks.
func (e *FsError) Is(target error) bool {
	other, ok := target.(*FsError)
	return ok && other.Kind == e.Kind
}

func (e *VmmError) Is(target error) bool {
	other, ok := target.(*VmmError)
	return ok && other.Kind == e.Kind
}

/// DriverError is returned by probe/init entry points in the driver
/// registry (spec §3.10, §6.4); the core never interprets its payload,
/// only logs and propagates it.
type DriverError struct {
	Kind DriverErrorKind
	Msg  string
}

/// DriverErrorKind enumerates the distinct DriverError conditions.
type DriverErrorKind int

const (
	InitFailed DriverErrorKind = iota
	DriverIoError
	Unsupported
	InvalidState
	Timeout
)

func (e *DriverError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("driver: %v", e.Kind)
	}
	return fmt.Sprintf("driver: %v: %s", e.Kind, e.Msg)
}

/// NewDriverError wraps a DriverErrorKind and message as an error.
func NewDriverError(kind DriverErrorKind, msg string) error {
	return &DriverError{Kind: kind, Msg: msg}
}

/// Errno is the negative i64 value returned by the syscall boundary
/// (spec §6.3). It is a distinct type from the recoverable sum types
/// above so that internal code never accidentally leaks a raw errno
/// past the syscall dispatcher.
type Errno int32

const (
	EPERM  Errno = 1
	ENOENT Errno = 2
	EIO    Errno = 5
	EBADF  Errno = 9
	EAGAIN Errno = 11
	ENOMEM Errno = 12
	EACCES Errno = 13
	EFAULT Errno = 14
	EBUSY  Errno = 16
	EEXIST Errno = 17
	ENODEV Errno = 19
	ENOTDIR Errno = 20
	EISDIR Errno = 21
	EINVAL Errno = 22
	ENOSYS Errno = 38
	EPIPE  Errno = 32
	EINTR  Errno = 4
)

/// FromFsError maps an FsError to its errno, per spec §6.3.
func FromFsError(err error) Errno {
	fe, ok := err.(*FsError)
	if !ok {
		return EIO
	}
	switch fe.Kind {
	case NotFound:
		return ENOENT
	case NotADirectory:
		return ENOTDIR
	case IsADirectory:
		return EISDIR
	case AlreadyExists:
		return EEXIST
	case PermissionDenied:
		return EACCES
	case InvalidArgument:
		return EINVAL
	case NotSupported:
		return ENOSYS
	case SymlinkLoop:
		return EINVAL
	case Interrupted:
		return EINTR
	default:
		return EIO
	}
}

/// FromVmmError maps a VmmError to its errno.
func FromVmmError(err error) Errno {
	ve, ok := err.(*VmmError)
	if !ok {
		return EFAULT
	}
	switch ve.Kind {
	case OutOfMemory:
		return ENOMEM
	case InvalidAddress:
		return EFAULT
	default:
		return EFAULT
	}
}
