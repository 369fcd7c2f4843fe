// Package proc implements process identity, file descriptors, signal
// delivery, and process creation (spec §3.8, §4.10), grounded on the
// original kernel's hadron-core id.rs newtypes and proc/signal.rs.
package proc

import "fmt"

/// Pid identifies a process. Allocation is bump-only from a global
/// counter for the lifetime of one boot session (spec §3.8, and
/// DESIGN.md's Open Question disposition: no reuse). Widened to
/// uint64 here so the allocator never has to reason about wraparound,
/// unlike the original's u32.
type Pid uint64

func (p Pid) String() string { return fmt.Sprintf("pid:%d", uint64(p)) }

/// Fd identifies an open file within one process's FileDescriptorTable
/// (spec §3.8).
type Fd uint32

// Reserved descriptor numbers every process is seeded with at spawn.
const (
	Stdin  Fd = 0
	Stdout Fd = 1
	Stderr Fd = 2
)

func (f Fd) String() string { return fmt.Sprintf("fd:%d", uint32(f)) }
