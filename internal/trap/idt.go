// Package trap implements the IDT stub table, SYSCALL MSR setup
// description, and the setjmp/longjmp-style userspace entry/exit
// protocol that lets a straight-line kernel coroutine "call into"
// userspace and resume when the next trap fires (spec §4.6).
package trap

import (
	"fmt"
	"sync"
)

/// Vector identifies one of the 256 IDT entries.
type Vector uint8

const (
	VectorPageFault     Vector = 14
	VectorDoubleFault    Vector = 8
	VectorTimer         Vector = 254 // matches spec §4.6's custom preemption vector
	VectorIPIWake       Vector = 253 // spec §4.8 IPI_WAKE
)

/// Handler is the Rust-dispatcher analogue a real IDT stub calls after
/// saving scratch registers. In this hosted rendition it receives the
/// vector number and an error code (0 when the vector has none).
type Handler func(vector Vector, errorCode uint64)

/// IDT is the table of installed interrupt handlers. A production
/// build emits one tiny naked assembly stub per vector that saves
/// scratch GPRs, calls Dispatch, restores, and iretqs (spec §4.6); the
/// stub bodies themselves are outside this package's scope (they are
/// machine code, not data).
type IDT struct {
	mu       sync.RWMutex
	handlers [256]Handler
}

/// NewIDT creates an IDT with every vector unhandled.
func NewIDT() *IDT { return &IDT{} }

/// Install registers handler for vector, overwriting whatever was
/// previously installed. Meant to be called during L7 bring-up,
/// before interrupts are unmasked.
func (t *IDT) Install(vector Vector, handler Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[vector] = handler
}

/// Dispatch invokes the installed handler for vector, panicking
/// (spec §7 tier 3, fatal hardware error path) if none is installed —
/// an unhandled vector reaching the dispatcher is the Go-hosted
/// analogue of an unhandled CPU exception.
func (t *IDT) Dispatch(vector Vector, errorCode uint64) {
	t.mu.RLock()
	h := t.handlers[vector]
	t.mu.RUnlock()
	if h == nil {
		panic(fmt.Sprintf("trap: unhandled vector %d (error code %#x)", vector, errorCode))
	}
	h(vector, errorCode)
}

/// InstallNoopIPIWake registers a handler for IPI_WAKE whose sole
/// purpose is to exist: delivering it breaks the target CPU out of
/// `hlt` (spec §4.8). It does no other work.
func (t *IDT) InstallNoopIPIWake() {
	t.Install(VectorIPIWake, func(Vector, uint64) {})
}
