package diag

import (
	"fmt"

	"github.com/hadron-os/hadron/internal/klog"
	"github.com/hadron-os/hadron/internal/trap"
)

// PanicReport is everything spec §7 says a kernel panic renders to
// the console: the register snapshot (internal/trap.MachineState,
// reused here rather than redeclared), the faulting disassembly, and
// a free-form cause string (e.g. "double fault", "unhandled page
// fault at 0xdeadbeef").
type PanicReport struct {
	Cause       string
	State       trap.MachineState
	Disassembly string
	// Syms resolves the faulting RIP to a driver symbol name, if one
	// is known (spec §1: driver images are an external collaborator
	// and may be written in a name-mangling language). Nil if no
	// symbol table was loaded for the faulting image.
	Syms *SymbolTable
}

// Render formats a PanicReport the way spec §7 requires: the cause
// line, the MachineState snapshot, the symbolicated fault location (if
// resolvable), then the disassembly block, each on its own line so
// console output stays greppable.
func (r PanicReport) Render() string {
	loc := r.faultLocation()
	if loc == "" {
		return fmt.Sprintf("kernel panic: %s\n%s\n%s", r.Cause, r.State.String(), r.Disassembly)
	}
	return fmt.Sprintf("kernel panic: %s\nat %s\n%s\n%s", r.Cause, loc, r.State.String(), r.Disassembly)
}

func (r PanicReport) faultLocation() string {
	if r.Syms == nil {
		return ""
	}
	sym, offset, ok := r.Syms.Resolve(r.State.RIP)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s+%#x", Demangled(sym.Name), offset)
}

// ReportPanic renders and logs a PanicReport at Fatal level through
// klog's console sink (spec §7, §4.12), mirroring biscuit's own
// panic-to-console path.
func ReportPanic(r PanicReport) {
	klog.Log(klog.Fatal, r.Render())
}
