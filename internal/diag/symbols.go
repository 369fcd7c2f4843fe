package diag

import (
	"sort"

	"github.com/ianlancetaylor/demangle"
)

// Symbol is one entry of a driver image's symbol table. Driver crates
// linked into the kernel image are external collaborators (spec §1)
// and may be written in a language that name-mangles (C++ or Rust);
// this repo never produces mangled names itself, but must be able to
// render them legibly in a panic snapshot or disassembly listing when
// a fault's RIP falls inside a driver's code.
type Symbol struct {
	Addr uint64
	Name string
}

// SymbolTable resolves an address to the nearest preceding symbol and
// its byte offset, the way a panic handler maps a faulting RIP back to
// "driver_probe+0x2a" instead of a bare hex address. It is populated
// once at driver-load time (spec §3.10 external collaborator) and read
// from the panic-snapshot and disassembly paths, so it must not
// mutate after Freeze.
type SymbolTable struct {
	symbols []Symbol
	frozen  bool
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable { return &SymbolTable{} }

// Add installs one symbol. Panics if called after Freeze — Resolve
// assumes a stable, sorted table.
func (t *SymbolTable) Add(sym Symbol) {
	if t.frozen {
		panic("diag: SymbolTable.Add after Freeze")
	}
	t.symbols = append(t.symbols, sym)
}

// Freeze sorts the table by address and locks out further Add calls,
// making Resolve safe to call from any context including IRQ handlers
// (spec §5 "interrupt handlers may only read atomic state" — a frozen,
// unchanging slice satisfies that by never being written again).
func (t *SymbolTable) Freeze() {
	sort.Slice(t.symbols, func(i, j int) bool { return t.symbols[i].Addr < t.symbols[j].Addr })
	t.frozen = true
}

// Resolve finds the symbol whose address is the greatest one ≤ addr,
// returning it and the offset into it, or ok=false if addr precedes
// every known symbol.
func (t *SymbolTable) Resolve(addr uint64) (sym Symbol, offset uint64, ok bool) {
	n := len(t.symbols)
	i := sort.Search(n, func(i int) bool { return t.symbols[i].Addr > addr })
	if i == 0 {
		return Symbol{}, 0, false
	}
	s := t.symbols[i-1]
	return s, addr - s.Addr, true
}

// Demangled returns the human-readable form of a possibly C++- or
// Rust-mangled symbol name, via golang.org/x/…'s sibling
// github.com/ianlancetaylor/demangle. Names this repo did not itself
// generate (anything resolved through SymbolTable, sourced from an
// externally supplied driver image) are the only names ever passed
// here; demangle.Filter returns its input unchanged for anything that
// isn't a recognized mangled name, so this is always safe to call.
func Demangled(name string) string {
	return demangle.Filter(name)
}

// symnameFunc adapts a *SymbolTable into the symname callback
// golang.org/x/arch/x86/x86asm.GoSyntax accepts, demangling each
// resolved name before it's embedded in a disassembly line.
func (t *SymbolTable) symnameFunc() func(uint64) (string, uint64) {
	return func(addr uint64) (string, uint64) {
		sym, offset, ok := t.Resolve(addr)
		if !ok {
			return "", 0
		}
		return Demangled(sym.Name), offset
	}
}
