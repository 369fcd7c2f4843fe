package diag

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// DisassembleAround decodes a short run of instructions starting at
// code[0], which the caller must have already sliced to begin at the
// faulting RIP (spec §4.13: "bytes surrounding a faulting RIP"). It
// stops after count instructions or when decoding fails, whichever
// comes first — a fault's surrounding bytes may legitimately run into
// data or an unmapped page past the last valid instruction. syms may
// be nil; when present, call targets are annotated with a
// demangled symbol+offset the way a driver-aware panic dump would.
func DisassembleAround(rip uint64, code []byte, count int, syms *SymbolTable) []string {
	var symname func(uint64) (string, uint64)
	if syms != nil {
		symname = syms.symnameFunc()
	}
	var lines []string
	off := 0
	for i := 0; i < count && off < len(code); i++ {
		inst, err := x86asm.Decode(code[off:], 64)
		if err != nil {
			lines = append(lines, fmt.Sprintf("%#x: <decode error: %v>", rip+uint64(off), err))
			break
		}
		lines = append(lines, fmt.Sprintf("%#x: %s", rip+uint64(off), x86asm.GoSyntax(inst, rip+uint64(off), symname)))
		off += inst.Len
	}
	return lines
}

// DisassemblyBlock joins DisassembleAround's output into the single
// text block the panic snapshot embeds (spec §4.13).
func DisassemblyBlock(rip uint64, code []byte, count int, syms *SymbolTable) string {
	return strings.Join(DisassembleAround(rip, code, count, syms), "\n")
}
