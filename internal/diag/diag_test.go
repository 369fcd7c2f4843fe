package diag

import (
	"bytes"
	"testing"

	"github.com/hadron-os/hadron/internal/trap"
)

func TestRingRecordAndDrain(t *testing.T) {
	r := NewRing(4)
	for i := uint64(0); i < 4; i++ {
		r.Record(i, 0, 0x1000+i)
	}
	samples := r.Drain()
	if len(samples) != 4 {
		t.Fatalf("len = %d, want 4", len(samples))
	}
	for i, s := range samples {
		if s.Tick != uint64(i) || s.RIP != 0x1000+uint64(i) {
			t.Fatalf("sample[%d] = %+v", i, s)
		}
	}
}

func TestRingWrapsOnOverflow(t *testing.T) {
	r := NewRing(2)
	r.Record(1, 0, 0xA)
	r.Record(2, 0, 0xB)
	r.Record(3, 0, 0xC)
	samples := r.Drain()
	if len(samples) != 2 {
		t.Fatalf("len = %d, want 2", len(samples))
	}
	if samples[0].Tick != 2 || samples[1].Tick != 3 {
		t.Fatalf("unexpected samples after overflow: %+v", samples)
	}
}

func TestEncodeProducesValidProfile(t *testing.T) {
	r := NewRing(8)
	r.Record(1, 0, 0x1000)
	r.Record(2, 1, 0x1000)
	r.Record(3, 0, 0x2000)

	var buf bytes.Buffer
	if err := Encode(&buf, r.Drain()); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("Encode produced empty output")
	}
}

func TestDisassembleAroundStopsOnBadBytes(t *testing.T) {
	// NOP; NOP; then an invalid byte sequence.
	code := []byte{0x90, 0x90, 0x0F, 0x0F}
	lines := DisassembleAround(0x1000, code, 10, nil)
	if len(lines) == 0 {
		t.Fatal("expected at least the two valid NOPs")
	}
}

func TestSymbolTableResolveAndDemangle(t *testing.T) {
	syms := NewSymbolTable()
	syms.Add(Symbol{Addr: 0x1000, Name: "_ZN3foo3barEv"})
	syms.Add(Symbol{Addr: 0x2000, Name: "driver_probe"})
	syms.Freeze()

	sym, offset, ok := syms.Resolve(0x1010)
	if !ok || sym.Name != "_ZN3foo3barEv" || offset != 0x10 {
		t.Fatalf("Resolve(0x1010) = %+v, %d, %v", sym, offset, ok)
	}
	if got := Demangled(sym.Name); got == sym.Name {
		t.Fatalf("Demangled did not demangle mangled name: %q", got)
	}

	_, _, ok = syms.Resolve(0xFF)
	if ok {
		t.Fatal("Resolve before first symbol should fail")
	}
}

func TestDisassembleAroundSymbolicatesCalls(t *testing.T) {
	syms := NewSymbolTable()
	syms.Add(Symbol{Addr: 0x2000, Name: "driver_probe"})
	syms.Freeze()

	// call rel32 to 0x2000 from 0x1000 (next insn at 0x1005).
	code := []byte{0xE8, 0xFB, 0x0F, 0x00, 0x00}
	lines := DisassembleAround(0x1000, code, 1, syms)
	if len(lines) != 1 {
		t.Fatalf("len(lines) = %d, want 1", len(lines))
	}
	if !bytes.Contains([]byte(lines[0]), []byte("driver_probe")) {
		t.Fatalf("expected symbolicated call target, got %q", lines[0])
	}
}

func TestPanicReportRender(t *testing.T) {
	r := PanicReport{
		Cause: "double fault",
		State: trap.MachineState{RIP: 0xdeadbeef},
	}
	out := r.Render()
	if out == "" {
		t.Fatal("Render produced empty output")
	}
}
