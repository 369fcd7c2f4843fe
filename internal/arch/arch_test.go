package arch

import "testing"

var (
	_ Ports = (*Fake)(nil)
	_ Ports = HW{}
)

func TestFakePortIO(t *testing.T) {
	f := NewFake()
	f.Out8(0x3f8, 0x41)
	if got := f.In8(0x3f8); got != 0x41 {
		t.Fatalf("In8 = %#x, want 0x41", got)
	}
	f.Out32(0xcf8, 0x12345678)
	if got := f.In32(0xcf8); got != 0x12345678 {
		t.Fatalf("In32 = %#x, want 0x12345678", got)
	}
}

func TestFakeMSRAndGSBase(t *testing.T) {
	f := NewFake()
	f.WriteMSR(MsrGSBase, 0xdead)
	f.WriteMSR(MsrKernelGSBase, 0xbeef)
	if f.ReadMSR(MsrGSBase) != 0xdead || f.ReadMSR(MsrKernelGSBase) != 0xbeef {
		t.Fatal("MSR roundtrip failed")
	}
}

func TestFakeIrqGate(t *testing.T) {
	f := NewFake()
	gate := IrqGate{Ports: f}
	if !f.InterruptsEnabled() {
		t.Fatal("fake should start with interrupts enabled")
	}
	prev := gate.Disable()
	if !prev {
		t.Fatal("Disable should report the prior enabled state")
	}
	if f.InterruptsEnabled() {
		t.Fatal("Disable should have cleared IF")
	}
	gate.Restore(prev)
	if !f.InterruptsEnabled() {
		t.Fatal("Restore should re-enable IF when prev was true")
	}
}

func TestFakeTLBFlush(t *testing.T) {
	f := NewFake()
	f.FlushTLBAddr(0x1000)
	f.FlushTLBAddr(0x2000)
	got := f.FlushedAddrs()
	if len(got) != 2 || got[0] != 0x1000 || got[1] != 0x2000 {
		t.Fatalf("FlushedAddrs = %v", got)
	}
}

func TestFakeRDTSCMonotonic(t *testing.T) {
	f := NewFake()
	a := f.RDTSC()
	b := f.RDTSC()
	if b <= a {
		t.Fatalf("RDTSC should be monotonically increasing: %d then %d", a, b)
	}
}
