package trap

import (
	"testing"

	"github.com/hadron-os/hadron/internal/percpu"
)

func TestIDTDispatchInvokesInstalledHandler(t *testing.T) {
	idt := NewIDT()
	var gotVector Vector
	var gotCode uint64
	idt.Install(VectorPageFault, func(v Vector, code uint64) {
		gotVector, gotCode = v, code
	})

	idt.Dispatch(VectorPageFault, 0x4)

	if gotVector != VectorPageFault || gotCode != 0x4 {
		t.Fatalf("handler saw (%v, %#x), want (%v, 0x4)", gotVector, gotCode, VectorPageFault)
	}
}

func TestIDTDispatchPanicsOnUnhandledVector(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unhandled vector")
		}
	}()
	NewIDT().Dispatch(VectorDoubleFault, 0)
}

func TestInstallNoopIPIWakeDoesNotPanic(t *testing.T) {
	idt := NewIDT()
	idt.InstallNoopIPIWake()
	idt.Dispatch(VectorIPIWake, 0)
}

func TestNewMSRConfigDerivesSpecExampleSelectors(t *testing.T) {
	cfg := NewMSRConfig(0xffffffff80001000)

	if got := cfg.UserCodeSelector(); got != 0x23 {
		t.Fatalf("UserCodeSelector() = %#x, want 0x23", got)
	}
	if got := cfg.UserDataSelector(); got != 0x1b {
		t.Fatalf("UserDataSelector() = %#x, want 0x1b", got)
	}
	if !cfg.EFERSCE {
		t.Fatal("EFERSCE should be set")
	}
	if cfg.SFMASK&rflagsIF == 0 || cfg.SFMASK&rflagsDF == 0 {
		t.Fatal("SFMASK must clear both IF and DF")
	}
}

type scriptedRunner struct {
	reason percpu.TrapReason
}

func (r scriptedRunner) RunUntilTrap(cpu *percpu.CPU, entry UserEntry) {
	cpu.UserCtx = &percpu.UserContext{RIP: uint64(entry.RIP), RSP: uint64(entry.RSP)}
	cpu.TrapReason = r.reason
}

func TestEnterUserspaceSaveReturnsTrapReason(t *testing.T) {
	cpu := &percpu.CPU{}
	reason := EnterUserspaceSave(cpu, UserEntry{RIP: 0x401000, RSP: 0x7fff0000}, scriptedRunner{reason: percpu.TrapSyscall})

	if reason != percpu.TrapSyscall {
		t.Fatalf("reason = %v, want TrapSyscall", reason)
	}
	if cpu.UserCtx == nil || cpu.UserCtx.RIP != 0x401000 {
		t.Fatal("UserCtx was not populated by the runner")
	}
}

type badRunner struct{}

func (badRunner) RunUntilTrap(cpu *percpu.CPU, entry UserEntry) {}

func TestEnterUserspaceSavePanicsIfReasonUnset(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when Runner leaves TrapReason as TrapNone")
		}
	}()
	EnterUserspaceSave(&percpu.CPU{}, UserEntry{}, badRunner{})
}

func TestMachineStateStringContainsAllFields(t *testing.T) {
	ms := MachineState{CR0: 0x80000011, CR2: 0, CR3: 0x1000, CR4: 0x20, RFLAGS: 0x202, EFER: 0x901, CS: SelKernelCode, SS: SelKernelData, RIP: 0xdeadbeef, RSP: 0xcafebabe}
	s := ms.String()
	for _, want := range []string{"CR0=", "CR2=", "CR3=", "CR4=", "RFLAGS=", "EFER=", "CS=", "SS=", "RIP=0x00000000deadbeef", "RSP=0x00000000cafebabe"} {
		if !contains(s, want) {
			t.Fatalf("String() = %q missing %q", s, want)
		}
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
