//go:build amd64

package arch

// HW is the production Ports implementation for x86_64. Every method
// is a thin Go wrapper around one plan9-assembly instruction in
// ports_amd64.s; none of them are safe to call outside ring 0 (IN/OUT
// and CR writes fault under a hosted OS), which is why this build
// only matters for the freestanding kernel image — under `go test` on
// a hosted amd64 machine, code under test uses Fake instead.
type HW struct{}

// NewHW returns the real-hardware Ports backer.
func NewHW() HW { return HW{} }

func (HW) In8(port uint16) uint8    { return inb(port) }
func (HW) Out8(port uint16, v uint8) { outb(port, v) }
func (HW) In32(port uint16) uint32   { return inl(port) }
func (HW) Out32(port uint16, v uint32) { outl(port, v) }

func (HW) ReadMSR(msr uint32) uint64       { return rdmsr(msr) }
func (HW) WriteMSR(msr uint32, v uint64)   { wrmsr(msr, v) }

func (HW) ReadCR0() uint64 { return readCR0() }
func (HW) ReadCR2() uint64 { return readCR2() }
func (HW) ReadCR3() uint64 { return readCR3() }
func (HW) ReadCR4() uint64 { return readCR4() }
func (HW) WriteCR3(v uint64) { writeCR3(v) }

func (HW) FlushTLBAddr(virt uint64) { invlpg(virt) }
func (HW) FlushTLBAll()             { writeCR3(readCR3()) }

func (HW) RDTSC() uint64 { return rdtsc() }

func (HW) DisableInterrupts() bool {
	was := interruptsEnabled()
	cli()
	return was
}
func (HW) EnableInterrupts() { sti() }

func (HW) WriteGSBase(v uint64)       { wrmsr(MsrGSBase, v) }
func (HW) WriteKernelGSBase(v uint64) { wrmsr(MsrKernelGSBase, v) }

// The functions below are implemented in ports_amd64.s; they have no
// Go body.

func inb(port uint16) uint8
func outb(port uint16, v uint8)
func inl(port uint16) uint32
func outl(port uint16, v uint32)

func rdmsr(msr uint32) uint64
func wrmsr(msr uint32, v uint64)

func readCR0() uint64
func readCR2() uint64
func readCR3() uint64
func readCR4() uint64
func writeCR3(v uint64)

func invlpg(virt uint64)
func rdtsc() uint64

func cli()
func sti()
func interruptsEnabled() bool
