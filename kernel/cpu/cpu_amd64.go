// Package cpu exposes the handful of privileged x86-64 instructions the
// rest of the kernel needs. The bodies live in cpu_amd64.s; the Go side is
// pure forward declarations, keeping architecture-specific assembly out of
// regular Go files.
package cpu

var (
	cpuidFn = ID
)

// EnableInterrupts executes sti.
func EnableInterrupts()

// DisableInterrupts executes cli.
func DisableInterrupts()

// Halt executes hlt.
func Halt()

// Pause executes the pause instruction, hinting to the CPU that the
// current code is a spin-wait loop so it can back off memory traffic.
func Pause()

// InterruptsEnabled reports whether the IF flag is currently set.
func InterruptsEnabled() bool

// Invlpg flushes the TLB entry for a single virtual address.
func Invlpg(virtAddr uintptr)

// FlushTLBEntry flushes a TLB entry for a particular virtual address. It is
// an alias kept for symmetry with the page-table code that calls it.
func FlushTLBEntry(virtAddr uintptr) {
	Invlpg(virtAddr)
}

// ReadCR2 returns the value stored in the CR2 register (the faulting
// address after a page fault).
func ReadCR2() uintptr

// ReadCR3 returns the physical address of the currently active PML4 table.
func ReadCR3() uintptr

// LoadCR3 sets the root page table directory to the given physical address
// and flushes the entire TLB.
func LoadCR3(pml4PhysAddr uintptr)

// Inb reads a byte from the given I/O port.
func Inb(port uint16) uint8

// Outb writes a byte to the given I/O port.
func Outb(port uint16, value uint8)

// Inl reads a 32-bit value from the given I/O port.
func Inl(port uint16) uint32

// Outl writes a 32-bit value to the given I/O port.
func Outl(port uint16, value uint32)

// ID returns information about the CPU and its features. It is implemented
// as a CPUID instruction with EAX=leaf and returns the values left in EAX,
// EBX, ECX and EDX.
func ID(leaf uint32) (uint32, uint32, uint32, uint32)

// IsIntel returns true if the code is running on an Intel processor.
func IsIntel() bool {
	_, ebx, ecx, edx := cpuidFn(0)
	return ebx == 0x756e6547 && // "Genu"
		edx == 0x49656e69 && // "ineI"
		ecx == 0x6c65746e // "ntel"
}
