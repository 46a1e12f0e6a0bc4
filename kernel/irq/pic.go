package irq

import "novaos/kernel/cpu"

// 8259 PIC I/O ports and command bytes.
const (
	masterCommandPort = 0x20
	masterDataPort    = 0x21
	slaveCommandPort  = 0xA0
	slaveDataPort     = 0xA1

	icw1Init     = 0x11 // ICW1_INIT | ICW1_ICW4
	icw4Mode8086 = 0x01

	picEOI = 0x20
)

var (
	// masterMask/slaveMask track the current IMR contents; both start
	// fully masked (0xFF) until remapPIC runs.
	masterMask byte = 0xFF
	slaveMask  byte = 0xFF

	// mocked in tests so PIC setup can be exercised without real ports.
	outbFn = cpu.Outb
	inbFn  = cpu.Inb
)

// remapPIC reprograms the master/slave 8259 pair so that IRQ0-7 land on
// vectors 32-39 and IRQ8-15 on 40-47, instead of the BIOS default (which
// collides with the CPU exception vectors 0-31). All lines start masked;
// HandleIRQ unmasks the ones a driver actually registers for.
func remapPIC() {
	outbFn(masterCommandPort, icw1Init)
	outbFn(slaveCommandPort, icw1Init)

	outbFn(masterDataPort, 32) // ICW2: master vector base
	outbFn(slaveDataPort, 40)  // ICW2: slave vector base

	outbFn(masterDataPort, 4) // ICW3: slave attached to master IRQ2
	outbFn(slaveDataPort, 2)  // ICW3: slave's cascade identity

	outbFn(masterDataPort, icw4Mode8086)
	outbFn(slaveDataPort, icw4Mode8086)

	masterMask, slaveMask = 0xFF, 0xFF
	outbFn(masterDataPort, masterMask)
	outbFn(slaveDataPort, slaveMask)
}

// unmaskIRQ clears the mask bit for the given IRQ line, and for slave-side
// lines also clears the master's cascade bit (IRQ2) so the signal can reach
// the CPU at all.
func unmaskIRQ(num IRQNum) {
	if num < 8 {
		masterMask &^= 1 << num
		outbFn(masterDataPort, masterMask)
		return
	}

	slaveMask &^= 1 << (num - 8)
	outbFn(slaveDataPort, slaveMask)

	masterMask &^= 1 << 2
	outbFn(masterDataPort, masterMask)
}

// maskIRQ sets the mask bit for the given IRQ line.
func maskIRQ(num IRQNum) {
	if num < 8 {
		masterMask |= 1 << num
		outbFn(masterDataPort, masterMask)
		return
	}

	slaveMask |= 1 << (num - 8)
	outbFn(slaveDataPort, slaveMask)
}

// sendEOI acknowledges the interrupt at the given IDT vector. EOI always
// goes to the master; vectors >= 40 (slave-owned) also get an EOI sent to
// the slave. Unregistered IRQs still receive an EOI so the PIC isn't left
// believing the line is still in service.
func sendEOI(vector uint8) {
	if vector >= 40 {
		outbFn(slaveCommandPort, picEOI)
	}
	outbFn(masterCommandPort, picEOI)
}
