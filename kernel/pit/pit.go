// Package pit drives the legacy 8253/8254 Programmable Interval Timer as
// the kernel's monotonic tick source. Channel 0 is programmed for a square
// wave (mode 3) at a fixed frequency; the resulting IRQ0 stream both
// maintains a 64-bit tick counter and drives scheduler preemption through
// the registered OnTick callback.
package pit

import "novaos/kernel/cpu"

// inputFrequency is the PIT's fixed oscillator frequency in Hz.
const inputFrequency = 1193182

const (
	channel0Data = 0x40
	commandPort  = 0x43
	commandByte  = 0x36 // channel 0, lo/hi byte, mode 3, binary
)

var (
	// frequency is the configured tick rate; Init defaults it to 1000 Hz
	// so one tick equals one millisecond.
	frequency uint32 = 1000

	// ticks is the monotonic tick counter incremented by the ISR.
	ticks uint64

	// onTick, when non-nil, is invoked once per tick after the counter is
	// incremented and before EOI, exactly where the scheduler's
	// preemption decision needs to run.
	onTick func()

	// mocked by tests; wired to cpu.Outb and cpu.Halt during bring-up.
	outbFn = cpu.Outb
	haltFn = cpu.Halt
)

// SetHooks overrides the port-I/O and halt primitives used by Init and
// SleepMs. Tests substitute fakes; production leaves the cpu-backed
// defaults in place.
func SetHooks(outb func(uint16, uint8), halt func()) {
	outbFn = outb
	haltFn = halt
}

// SetOnTick registers the callback invoked by Tick on every timer
// interrupt. The scheduler wires its preemption entry point here; the
// callback must be short and must not allocate, since it runs with
// interrupts effectively serialized inside the ISR.
func SetOnTick(fn func()) {
	onTick = fn
}

// Init programs PIT channel 0 for the given frequency in Hz (0 defaults to
// 1000) and resets the tick counter. It must run after the IDT/PIC are
// installed but before IRQ0 is unmasked.
func Init(freqHz uint32) {
	if freqHz == 0 {
		freqHz = 1000
	}
	frequency = freqHz
	ticks = 0

	divisor := uint16(inputFrequency / frequency)
	outbFn(commandPort, commandByte)
	outbFn(channel0Data, uint8(divisor&0xFF))
	outbFn(channel0Data, uint8(divisor>>8))
}

// Frequency returns the currently configured tick frequency in Hz.
func Frequency() uint32 {
	return frequency
}

// Ticks returns the current value of the monotonic tick counter.
func Ticks() uint64 {
	return ticks
}

// Tick is invoked by the IRQ0 handler on every timer interrupt. It
// increments the tick counter and, if registered, calls the scheduler's
// OnTick callback. It runs in interrupt context and must not allocate.
//
//go:noalloc
func Tick() {
	ticks++
	if onTick != nil {
		onTick()
	}
}

// SleepMs busy-halts (hlt in a loop) until at least ms milliseconds of
// ticks have elapsed. Each hlt returns as soon as any interrupt fires, so
// the loop re-checks the deadline rather than assuming one hlt equals one
// tick.
func SleepMs(ms uint64) {
	target := ticks + msToTicks(ms)
	for ticks < target {
		haltFn()
	}
}

// msToTicks converts a millisecond duration into a tick count at the
// currently configured frequency, rounding up so a caller asking for at
// least ms milliseconds never wakes early.
func msToTicks(ms uint64) uint64 {
	return (ms*uint64(frequency) + 999) / 1000
}
