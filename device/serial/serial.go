// Package serial drives the debug I/O port (0xE9), a QEMU/Bochs
// convention that echoes every byte written to it straight to the host's
// stderr. It is the default early sink for kernel/kfmt's allocation-free
// Printf: a single byte-oriented io.Writer with no framing, baud rate, or
// flow control to negotiate.
package serial

import (
	"novaos/device"
	"novaos/kernel"
	"novaos/kernel/cpu"
)

// debugPort is the well-known QEMU/Bochs debug console port.
const debugPort = 0xE9

var outbFn = cpu.Outb

// SetHooks overrides the port-I/O primitive Write uses. Production leaves
// the cpu-backed default in place; tests substitute a fake port.
func SetHooks(outb func(uint16, uint8)) {
	outbFn = outb
}

// Console is an io.Writer over the debug port, suitable for
// kfmt.SetOutputSink.
type Console struct{}

// Write sends every byte of p to the debug port, in order. It never
// fails: the port has no backpressure signal to report.
func (Console) Write(p []byte) (int, error) {
	for _, b := range p {
		outbFn(debugPort, b)
	}
	return len(p), nil
}

// Driver implements device.Driver so the debug console can register
// itself with the boot-time probe sequence at DetectOrderEarly, ahead of
// anything that might want to log.
type Driver struct {
	console Console
}

// DriverName implements device.Driver.
func (*Driver) DriverName() string { return "serial" }

// DriverVersion implements device.Driver.
func (*Driver) DriverVersion() (uint16, uint16, uint16) { return 1, 0, 0 }

// DriverInit implements device.Driver. The debug port is always present
// under QEMU/Bochs and requires no handshake, so init never fails.
func (d *Driver) DriverInit() *kernel.Error {
	return nil
}

// Console returns the io.Writer to hand to kfmt.SetOutputSink.
func (d *Driver) Console() Console {
	return d.console
}

// Write implements io.Writer by forwarding to the underlying debug-port
// console, so the boot sequence can attach a freshly probed serial driver
// directly as the kfmt output sink.
func (d *Driver) Write(p []byte) (int, error) {
	return d.console.Write(p)
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderEarly,
		Probe: func() device.Driver { return &Driver{} },
	})
}
