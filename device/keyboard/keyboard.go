// Package keyboard exposes the PS/2 keyboard's raw port-0x60/0x64 scancode
// stream behind a narrow interface. Scancode-to-key mapping tables live
// outside this kernel; the package exists so the boot-time device probe
// has something real to register.
package keyboard

import (
	"novaos/device"
	"novaos/kernel"
	"novaos/kernel/cpu"
)

// Data and status/command ports for the 8042 PS/2 controller.
const (
	dataPort   = 0x60
	statusPort = 0x64
)

const outputBufferFull = 1 << 0

// Device abstracts reading raw scancodes off the controller; decoding them
// into key events is scancode-table logic this tree deliberately does not
// implement.
type Device interface {
	// ReadScancode returns the next pending scancode and true, or
	// (0, false) if the output buffer is empty.
	ReadScancode() (uint8, bool)
}

var (
	inbFn = cpu.Inb
)

// SetHooks overrides the port-I/O primitives ReadScancode uses. Production
// leaves the cpu-backed defaults; tests substitute a fake controller.
func SetHooks(inb func(uint16) uint8) {
	inbFn = inb
}

type controller struct{}

// New returns a Device backed by the real 8042 controller ports.
func New() Device {
	return controller{}
}

// ReadScancode implements Device.
func (controller) ReadScancode() (uint8, bool) {
	if inbFn(statusPort)&outputBufferFull == 0 {
		return 0, false
	}
	return inbFn(dataPort), true
}

// ErrNotPresent is reserved for a future probe that distinguishes an
// absent controller from an empty buffer; unused in v1.
var ErrNotPresent = &kernel.Error{Module: "keyboard", Message: "controller not present"}

// Driver implements device.Driver so the 8042 controller can register
// itself with the boot-time probe sequence. Like the debug serial port,
// the controller is always present under QEMU/Bochs, so Probe never
// reports it absent.
type Driver struct {
	dev Device
}

// DriverName implements device.Driver.
func (*Driver) DriverName() string { return "keyboard" }

// DriverVersion implements device.Driver.
func (*Driver) DriverVersion() (uint16, uint16, uint16) { return 1, 0, 0 }

// DriverInit implements device.Driver. The 8042 controller requires no
// handshake to start polling, so init never fails.
func (d *Driver) DriverInit() *kernel.Error {
	return nil
}

// Device returns the keyboard.Device this driver probed.
func (d *Driver) Device() Device {
	return d.dev
}

func probe() device.Driver {
	return &Driver{dev: New()}
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderLast,
		Probe: probe,
	})
}
