// Package ata exposes ATA disk access behind a narrow interface without
// carrying a PIO implementation: the rest of the tree (and its tests) can
// depend on a stable Device type while sector I/O stays a stub, and the
// only real hardware interaction is the channel-presence probe below.
package ata

import (
	"novaos/device"
	"novaos/kernel"
	"novaos/kernel/cpu"
)

// Primary ATA channel I/O ports.
const (
	ioBase    = 0x1F0
	statusOff = 7
)

var inbFn = cpu.Inb

// SetHooks overrides the port-I/O primitive Probe uses to check for a
// floating bus. Production leaves the cpu-backed default; tests
// substitute a fake port.
func SetHooks(inb func(uint16) uint8) {
	inbFn = inb
}

// ErrNotImplemented is returned by every Device method until a PIO driver
// is wired in.
var ErrNotImplemented = &kernel.Error{Module: "ata", Message: "not implemented"}

// Device abstracts a single ATA drive's sector-addressed I/O.
type Device interface {
	// ReadSector reads one 512-byte sector into buf.
	ReadSector(lba uint64, buf []byte) *kernel.Error

	// WriteSector writes one 512-byte sector from buf.
	WriteSector(lba uint64, buf []byte) *kernel.Error
}

// stubDevice is the only Device implementation in this tree: it reports
// every operation as not implemented, so callers that probe for a disk and
// get one back can still be exercised in tests without real hardware.
type stubDevice struct{}

// NewStub returns a Device that fails every operation with
// ErrNotImplemented.
func NewStub() Device {
	return stubDevice{}
}

func (stubDevice) ReadSector(lba uint64, buf []byte) *kernel.Error  { return ErrNotImplemented }
func (stubDevice) WriteSector(lba uint64, buf []byte) *kernel.Error { return ErrNotImplemented }

// Driver implements device.Driver so the primary ATA channel can register
// itself with the boot-time probe sequence. It wraps stubDevice: the
// channel's presence is real (checked below), but every Device method it
// exposes fails with ErrNotImplemented until a real PIO driver replaces
// the stub.
type Driver struct {
	dev Device
}

// DriverName implements device.Driver.
func (*Driver) DriverName() string { return "ata" }

// DriverVersion implements device.Driver.
func (*Driver) DriverVersion() (uint16, uint16, uint16) { return 1, 0, 0 }

// DriverInit implements device.Driver. The channel was already confirmed
// present by Probe, so init never fails.
func (d *Driver) DriverInit() *kernel.Error {
	return nil
}

// Device returns the ata.Device this driver probed.
func (d *Driver) Device() Device {
	return d.dev
}

// probeForPrimaryChannel reads the primary channel's status register: a
// floating (unconnected) bus reads back all ones, the standard way to
// detect an absent ATA channel without issuing any PIO command.
func probeForPrimaryChannel() device.Driver {
	if inbFn(ioBase+statusOff) == 0xFF {
		return nil
	}
	return &Driver{dev: NewStub()}
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderLast,
		Probe: probeForPrimaryChannel,
	})
}
