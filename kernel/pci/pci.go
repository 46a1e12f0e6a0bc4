// Package pci implements the legacy x86 configuration-space bus scan: for
// every (bus, device, function) triple, read the vendor ID at offset 0
// through the 0xCF8/0xCFC address/data port pair, skip absent slots, and
// otherwise read the device/class/subclass fields and the BARs a driver's
// probe routine needs to find its device.
package pci

import "novaos/kernel/cpu"

// Legacy PCI configuration-space I/O ports.
const (
	configAddressPort = 0xCF8
	configDataPort    = 0xCFC
)

// Configuration-space dword offsets this package reads.
const (
	offsetVendorDevice = 0x00 // vendor ID (lo16), device ID (hi16)
	offsetClass        = 0x08 // revision (b0), prog IF (b1), subclass (b2), class (b3)
	offsetHeaderType   = 0x0C // cache line (b0), latency (b1), header type (b2), BIST (b3)
	offsetBAR0         = 0x10
)

// VendorIDNone is the value read back from an empty device slot.
const VendorIDNone = 0xFFFF

// headerTypeMultiFunctionBit, set in the header-type byte, marks a device
// that implements more than one function; when it is clear, scanning stops
// at function 0 for that device.
const headerTypeMultiFunctionBit = 0x80

// maxBus/maxDevice/maxFunction bound the brute-force scan to the legacy
// configuration mechanism's full address space.
const (
	maxBus      = 256
	maxDevice   = 32
	maxFunction = 8
)

var (
	// mocked by tests so the scan can run without real I/O ports.
	outlFn = cpu.Outl
	inlFn  = cpu.Inl
)

// SetHooks overrides the port-I/O primitives the scan uses. Production
// leaves the cpu-backed defaults in place; tests substitute a fake
// configuration space.
func SetHooks(outl func(uint16, uint32), inl func(uint16) uint32) {
	outlFn = outl
	inlFn = inl
}

// address packs a (bus, device, function, offset) tuple into the 32-bit
// value CONFIG_ADDRESS expects: enable bit, then bus/device/function/
// register fields, with the low two offset bits masked off since config
// space is only dword-addressable.
func address(bus, device, function uint8, offset uint8) uint32 {
	return 1<<31 |
		uint32(bus)<<16 |
		uint32(device&0x1F)<<11 |
		uint32(function&0x7)<<8 |
		uint32(offset&0xFC)
}

// readDword reads the 32-bit configuration-space dword at offset for the
// given (bus, device, function).
func readDword(bus, device, function, offset uint8) uint32 {
	outlFn(configAddressPort, address(bus, device, function, offset))
	return inlFn(configDataPort)
}

// writeDword writes a 32-bit configuration-space dword.
func writeDword(bus, device, function, offset uint8, value uint32) {
	outlFn(configAddressPort, address(bus, device, function, offset))
	outlFn(configDataPort, value)
}

// Device describes a discovered PCI function.
type Device struct {
	Bus, Device, Function uint8

	VendorID, DeviceID      uint16
	Class, Subclass, ProgIF uint8
	HeaderType              uint8

	// BAR holds the six raw base-address-register values; entries for
	// BARs a given header type doesn't carry are left zero.
	BAR [6]uint32
}

// VendorID16 reads just the vendor ID at offset 0, the cheap probe that
// decides whether a slot is populated before anything else is read.
func VendorID16(bus, device, function uint8) uint16 {
	return uint16(readDword(bus, device, function, offsetVendorDevice))
}

// readDevice populates a Device from configuration space, assuming the
// caller has already confirmed the vendor ID is present.
func readDevice(bus, device, function uint8) Device {
	vendorDevice := readDword(bus, device, function, offsetVendorDevice)
	classReg := readDword(bus, device, function, offsetClass)
	headerReg := readDword(bus, device, function, offsetHeaderType)

	d := Device{
		Bus: bus, Device: device, Function: function,
		VendorID:   uint16(vendorDevice),
		DeviceID:   uint16(vendorDevice >> 16),
		ProgIF:     uint8(classReg >> 8),
		Subclass:   uint8(classReg >> 16),
		Class:      uint8(classReg >> 24),
		HeaderType: uint8(headerReg >> 16),
	}

	for i := range d.BAR {
		d.BAR[i] = readDword(bus, device, function, uint8(offsetBAR0+4*i))
	}

	return d
}

// EnableMemoryAndBusMaster sets the memory-space and bus-master enable
// bits in the PCI command register; without them the device's BAR-mapped
// registers are unreadable and its DMA engine cannot touch the rings.
func EnableMemoryAndBusMaster(d Device) {
	const commandOffset = 0x04
	const memorySpaceEnable = 1 << 1
	const busMasterEnable = 1 << 2

	cmd := readDword(d.Bus, d.Device, d.Function, commandOffset)
	cmd |= memorySpaceEnable | busMasterEnable
	writeDword(d.Bus, d.Device, d.Function, commandOffset, cmd)
}

// Find scans every (bus, device, function) triple and returns the first
// device whose vendor/device ID matches, or false if none is present.
// Function enumeration stops after function 0 unless the header-type
// multi-function bit is set.
func Find(vendorID, deviceID uint16) (Device, bool) {
	var found Device
	ok := false
	Scan(func(d Device) bool {
		if d.VendorID == vendorID && d.DeviceID == deviceID {
			found = d
			ok = true
			return false
		}
		return true
	})
	return found, ok
}

// Scan enumerates every populated (bus, device, function) slot, calling fn
// for each. fn returning false stops the scan early.
func Scan(fn func(Device) bool) {
	for bus := 0; bus < maxBus; bus++ {
		for device := 0; device < maxDevice; device++ {
			if !scanDevice(uint8(bus), uint8(device), fn) {
				return
			}
		}
	}
}

// scanDevice probes function 0 of a device slot and, if present and
// multi-function, the remaining functions. Returns false if fn asked to
// stop.
func scanDevice(bus, device uint8, fn func(Device) bool) bool {
	if VendorID16(bus, device, 0) == VendorIDNone {
		return true
	}

	d0 := readDevice(bus, device, 0)
	if !fn(d0) {
		return false
	}

	if d0.HeaderType&headerTypeMultiFunctionBit == 0 {
		return true
	}

	for function := uint8(1); function < maxFunction; function++ {
		if VendorID16(bus, device, function) == VendorIDNone {
			continue
		}
		if !fn(readDevice(bus, device, function)) {
			return false
		}
	}

	return true
}
