// Package device defines the common driver interface and the registry used
// by the boot sequence to probe for hardware in priority order.
package device

import "novaos/kernel"

// Driver is an interface implemented by all drivers.
type Driver interface {
	// DriverName returns the name of the driver.
	DriverName() string

	// DriverVersion returns the driver version.
	DriverVersion() (major uint16, minor uint16, patch uint16)

	// DriverInit initializes the device driver.
	DriverInit() *kernel.Error
}

// DetectOrder controls the order in which registered drivers are probed.
// Lower values run first.
type DetectOrder uint8

const (
	// DetectOrderEarly is for drivers (e.g. the serial console) that must
	// be available before anything else, including ACPI, is probed.
	DetectOrderEarly DetectOrder = iota

	// DetectOrderBeforeACPI is for drivers that need to run ahead of ACPI
	// table parsing but after the earliest bring-up drivers.
	DetectOrderBeforeACPI

	// DetectOrderACPI is reserved for the ACPI driver itself.
	DetectOrderACPI

	// DetectOrderLast is for drivers that should only be probed once
	// every other subsystem has had a chance to claim a device.
	DetectOrderLast
)

// DriverInfo describes a probeable driver: its detection priority and the
// probe function that attempts to locate and construct it.
type DriverInfo struct {
	// Order controls when, relative to other registered drivers, Probe
	// is invoked.
	Order DetectOrder

	// Probe attempts to detect and construct the driver. It returns nil
	// if the corresponding hardware is not present.
	Probe func() Driver
}

// DriverInfoList implements sort.Interface, ordering entries by Order.
type DriverInfoList []*DriverInfo

func (l DriverInfoList) Len() int           { return len(l) }
func (l DriverInfoList) Less(i, j int) bool { return l[i].Order < l[j].Order }
func (l DriverInfoList) Swap(i, j int)      { l[i], l[j] = l[j], l[i] }

// registeredDrivers accumulates every DriverInfo registered via
// RegisterDriver, in registration order (sorted by Order at probe time).
var registeredDrivers DriverInfoList

// RegisterDriver adds a driver to the set probed by the boot sequence's
// device-detection phase. Drivers typically call this from an init func.
func RegisterDriver(info *DriverInfo) {
	registeredDrivers = append(registeredDrivers, info)
}

// DriverList returns the list of currently registered drivers.
func DriverList() DriverInfoList {
	return registeredDrivers
}
