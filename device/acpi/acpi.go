// Package acpi holds the narrow Controller interface the kernel's
// panic/halt path would call into on real hardware. No ACPI table parsing
// happens in this tree; anything that can actually power off or reset the
// machine lives behind this interface.
package acpi

import "novaos/kernel"

// Controller is the interface to whatever can power off or reset the
// machine.
type Controller interface {
	Shutdown() *kernel.Error
	Reboot() *kernel.Error
}

// ErrNotImplemented is returned by the stub controller for both operations
// until real ACPI (or a keyboard-controller reset fallback) is wired in.
var ErrNotImplemented = &kernel.Error{Module: "acpi", Message: "not implemented"}

type stubController struct{}

// NewStub returns a Controller that reports both operations as not
// implemented.
func NewStub() Controller {
	return stubController{}
}

func (stubController) Shutdown() *kernel.Error { return ErrNotImplemented }
func (stubController) Reboot() *kernel.Error   { return ErrNotImplemented }
