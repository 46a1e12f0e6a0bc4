// Package kernel contains types and helpers shared by every other package in
// the tree. It exists so that low-level packages (mem, pmm, vmm, irq) do not
// need to import each other just to report an error.
package kernel

import (
	"reflect"
	"unsafe"
)

// Error describes a kernel error. All kernel errors are defined as package
// level variables that are pointers to Error. This is required because the
// Go allocator may not be available yet (e.g. while bootstrapping the frame
// allocator) so errors.New cannot be used.
type Error struct {
	// Module is the package where the error originated.
	Module string

	// Message describes what went wrong.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Module + ": " + e.Message
}

// Memset sets size bytes at the given address to value. The implementation
// avoids a byte-at-a-time loop by doubling the filled region on each pass,
// which matters since callers (frame zeroing, bitmap clears) run with
// interrupts disabled.
func Memset(addr uintptr, value byte, size uintptr) {
	if size == 0 {
		return
	}

	target := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(size),
		Cap:  int(size),
		Data: addr,
	}))

	target[0] = value
	for index := uintptr(1); index < size; index *= 2 {
		copy(target[index:], target[:index])
	}
}

// Memcopy copies size bytes from src to dst. Both addresses are raw
// (potentially unmapped by the Go type system) memory addresses, not slices,
// since this is used to copy page contents and MMIO-adjacent buffers.
func Memcopy(src, dst uintptr, size uintptr) {
	if size == 0 {
		return
	}

	srcSlice := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{Len: int(size), Cap: int(size), Data: src}))
	dstSlice := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{Len: int(size), Cap: int(size), Data: dst}))
	copy(dstSlice, srcSlice)
}
