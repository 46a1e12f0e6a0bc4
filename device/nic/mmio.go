package nic

import (
	"reflect"
	"unsafe"
)

// volatilePtr returns an unsafe.Pointer to the given virtual address. Every
// register access goes through readReg/writeReg, which dereference the
// result as *uint32 at the point of use rather than caching the pointer, so
// the compiler cannot hoist or coalesce the load/store.
func volatilePtr(addr uintptr) unsafe.Pointer {
	return unsafe.Pointer(addr)
}

// rawSlice builds a []byte view of n bytes starting at a virtual address.
// Used to turn a DMA buffer's HHDM alias into a slice the driver can copy
// into and out of with the standard copy() builtin.
func rawSlice(addr uintptr, n int) []byte {
	return *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Data: addr,
		Len:  n,
		Cap:  n,
	}))
}

// descSliceRX builds a []rxDescriptor view of n descriptors starting at a
// virtual address, i.e. the HHDM alias of a ring's backing frame.
func descSliceRX(addr uintptr, n int) []rxDescriptor {
	return *(*[]rxDescriptor)(unsafe.Pointer(&reflect.SliceHeader{
		Data: addr,
		Len:  n,
		Cap:  n,
	}))
}

// descSliceTX builds a []txDescriptor view of n descriptors starting at a
// virtual address.
func descSliceTX(addr uintptr, n int) []txDescriptor {
	return *(*[]txDescriptor)(unsafe.Pointer(&reflect.SliceHeader{
		Data: addr,
		Len:  n,
		Cap:  n,
	}))
}
