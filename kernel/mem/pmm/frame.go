// Package pmm implements the physical frame allocator: a bitmap tracking
// 4 KiB frame reservations across the single largest usable region reported
// by the loader.
package pmm

import "novaos/kernel/mem"

// Frame identifies a physical page frame by its frame number (physical
// address >> PageShift), so arithmetic that must stay frame-sized never
// carries raw byte addresses.
type Frame uintptr

// InvalidFrame is returned by allocation paths that fail; it is never a
// valid frame number returned by Alloc.
const InvalidFrame Frame = ^Frame(0)

// Address returns the physical base address of the frame.
func (f Frame) Address() uintptr {
	return uintptr(f) << mem.PageShift
}

// FrameFromAddress returns the frame containing the given physical address.
func FrameFromAddress(addr uintptr) Frame {
	return Frame(addr >> mem.PageShift)
}
