// Package vmm implements the 4-level x86-64 virtual memory manager. Tables
// are never reached through their own virtual addresses (no recursive
// self-mapping slot): every table is addressed through the higher-half
// direct map (HHDM) offset supplied by the loader, so a newly allocated
// table is reachable the instant its physical frame is known, without
// first installing a mapping for it.
package vmm

import (
	"novaos/kernel"
	"novaos/kernel/mem/pmm"
)

// FrameAllocatorFn is a function that can allocate physical frames; Map uses
// it to materialize missing intermediate page-table levels.
type FrameAllocatorFn func() (pmm.Frame, *kernel.Error)

var (
	// frameAllocator is registered via SetFrameAllocator before Init runs.
	frameAllocator FrameAllocatorFn

	// rootPML4 is the frame backing the currently active PML4 table.
	rootPML4 pmm.Frame

	// the following are mocked by tests and automatically inlined by the
	// compiler when compiling the kernel.
	allocFrameFn = func() (pmm.Frame, *kernel.Error) { return frameAllocator() }
)

// SetFrameAllocator registers the physical frame allocator that Map uses
// when it needs to materialize a new page-table level.
func SetFrameAllocator(allocFn FrameAllocatorFn) {
	frameAllocator = allocFn
}

// Init records the offset of the higher-half direct map and the frame
// backing the page tables the loader left active (captured from CR3). It
// must run after pmm.Init and before any call to Map, Unmap or MapMMIO.
func Init(hhdmOffset uintptr, pml4 pmm.Frame) {
	SetHHDMOffset(hhdmOffset)
	rootPML4 = pml4
}
