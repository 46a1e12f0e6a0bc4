package vmm

import (
	"novaos/kernel"
	"novaos/kernel/mem"
	"novaos/kernel/mem/pmm"
)

// mmioBase is the fixed virtual base for the MMIO bump allocator.
const mmioBase uintptr = 0xFFFFFFFFC0000000

var (
	mmioNext = mmioBase

	errMMIOExhausted = &kernel.Error{Module: "vmm", Message: "mmio virtual address window exhausted"}
)

// MapMMIO carves size bytes (rounded up to a page) out of a monotonically
// increasing bump allocator and maps them, one page at a time, to the
// consecutive physical range starting at phys, each page carrying
// PRESENT|WRITABLE|PCD|PWT so the CPU never caches device register reads or
// writes. Returns the virtual base of the new mapping.
func MapMMIO(phys uintptr, size mem.Size) (uintptr, *kernel.Error) {
	size = (size + (mem.PageSize - 1)) &^ (mem.PageSize - 1)
	if size == 0 {
		size = mem.PageSize
	}

	base := mmioNext
	if mmioNext+uintptr(size) < mmioNext {
		return 0, errMMIOExhausted
	}

	pageCount := uint64(size) >> mem.PageShift
	physBase := phys &^ mem.PageOffsetMask
	flags := FlagPresent | FlagRW | FlagPCD | FlagPWT

	page := PageFromAddress(base)
	frame := pmm.FrameFromAddress(physBase)
	for i := uint64(0); i < pageCount; i, page, frame = i+1, page+1, frame+1 {
		if err := Map(page, frame, flags); err != nil {
			return 0, err
		}
	}

	mmioNext += uintptr(size)
	return base + (phys - physBase), nil
}

// ResetMMIOBumpAllocator rewinds the bump pointer to its initial value. Only
// used by tests; production code calls MapMMIO monotonically for the life
// of the kernel.
func ResetMMIOBumpAllocator() {
	mmioNext = mmioBase
}
