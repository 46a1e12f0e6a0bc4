package vmm

import (
	"novaos/kernel"
	"novaos/kernel/cpu"
	"novaos/kernel/mem"
	"novaos/kernel/mem/pmm"
)

var (
	// flushTLBEntryFn is mocked by tests since the real invlpg instruction
	// would fault when not running in ring 0.
	flushTLBEntryFn = cpu.FlushTLBEntry

	errNoHugePageSupport = &kernel.Error{Module: "vmm", Message: "huge pages are not supported"}

	// ErrInvalidMapping is returned when a virtual address has no present
	// mapping.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}
)

// SetFlushTLBEntryFn overrides the function used to invalidate a single TLB
// entry after a mapping changes. Production code leaves the default in
// place; tests substitute a no-op.
func SetFlushTLBEntryFn(fn func(uintptr)) {
	flushTLBEntryFn = fn
}

// Map establishes a mapping from page to frame in the currently active
// address space, allocating and zeroing any missing intermediate page-table
// levels along the way. Intermediate entries always get PRESENT|WRITABLE;
// the leaf entry gets exactly phys|PRESENT|(flags & {WRITABLE,USER,PCD,PWT}).
func Map(page Page, frame pmm.Frame, flags PageTableEntryFlag) *kernel.Error {
	var err *kernel.Error

	walk(page.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		if pteLevel == pageLevels-1 {
			*pte = 0
			pte.SetFrame(frame)
			pte.SetFlags(PageTableEntryFlag(uintptr(flags)&uintptr(FlagRW|FlagUser|FlagPCD|FlagPWT)) | FlagPresent)
			flushTLBEntryFn(page.Address())
			return true
		}

		if pte.HasFlags(FlagHugePage) {
			err = errNoHugePageSupport
			return false
		}

		if !pte.HasFlags(FlagPresent) {
			var newTableFrame pmm.Frame
			if newTableFrame, err = allocFrameFn(); err != nil {
				return false
			}

			kernel.Memset(phys2virt(newTableFrame.Address()), 0, uintptr(mem.PageSize))

			*pte = 0
			pte.SetFrame(newTableFrame)
			pte.SetFlags(FlagPresent | FlagRW | (flags & FlagUser))
		}

		return true
	})

	return err
}

// MapRegion maps pageCount consecutive pages starting at startPage to
// pageCount consecutive frames starting at startFrame.
func MapRegion(startPage Page, startFrame pmm.Frame, pageCount uint64, flags PageTableEntryFlag) *kernel.Error {
	page, frame := startPage, startFrame
	for i := uint64(0); i < pageCount; i, page, frame = i+1, page+1, frame+1 {
		if err := Map(page, frame, flags); err != nil {
			return err
		}
	}
	return nil
}

// Unmap clears the leaf entry for page and flushes its TLB entry.
// Intermediate tables are never reclaimed.
func Unmap(page Page) *kernel.Error {
	var err *kernel.Error

	walk(page.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		if pteLevel == pageLevels-1 {
			pte.ClearFlags(FlagPresent)
			flushTLBEntryFn(page.Address())
			return true
		}

		if !pte.HasFlags(FlagPresent) {
			err = ErrInvalidMapping
			return false
		}

		if pte.HasFlags(FlagHugePage) {
			err = errNoHugePageSupport
			return false
		}

		return true
	})

	return err
}

// GetPhysical re-walks the page tables for virtAddr and returns the
// physical address it maps to, or 0 if any level along the way is not
// present.
func GetPhysical(virtAddr uintptr) uintptr {
	var physAddr uintptr

	walk(virtAddr&^mem.PageOffsetMask, func(pteLevel uint8, pte *pageTableEntry) bool {
		if !pte.HasFlags(FlagPresent) {
			physAddr = 0
			return false
		}

		if pteLevel == pageLevels-1 {
			physAddr = pte.Frame().Address()
		}

		return true
	})

	if physAddr == 0 {
		return 0
	}

	return physAddr | (virtAddr & mem.PageOffsetMask)
}
