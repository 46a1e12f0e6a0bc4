package vmm

import (
	"unsafe"

	"novaos/kernel/mem"
)

var (
	// ptePtrFn returns a pointer to the page-table entry at the given HHDM
	// virtual address. Tests override this to run the walk against a plain
	// Go byte slice instead of real page-table memory.
	ptePtrFn = func(entryAddr uintptr) unsafe.Pointer {
		return unsafe.Pointer(entryAddr)
	}

	// rootTableFn returns the HHDM virtual address of the root PML4 table.
	// Tests override this the same way ptePtrFn is overridden.
	rootTableFn = func() uintptr {
		return phys2virt(rootPML4.Address())
	}
)

// pageTableWalker is called once per paging level while walking the tables
// that back a virtual address. Returning false aborts the remainder of the
// walk.
type pageTableWalker func(pteLevel uint8, pte *pageTableEntry) bool

// walk descends the 4-level page-table hierarchy for virtAddr, calling
// walkFn with the entry at each level. Every table is addressed through its
// HHDM virtual alias rather than through a recursive self-mapping, so a
// table that was allocated moments ago within the same walk is immediately
// readable without any extra mapping step.
func walk(virtAddr uintptr, walkFn pageTableWalker) {
	tableAddr := rootTableFn()

	for level := uint8(0); level < pageLevels; level++ {
		shift := pageLevelShifts[level]
		index := (virtAddr >> shift) & ((1 << pageLevelBits[level]) - 1)
		entryAddr := tableAddr + (index << mem.PointerShift)

		pte := (*pageTableEntry)(ptePtrFn(entryAddr))
		if ok := walkFn(level, pte); !ok {
			return
		}

		if level == pageLevels-1 {
			return
		}

		tableAddr = phys2virt(pte.Frame().Address())
	}
}
