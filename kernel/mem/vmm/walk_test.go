package vmm

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"novaos/kernel/mem"
	"novaos/kernel/mem/pmm"
)

// fakeTable stands in for a page-table frame in these host-side tests: its
// address serves as both the "physical" and (with hhdmOffset 0) virtual
// address of the table, so the walk runs entirely on the host without real
// page-table memory.
type fakeTable [512]pageTableEntry

// fakeTablePins keeps the backing buffers of newFakeTable allocations live;
// the aligned *fakeTable views are derived through uintptr arithmetic, which
// the GC does not trace.
var fakeTablePins [][]byte

// newFakeTable allocates a page-aligned fakeTable. Alignment matters: the
// walk recovers each table's base address from a Frame, which drops the low
// 12 bits, so a table at an unaligned Go heap address would be unreachable.
func newFakeTable() *fakeTable {
	buf := make([]byte, unsafe.Sizeof(fakeTable{})+uintptr(mem.PageSize))
	fakeTablePins = append(fakeTablePins, buf)
	addr := (uintptr(unsafe.Pointer(&buf[0])) + mem.PageOffsetMask) &^ mem.PageOffsetMask
	return (*fakeTable)(unsafe.Pointer(addr))
}

func TestWalkDescendsFourLevels(t *testing.T) {
	SetHHDMOffset(0)

	pml4, pdp, pd, pt := newFakeTable(), newFakeTable(), newFakeTable(), newFakeTable()
	pml4[1].SetFrame(pmm.FrameFromAddress(uintptr(unsafe.Pointer(pdp))))
	pml4[1].SetFlags(FlagPresent | FlagRW)
	pdp[2].SetFrame(pmm.FrameFromAddress(uintptr(unsafe.Pointer(pd))))
	pdp[2].SetFlags(FlagPresent | FlagRW)
	pd[3].SetFrame(pmm.FrameFromAddress(uintptr(unsafe.Pointer(pt))))
	pd[3].SetFlags(FlagPresent | FlagRW)
	pt[4].SetFrame(pmm.FrameFromAddress(0xfeedf000))
	pt[4].SetFlags(FlagPresent | FlagRW)

	origRoot := rootTableFn
	defer func() { rootTableFn = origRoot }()
	rootTableFn = func() uintptr { return uintptr(unsafe.Pointer(pml4)) }

	targetAddr := (uintptr(1) << 39) | (uintptr(2) << 30) | (uintptr(3) << 21) | (uintptr(4) << 12) | 0x400

	var levels []uint8
	var lastFrame pmm.Frame
	walk(targetAddr, func(level uint8, pte *pageTableEntry) bool {
		levels = append(levels, level)
		lastFrame = pte.Frame()
		return true
	})

	require.Equal(t, []uint8{0, 1, 2, 3}, levels)
	require.Equal(t, pmm.FrameFromAddress(0xfeedf000), lastFrame)
}

func TestWalkAbortsWhenWalkFnReturnsFalse(t *testing.T) {
	SetHHDMOffset(0)

	pml4 := newFakeTable()
	origRoot := rootTableFn
	defer func() { rootTableFn = origRoot }()
	rootTableFn = func() uintptr { return uintptr(unsafe.Pointer(pml4)) }

	calls := 0
	walk(0, func(level uint8, pte *pageTableEntry) bool {
		calls++
		return false
	})

	require.Equal(t, 1, calls)
}
