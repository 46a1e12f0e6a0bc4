package vmm

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"novaos/kernel"
	"novaos/kernel/mem/pmm"
)

// tablePool hands out fresh zeroed page-aligned table frames to the mocked
// allocator, supplying Map with backing storage for the intermediate
// tables it materializes.
type tablePool struct {
	limit int
	next  int
}

func (p *tablePool) alloc() (pmm.Frame, *kernel.Error) {
	if p.next >= p.limit {
		return pmm.InvalidFrame, &kernel.Error{Module: "vmm", Message: "pool exhausted"}
	}
	p.next++
	return pmm.FrameFromAddress(uintptr(unsafe.Pointer(newFakeTable()))), nil
}

func setupMapTest(t *testing.T) (*fakeTable, func()) {
	t.Helper()
	SetHHDMOffset(0)

	pml4 := newFakeTable()
	origRoot := rootTableFn
	rootTableFn = func() uintptr { return uintptr(unsafe.Pointer(pml4)) }

	pool := &tablePool{limit: 32}
	origAlloc := allocFrameFn
	allocFrameFn = pool.alloc

	origFlush := flushTLBEntryFn
	var flushed []uintptr
	flushTLBEntryFn = func(v uintptr) { flushed = append(flushed, v) }

	return pml4, func() {
		rootTableFn = origRoot
		allocFrameFn = origAlloc
		flushTLBEntryFn = origFlush
	}
}

func TestMapCreatesIntermediateTablesAndLeaf(t *testing.T) {
	_, cleanup := setupMapTest(t)
	defer cleanup()

	virt := (uintptr(1) << 39) | (uintptr(2) << 30) | (uintptr(3) << 21) | (uintptr(4) << 12)
	leafFrame := pmm.FrameFromAddress(0x300000)

	err := Map(Page(virt), leafFrame, FlagRW)
	require.Nil(t, err)

	got := GetPhysical(virt)
	require.Equal(t, leafFrame.Address(), got)
}

func TestMapLeafFlagsAreMaskedToAllowedSet(t *testing.T) {
	_, cleanup := setupMapTest(t)
	defer cleanup()

	virt := uintptr(0x1000)
	err := Map(Page(virt), pmm.FrameFromAddress(0x400000), FlagRW|FlagUser|FlagAccessed)
	require.Nil(t, err)

	var leaf *pageTableEntry
	walk(virt, func(level uint8, pte *pageTableEntry) bool {
		if level == pageLevels-1 {
			leaf = pte
		}
		return true
	})

	require.True(t, leaf.HasFlags(FlagPresent|FlagRW|FlagUser))
	require.False(t, leaf.HasFlags(FlagAccessed))
}

func TestUnmapClearsPresentBit(t *testing.T) {
	_, cleanup := setupMapTest(t)
	defer cleanup()

	virt := uintptr(0x2000)
	require.Nil(t, Map(Page(virt), pmm.FrameFromAddress(0x500000), FlagRW))
	require.NotEqual(t, uintptr(0), GetPhysical(virt))

	require.Nil(t, Unmap(Page(virt)))
	require.Equal(t, uintptr(0), GetPhysical(virt))
}

func TestGetPhysicalReturnsZeroForUnmapped(t *testing.T) {
	_, cleanup := setupMapTest(t)
	defer cleanup()

	require.Equal(t, uintptr(0), GetPhysical(0x7fff0000))
}

func TestMapRegionMapsConsecutiveFrames(t *testing.T) {
	_, cleanup := setupMapTest(t)
	defer cleanup()

	startVirt := uintptr(0x10000)
	startFrame := pmm.FrameFromAddress(0x600000)

	require.Nil(t, MapRegion(Page(startVirt), startFrame, 3, FlagRW))

	for i := uint64(0); i < 3; i++ {
		got := GetPhysical(startVirt + uintptr(i)<<12)
		require.Equal(t, startFrame.Address()+uintptr(i)<<12, got)
	}
}

func TestMapLastWriteWins(t *testing.T) {
	_, cleanup := setupMapTest(t)
	defer cleanup()

	virt := uintptr(0x3000)
	require.Nil(t, Map(Page(virt), pmm.FrameFromAddress(0x700000), FlagRW))
	require.Nil(t, Map(Page(virt), pmm.FrameFromAddress(0x800000), FlagRW))

	require.Equal(t, uintptr(0x800000), GetPhysical(virt))
}
