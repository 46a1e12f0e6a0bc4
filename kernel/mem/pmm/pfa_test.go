package pmm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"novaos/kernel/hal/boot"
	"novaos/kernel/mem"
	"novaos/kernel/mem/pmm"
)

func memmap(entries ...boot.MemoryMapEntry) []boot.MemoryMapEntry {
	return entries
}

func TestInitSelectsLargestUsableRegion(t *testing.T) {
	err := pmm.Init(memmap(
		boot.MemoryMapEntry{Base: 0, Length: 0x9000, Kind: boot.Usable},
		boot.MemoryMapEntry{Base: 0x100000, Length: 16 * uint64(mem.Mb), Kind: boot.Usable},
		boot.MemoryMapEntry{Base: 0x9000, Length: 0xf7000, Kind: boot.Reserved},
	))
	require.Nil(t, err)

	expectedFrames := uint64(16*uint64(mem.Mb)) >> mem.PageShift
	require.Equal(t, expectedFrames, pmm.TotalFrames())
	require.Equal(t, uint64(0), pmm.ReservedFrames())
	require.Equal(t, expectedFrames, pmm.FreeFrames())
}

func TestInitNoUsableRegionFails(t *testing.T) {
	err := pmm.Init(memmap(boot.MemoryMapEntry{Base: 0, Length: 0x1000, Kind: boot.Reserved}))
	require.NotNil(t, err)
}

func TestAllocFreeRoundTrip(t *testing.T) {
	require.Nil(t, pmm.Init(memmap(boot.MemoryMapEntry{Base: 0x100000, Length: uint64(mem.Mb), Kind: boot.Usable})))

	f, err := pmm.AllocPage()
	require.Nil(t, err)
	require.NotEqual(t, pmm.InvalidFrame, f)
	require.Equal(t, uint64(1), pmm.UsedFrames())

	pmm.FreePage(f)
	require.Equal(t, uint64(0), pmm.UsedFrames())
}

func TestAllocPagesContiguousRun(t *testing.T) {
	require.Nil(t, pmm.Init(memmap(boot.MemoryMapEntry{Base: 0x100000, Length: uint64(mem.Mb), Kind: boot.Usable})))

	first, err := pmm.AllocPages(4)
	require.Nil(t, err)
	require.Equal(t, uint64(4), pmm.UsedFrames())

	// First-fit over a fresh bitmap: the next allocation starts right after
	// the run, which is only possible if the run really covered 4 frames.
	second, err := pmm.AllocPages(2)
	require.Nil(t, err)
	require.Equal(t, first+4, second)

	pmm.FreePages(first, 4)
	pmm.FreePages(second, 2)
	require.Equal(t, uint64(0), pmm.UsedFrames())
}

func TestAllocExhaustionReturnsOutOfMemory(t *testing.T) {
	require.Nil(t, pmm.Init(memmap(boot.MemoryMapEntry{Base: 0x100000, Length: 2 * uint64(mem.PageSize), Kind: boot.Usable})))

	_, err := pmm.AllocPages(1)
	require.Nil(t, err)
	_, err = pmm.AllocPages(1)
	require.Nil(t, err)

	_, err = pmm.AllocPages(1)
	require.Equal(t, pmm.ErrOutOfMemory, err)
}

func TestFreeIsIdempotent(t *testing.T) {
	require.Nil(t, pmm.Init(memmap(boot.MemoryMapEntry{Base: 0x100000, Length: uint64(mem.Mb), Kind: boot.Usable})))

	f, err := pmm.AllocPage()
	require.Nil(t, err)

	pmm.FreePage(f)
	require.Equal(t, uint64(0), pmm.UsedFrames())

	// Freeing an already-free frame must not fault or go negative.
	pmm.FreePage(f)
	require.Equal(t, uint64(0), pmm.UsedFrames())
}

func TestFreeUnownedFrameIsNoOp(t *testing.T) {
	require.Nil(t, pmm.Init(memmap(boot.MemoryMapEntry{Base: 0x100000, Length: uint64(mem.Mb), Kind: boot.Usable})))

	pmm.FreePage(pmm.FrameFromAddress(0xdeadb000))
	require.Equal(t, uint64(0), pmm.UsedFrames())
}

func TestReserveRegionDirectBitSet(t *testing.T) {
	require.Nil(t, pmm.Init(memmap(boot.MemoryMapEntry{Base: 0x100000, Length: uint64(mem.Mb), Kind: boot.Usable})))

	before := pmm.FreeFrames()
	pmm.ReserveRegion(0x100000, uintptr(8*uint64(mem.PageSize)))
	require.Equal(t, before-8, pmm.FreeFrames())
	require.Equal(t, uint64(8), pmm.ReservedFrames())

	// Reserving an already-reserved region must not double count.
	pmm.ReserveRegion(0x100000, uintptr(4*uint64(mem.PageSize)))
	require.Equal(t, uint64(8), pmm.ReservedFrames())
}

func TestNonUsableEntryOverlappingRegionIsPreReserved(t *testing.T) {
	require.Nil(t, pmm.Init(memmap(
		boot.MemoryMapEntry{Base: 0x100000, Length: uint64(mem.Mb), Kind: boot.Usable},
		boot.MemoryMapEntry{Base: 0x100000, Length: uint64(mem.PageSize) * 4, Kind: boot.ACPIReclaimable},
	)))

	require.Equal(t, uint64(4), pmm.ReservedFrames())
}
