package pmm

import (
	"novaos/kernel"
	"novaos/kernel/hal/boot"
	"novaos/kernel/mem"
)

// ErrOutOfMemory is returned when no run of free frames of the requested
// length can be found.
var ErrOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of memory"}

// maxManagedFrames bounds the size of the statically allocated bitmap
// backing store. At 4 KiB/frame this covers a 4 GiB managed region, which is
// comfortably above what a single largest-usable-region selection produces
// on the QEMU/Bochs/real-hardware memory maps this kernel targets.
const maxManagedFrames = 1 << 20

const bitsPerWord = 64

// allocator is the sole physical frame allocator instance: there is exactly
// one physical address space, and every other subsystem needs to reach it
// without plumbing a pointer through every call.
var allocator bitmapAllocator

type bitmapAllocator struct {
	// startFrame/endFrame bound the managed region (inclusive/exclusive).
	startFrame Frame
	endFrame   Frame

	total    uint64
	reserved uint64
	used     uint64

	// bitmap is sized once at Init and never resized; arr is the backing
	// store, bitmap is the slice view truncated to the frames actually
	// under management.
	arr    [maxManagedFrames / bitsPerWord]uint64
	bitmap []uint64

	initialized bool
}

// Init selects the largest Usable entry in the loader-provided memory map
// as the managed region, force-reserves any non-Usable entry that overlaps
// it. The bitmap itself lives in the kernel image's BSS, outside the managed
// region, so it takes no frames from it. It must run before any other pmm
// operation.
func Init(entries []boot.MemoryMapEntry) *kernel.Error {
	var largest *boot.MemoryMapEntry
	for i := range entries {
		e := &entries[i]
		if e.Kind != boot.Usable {
			continue
		}
		if largest == nil || e.Length > largest.Length {
			largest = e
		}
	}
	if largest == nil {
		return &kernel.Error{Module: "pmm", Message: "no usable memory region reported by loader"}
	}

	regionStart := (largest.Base + uint64(mem.PageSize) - 1) &^ (uint64(mem.PageSize) - 1)
	regionEnd := (largest.Base + largest.Length) &^ (uint64(mem.PageSize) - 1)

	allocator.startFrame = Frame(regionStart >> mem.PageShift)
	allocator.endFrame = Frame(regionEnd >> mem.PageShift)
	frameCount := uint64(allocator.endFrame - allocator.startFrame)
	if frameCount > maxManagedFrames {
		frameCount = maxManagedFrames
		allocator.endFrame = allocator.startFrame + Frame(frameCount)
	}

	words := (frameCount + bitsPerWord - 1) / bitsPerWord
	allocator.bitmap = allocator.arr[:words]
	for i := range allocator.bitmap {
		allocator.bitmap[i] = 0
	}
	allocator.total = frameCount
	allocator.reserved = 0
	allocator.used = 0

	// Force-reserve any non-Usable entry that overlaps the managed region.
	for i := range entries {
		e := &entries[i]
		if e.Kind == boot.Usable {
			continue
		}
		reserveOverlap(e.Base, e.Length)
	}

	// The bitmap storage lives in the kernel image's BSS, not in the
	// managed region: its backing frames are already covered by the
	// ExecutableAndModules/BootloaderReclaimable entries force-reserved
	// above, so no separate reservation is needed here.

	allocator.initialized = true
	return nil
}

func reserveOverlap(base, length uint64) {
	regionStart := uint64(allocator.startFrame) << mem.PageShift
	regionEnd := uint64(allocator.endFrame) << mem.PageShift
	if base+length <= regionStart || base >= regionEnd {
		return
	}
	if base < regionStart {
		length -= regionStart - base
		base = regionStart
	}
	if base+length > regionEnd {
		length = regionEnd - base
	}
	ReserveRegion(uintptr(base), uintptr(length))
}

// frameIndex converts a frame to a bit index, or -1 if the frame falls
// outside the managed region.
func frameIndex(f Frame) int {
	if f < allocator.startFrame || f >= allocator.endFrame {
		return -1
	}
	return int(f - allocator.startFrame)
}

func testBit(index int) bool {
	return allocator.bitmap[index/bitsPerWord]&(1<<uint(index%bitsPerWord)) != 0
}

func setBit(index int) {
	allocator.bitmap[index/bitsPerWord] |= 1 << uint(index%bitsPerWord)
}

func clearBit(index int) {
	allocator.bitmap[index/bitsPerWord] &^= 1 << uint(index%bitsPerWord)
}

// ReserveRegion force-marks every frame overlapping [base, base+size) as
// used, as a direct bit-set rather than as a sequence of allocate-then-leak
// calls: it must be safe to call before any frame has been handed out by
// Alloc, and it must not consume a slot that Alloc could otherwise return.
func ReserveRegion(base uintptr, size uintptr) {
	if size == 0 {
		return
	}
	first := FrameFromAddress(base)
	last := FrameFromAddress(base + size - 1)
	for f := first; f <= last; f++ {
		index := frameIndex(f)
		if index < 0 {
			continue
		}
		if !testBit(index) {
			setBit(index)
			allocator.reserved++
		}
	}
}

// AllocPage allocates a single free frame.
func AllocPage() (Frame, *kernel.Error) {
	return AllocPages(1)
}

// AllocPages finds the first run of n consecutive free frames, marks them
// used and returns the first frame in the run. The scan is linear first-fit;
// callers running with interrupts enabled are responsible for disabling them
// for the duration of the call, since a concurrent free could otherwise race
// the scan (single-CPU v1: done with irq_save at the call sites in vmm/sched).
func AllocPages(n uint64) (Frame, *kernel.Error) {
	if n == 0 || !allocator.initialized {
		return InvalidFrame, ErrOutOfMemory
	}

	total := uint64(allocator.endFrame - allocator.startFrame)
	var run uint64
	var runStart int
	for index := 0; uint64(index) < total; index++ {
		if testBit(index) {
			run = 0
			continue
		}
		if run == 0 {
			runStart = index
		}
		run++
		if run == n {
			for i := runStart; i < runStart+int(n); i++ {
				setBit(i)
			}
			allocator.used += n
			return allocator.startFrame + Frame(runStart), nil
		}
	}

	return InvalidFrame, ErrOutOfMemory
}

// FreePage releases a single frame. Freeing a frame the allocator does not
// manage, or one that is already free, is a no-op rather than a fault.
func FreePage(f Frame) {
	FreePages(f, 1)
}

// FreePages releases n consecutive frames starting at f. Each frame is
// handled independently so a partially-out-of-range run still frees the
// frames that are actually managed.
func FreePages(f Frame, n uint64) {
	for i := uint64(0); i < n; i++ {
		index := frameIndex(f + Frame(i))
		if index < 0 || !testBit(index) {
			continue
		}
		clearBit(index)
		allocator.used--
	}
}

// TotalFrames returns the number of frames under management.
func TotalFrames() uint64 { return allocator.total }

// ReservedFrames returns the number of frames reserved at Init time (never
// eligible for allocation).
func ReservedFrames() uint64 { return allocator.reserved }

// UsedFrames returns the number of frames currently handed out via Alloc.
func UsedFrames() uint64 { return allocator.used }

// FreeFrames returns the number of frames still available to Alloc.
func FreeFrames() uint64 {
	return allocator.total - allocator.reserved - allocator.used
}
