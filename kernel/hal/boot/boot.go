// Package boot exposes the information a Limine-compatible loader hands to
// the kernel: the physical memory map, the higher-half direct map (HHDM)
// offset, and an optional framebuffer descriptor. The loader has already
// switched the CPU to long mode and installed an identity map by the time
// the kernel's Kmain is called; this package only records what it reported.
package boot

// MemoryKind classifies a memory-map entry the way the Limine protocol does.
type MemoryKind uint32

// Kinds of memory-map entries, in the order the Limine protocol defines them.
const (
	Usable MemoryKind = iota
	Reserved
	ACPIReclaimable
	ACPINVS
	BadMemory
	BootloaderReclaimable
	ExecutableAndModules
	FramebufferKind
)

func (k MemoryKind) String() string {
	switch k {
	case Usable:
		return "usable"
	case Reserved:
		return "reserved"
	case ACPIReclaimable:
		return "acpi-reclaim"
	case ACPINVS:
		return "acpi-nvs"
	case BadMemory:
		return "bad"
	case BootloaderReclaimable:
		return "bootloader-reclaim"
	case ExecutableAndModules:
		return "exec-and-modules"
	case FramebufferKind:
		return "framebuffer"
	default:
		return "unknown"
	}
}

// MemoryMapEntry describes one contiguous physical memory region as reported
// by the loader.
type MemoryMapEntry struct {
	Base   uint64
	Length uint64
	Kind   MemoryKind
}

// End returns the exclusive end address of the entry.
func (e *MemoryMapEntry) End() uint64 {
	return e.Base + e.Length
}

// FramebufferInfo describes the boot framebuffer, when one was requested.
// The kernel core never draws into it directly; it is only threaded
// through so the framebuffer console's probe can see it exists.
type FramebufferInfo struct {
	PhysAddr      uint64
	Width, Height uint32
	Pitch         uint32
	Bpp           uint8
}

var (
	memoryMap   []MemoryMapEntry
	hhdmOffset  uintptr
	framebuffer *FramebufferInfo
	initialized bool
)

// Init records the boot information handed to the kernel by the loader. It
// must be called exactly once, before any other package in the tree reads
// MemoryMap, HHDMOffset or Framebuffer.
func Init(entries []MemoryMapEntry, hhdm uintptr, fb *FramebufferInfo) {
	memoryMap = entries
	hhdmOffset = hhdm
	framebuffer = fb
	initialized = true
}

// Initialized reports whether Init has already run.
func Initialized() bool {
	return initialized
}

// MemoryMap returns the memory map reported by the loader.
func MemoryMap() []MemoryMapEntry {
	return memoryMap
}

// VisitMemoryMap calls visit once for every memory-map entry, in the order
// reported by the loader. It stops early if visit returns false.
func VisitMemoryMap(visit func(*MemoryMapEntry) bool) {
	for i := range memoryMap {
		if !visit(&memoryMap[i]) {
			return
		}
	}
}

// HHDMOffset returns the constant virtual-to-physical offset of the higher
// half direct map: for any physical address p, p+HHDMOffset() is a valid,
// writable virtual alias of that physical byte.
func HHDMOffset() uintptr {
	return hhdmOffset
}

// Framebuffer returns the boot framebuffer descriptor, or nil if none was
// requested or provided.
func Framebuffer() *FramebufferInfo {
	return framebuffer
}
