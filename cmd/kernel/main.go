package main

import (
	"novaos/kernel/hal/boot"
	"novaos/kernel/mem/pmm"
)

var (
	bootMemoryMap   []boot.MemoryMapEntry
	bootHHDMOffset  uintptr
	bootPML4        pmm.Frame
	bootFramebuffer *boot.FramebufferInfo
)

// main is the only Go symbol visible to the rt0 assembly the loader jumps
// to after it has parsed the Limine boot protocol responses and populated
// the package-level variables above. It exists so the Go compiler cannot
// prove Kmain unreachable and discard it: the assembly trampoline calls
// main directly, never through a normal process-start path, and main is
// not expected to return.
func main() {
	Kmain(bootMemoryMap, bootHHDMOffset, bootPML4, bootFramebuffer)
}
