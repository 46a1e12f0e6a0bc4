package vmm

// hhdmOffset is the constant offset that turns a physical address into a
// writable virtual alias: for any physical address p, p+hhdmOffset is valid.
var hhdmOffset uintptr

// SetHHDMOffset records the HHDM offset reported by the loader. Exposed
// separately from Init so tests can exercise walk()/Map() without also
// wiring a frame allocator.
func SetHHDMOffset(offset uintptr) {
	hhdmOffset = offset
}

// HHDMOffset returns the currently configured HHDM offset.
func HHDMOffset() uintptr {
	return hhdmOffset
}

// phys2virt returns the HHDM virtual alias of a physical address.
func phys2virt(phys uintptr) uintptr {
	return phys + hhdmOffset
}

// PhysToVirt returns the HHDM virtual alias of a physical address. It is
// the exported form of phys2virt, for callers outside this package that
// need a writable view of a DMA buffer or descriptor ring without routing
// through MapMMIO (which is for device *registers*, not ordinary RAM the
// device also happens to access by physical address).
func PhysToVirt(phys uintptr) uintptr {
	return phys2virt(phys)
}
