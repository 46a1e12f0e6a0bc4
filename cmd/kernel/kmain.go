// Command kernel is the freestanding kernel binary. Kmain (this file)
// sequences the boot-time bring-up of every subsystem: frame/virtual memory
// managers, interrupts, the tick source, the scheduler, and device probing.
// It is the Go-side counterpart to the loader's Limine entry stub: the
// loader switches the CPU to long mode, builds an initial identity map, and
// jumps to a small assembly trampoline that calls Kmain with the
// information below already resolved.
package main

import (
	"io"
	"sort"

	"novaos/device"
	_ "novaos/device/ata"
	_ "novaos/device/keyboard"
	_ "novaos/device/nic"
	_ "novaos/device/serial"
	_ "novaos/device/video/console"
	"novaos/kernel"
	"novaos/kernel/cpu"
	"novaos/kernel/hal/boot"
	"novaos/kernel/irq"
	"novaos/kernel/kfmt"
	"novaos/kernel/mem"
	"novaos/kernel/mem/pmm"
	"novaos/kernel/mem/vmm"
	"novaos/kernel/pit"
	"novaos/kernel/sched"
	"novaos/kernel/sync"
	"novaos/kernel/thread"
)

// tickFrequencyHz is the PIT rate driving scheduler preemption. 1000 Hz
// makes one tick equal one millisecond, which the sleep and time-slice
// arithmetic relies on.
const tickFrequencyHz = 1000

// errKmainReturned guards against Kmain ever falling off the end: it must
// hand control to the scheduler's idle loop and never come back.
var errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}

// Kmain is the only Go symbol the loader's assembly trampoline calls. It is
// handed the loader-reported memory map, HHDM offset, the PML4 frame left
// active by the loader, and an optional framebuffer descriptor.
//
//go:noinline
func Kmain(memoryMap []boot.MemoryMapEntry, hhdmOffset uintptr, pml4 pmm.Frame, fb *boot.FramebufferInfo) {
	boot.Init(memoryMap, hhdmOffset, fb)

	sync.SetArchHooks(cpu.Pause, cpu.DisableInterrupts, cpu.EnableInterrupts, cpu.InterruptsEnabled)

	if err := pmm.Init(boot.MemoryMap()); err != nil {
		kfmt.Panic(err)
	}

	vmm.SetFrameAllocator(func() (pmm.Frame, *kernel.Error) { return pmm.AllocPage() })
	vmm.Init(hhdmOffset, pml4)

	irq.Init()
	irq.SetPageFaultHandler(func(faultAddr uintptr, errorCode uint64) bool {
		return vmm.HandlePageFault(faultAddr, vmm.PageFaultErrorCode(errorCode))
	})

	pit.Init(tickFrequencyHz)
	pit.SetOnTick(sched.OnTick)
	irq.HandleIRQ(irq.IRQNum(0), func(frame *irq.Frame, regs *irq.Regs) {
		pit.Tick()
	})

	// Kernel stacks come straight from the frame allocator, viewed through
	// the HHDM so no explicit mapping step is needed before use.
	thread.SetStackAllocator(func(size uintptr) (uintptr, *kernel.Error) {
		frame, err := pmm.AllocPages(mem.PageCount(mem.Size(size)))
		if err != nil {
			return 0, err
		}
		return vmm.PhysToVirt(frame.Address()), nil
	})
	thread.SetTrampolineHooks(sched.Current, cpu.EnableInterrupts, sched.Exit)

	sched.SetClock(pit.Ticks)
	sched.Init(func(arg uintptr) {
		for {
			cpu.EnableInterrupts()
			cpu.Halt()
		}
	})

	probeDevices()

	sched.Start()
	kfmt.Panic(errKmainReturned)
}

// probeDevices runs every registered driver's Probe in detection-order,
// calling DriverInit on whichever ones report hardware present.
func probeDevices() {
	drivers := device.DriverList()
	sort.Sort(drivers)
	for _, info := range drivers {
		drv := info.Probe()
		if drv == nil {
			continue
		}
		if err := drv.DriverInit(); err != nil {
			kfmt.Printf("kmain: %s init failed: %s\n", drv.DriverName(), err.Error())
			continue
		}
		// The first initialized driver that can act as a byte sink (the
		// debug serial console, probed at DetectOrderEarly) becomes the log
		// target, draining everything buffered since boot.
		if w, ok := drv.(io.Writer); ok && kfmt.GetOutputSink() == nil {
			kfmt.SetOutputSink(w)
		}
		major, minor, patch := drv.DriverVersion()
		kfmt.Printf("kmain: %s v%d.%d.%d ready\n", drv.DriverName(), major, minor, patch)
	}
}
