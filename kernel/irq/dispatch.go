package irq

import (
	"novaos/kernel/cpu"
	"novaos/kernel/kfmt"
)

// defaultExceptionHandler is invoked, from Go, by commonHandler for every
// vector <32 that has no dedicated handler registered: it logs a diagnostic
// and halts, since there's nothing more productive to do with an unhandled
// exception.
func defaultExceptionHandler(vector uint8, errorCode uint64, frame *Frame, regs *Regs) {
	kfmt.Printf("\nunhandled exception %d (error code %x)\n", vector, errorCode)
	regs.Print()
	frame.Print()
	haltFn()
}

// mocked by tests; real hardware stops here for good.
var haltFn = cpu.Halt

// SetHaltFn registers the function commonHandler calls when an unhandled
// exception leaves it nothing to do but stop.
func SetHaltFn(fn func()) {
	haltFn = fn
}

// pageFaultHandlerFn, when non-nil, gets first refusal on a #PF before the
// default unhandled-exception path runs. vmm.HandlePageFault is wired in
// here at boot time; irq itself does not import vmm; to avoid a layering
// cycle, since vmm sits below irq in the dependency order (PFA→HHDM→VMM→IXL).
var pageFaultHandlerFn func(faultAddr uintptr, errorCode uint64) bool

// SetPageFaultHandler registers the MMIO-rescue policy used before giving
// up on a page fault.
func SetPageFaultHandler(fn func(faultAddr uintptr, errorCode uint64) bool) {
	pageFaultHandlerFn = fn
}

// readCR2Fn is mocked by tests, since CR2 is unreadable outside ring 0.
var readCR2Fn = cpu.ReadCR2

// SetReadCR2Fn registers the function used to read the faulting address
// after a page fault.
func SetReadCR2Fn(fn func() uintptr) {
	readCR2Fn = fn
}

// commonHandler is called by every vector's assembly stub with the vector
// number, the CPU-supplied (or stub-supplied dummy) error code, and
// pointers to the saved register and exception-frame state. It routes
// vectors <32 to the exception tables, special-casing the page fault per
// the VMM's MMIO-rescue policy; vectors 32-47 invoke the registered IRQ
// handler and send EOI, with EOI sent to the slave PIC for vector >= 40 and
// always to the master. Unregistered IRQs still receive an EOI.
//
//go:noalloc
func commonHandler(vector uint8, errorCode uint64, regs *Regs, frame *Frame) {
	if vector < 32 {
		if ExceptionNum(vector) == PageFaultException && pageFaultHandlerFn != nil {
			if pageFaultHandlerFn(readCR2Fn(), errorCode) {
				return
			}
		}

		if exceptionsWithErrorCode[ExceptionNum(vector)] {
			if h := exceptionHandlersWithCode[vector]; h != nil {
				h(errorCode, frame, regs)
				return
			}
		} else if h := exceptionHandlers[vector]; h != nil {
			h(frame, regs)
			return
		}

		defaultExceptionHandler(vector, errorCode, frame, regs)
		return
	}

	if vector < 48 {
		irqNum := vector - irqVectorBase
		if h := irqHandlers[irqNum]; h != nil {
			h(frame, regs)
		}
		sendEOI(vector)
	}
}
