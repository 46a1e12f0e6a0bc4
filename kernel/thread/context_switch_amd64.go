package thread

import "unsafe"

// contextSwitch saves the non-volatile register/flag state of the running
// thread onto its own kernel stack, records the resulting RSP into
// old.RSP, switches to new's kernel stack by loading RSP from new.RSP, and
// restores register/flag state from there before returning. The epilogue
// unconditionally executes sti before ret: a thread that was
// last preempted inside an IRQ handler (IF=0 in its saved RFLAGS) still
// resumes with interrupts enabled, since the scheduler itself only ever
// runs with interrupts disabled and every resumed thread must leave that
// state behind.
//
// When new has never run before, the "return" executed at the end of this
// function actually jumps to threadEntryTrampoline, because initStack wrote
// its address as the initial return address on the fresh stack (see
// initStack for the full initial-stack image).
func contextSwitch(old, new *TCB)

// funcPC returns the entry address of a top-level, non-closure Go
// function, mirroring the same trick irq.funcPC uses to populate the IDT
// stub table: a func value's first word is the code's entry PC.
func funcPC(f func()) uintptr {
	return **(**uintptr)(unsafe.Pointer(&f))
}
