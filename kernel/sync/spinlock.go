// Package sync provides the synchronization primitives the rest of the
// kernel uses before (and after) the scheduler can put a caller to sleep:
// a spinlock, and a semaphore/mutex layered on top of it. All three busy
// wait rather than block, since the scheduler exposes no blocking primitive
// safe to call at init time; a future version that wires sched.Block/
// sched.Unblock underneath can replace the wait loop without touching
// callers.
package sync

import "sync/atomic"

// yieldFn is invoked on each failed acquire attempt while spinning. It
// defaults to a no-op (equivalent to a pure busy-wait spin with pause);
// SetYieldFn can replace it with a function that lets other ready threads
// run between polls.
var yieldFn = func() {}

// SetYieldFn overrides the function called between failed lock-acquire
// attempts. Kernel bring-up does not call it, so the kernel keeps the no-op
// default; tests substitute runtime.Gosched.
func SetYieldFn(fn func()) {
	yieldFn = fn
}

// Spinlock implements a lock where each caller trying to acquire it
// busy-waits until the lock becomes available. There is no sleep queue:
// under IF=1 a spinning caller can be preempted, which is exactly why
// acquire_irq_save exists for critical sections shared with an ISR.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the current caller.
// Re-acquiring a lock already held by the caller deadlocks, as with any
// non-reentrant spinlock.
func (l *Spinlock) Acquire() {
	for !l.TryToAcquire() {
		pauseFn()
		yieldFn()
	}
}

// TryToAcquire attempts to acquire the lock without waiting. It returns true
// if the lock was free and is now held by the caller.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock. Calling Release on a free lock is a
// no-op, matching the PFA's idempotent-free philosophy of never faulting on
// a caller mistake that isn't actually a corruption.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

// IRQState captures whether interrupts were enabled before a critical
// section disabled them, so ReleaseIRQRestore can put things back exactly
// as they were.
type IRQState struct {
	wasEnabled bool
}

// AcquireIRQSave disables interrupts, records whether they were previously
// enabled, and then acquires the lock. It is the primitive every non-ISR
// path sharing state with an ISR must use: without it, a spin in a section
// an ISR also touches can deadlock the CPU against itself.
func (l *Spinlock) AcquireIRQSave() IRQState {
	state := IRQState{wasEnabled: interruptsEnabledFn()}
	disableInterruptsFn()
	l.Acquire()
	return state
}

// ReleaseIRQRestore releases the lock and restores interrupts to the state
// captured by the matching AcquireIRQSave.
func (l *Spinlock) ReleaseIRQRestore(state IRQState) {
	l.Release()
	if state.wasEnabled {
		enableInterruptsFn()
	}
}

// pauseFn executes the x86 `pause` instruction to hint the CPU that this is
// a spin-wait loop. Mocked by tests; wired to cpu.Pause in production.
var pauseFn = func() {}

// disableInterruptsFn/enableInterruptsFn/interruptsEnabledFn are mocked by
// tests and wired to cpu.DisableInterrupts/cpu.EnableInterrupts/a RFLAGS.IF
// probe during kernel bring-up, mirroring the rest of the tree's
// mockable-function-variable idiom for code that needs real CPU state.
var (
	disableInterruptsFn = func() {}
	enableInterruptsFn  = func() {}
	interruptsEnabledFn = func() bool { return true }
)

// SetArchHooks wires the CPU-level primitives AcquireIRQSave/
// ReleaseIRQRestore need. Called once during kernel bring-up.
func SetArchHooks(pause, disableInterrupts, enableInterrupts func(), interruptsEnabled func() bool) {
	pauseFn = pause
	disableInterruptsFn = disableInterrupts
	enableInterruptsFn = enableInterrupts
	interruptsEnabledFn = interruptsEnabled
}
