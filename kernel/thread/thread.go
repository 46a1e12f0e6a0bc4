package thread

import (
	"unsafe"

	"novaos/kernel"
)

// ErrStackAllocFailed is returned by Create when the backing kernel stack
// could not be obtained.
var ErrStackAllocFailed = &kernel.Error{Module: "thread", Message: "failed to allocate kernel stack"}

// DefaultStackSize is the kernel stack size used when Create is given 0.
const DefaultStackSize = 16 * 1024

// stackAllocFn allocates a kernel stack of the given size and returns its
// base (lowest) address. Production wires this to the PFA (allocate
// contiguous frames and return their HHDM virtual address); tests substitute a plain
// Go-backed buffer, since a hosted test binary has no frame allocator and
// must never actually jump onto the returned stack.
var stackAllocFn = func(size uintptr) (uintptr, *kernel.Error) {
	return 0, ErrStackAllocFailed
}

// SetStackAllocator overrides the function Create uses to obtain a kernel
// stack. Called once during kernel bring-up with a VMM/PFA-backed
// allocator; tests install a fake.
func SetStackAllocator(fn func(size uintptr) (uintptr, *kernel.Error)) {
	stackAllocFn = fn
}

// ContextSwitch performs the x86-64 context switch between old and new. It
// defaults to the real assembly routine (contextSwitch); the scheduler's
// own tests substitute a fake, since a hosted test binary cannot actually
// switch stacks without corrupting the Go runtime underneath it.
var ContextSwitch = contextSwitch

var (
	currentFn          = func() *TCB { return nil }
	enableInterruptsFn = func() {}
	exitFn             = func(code int) {}
)

// SetTrampolineHooks wires the callbacks threadEntryTrampoline needs: how
// to find the TCB that just started running, how to turn interrupts back
// on, and what to do when a thread's entry function returns. Production
// wires these to sched.Current, cpu.EnableInterrupts and sched.Exit;
// tests substitute fakes.
func SetTrampolineHooks(current func() *TCB, enableInterrupts func(), exit func(int)) {
	currentFn = current
	enableInterruptsFn = enableInterrupts
	exitFn = exit
}

var nextTID uint32 = 1

// Create allocates a kernel stack for entry, lays out the initial stack
// image (see initStack), and returns a TCB in the Created state.
// The thread is not runnable until a caller adds it to the scheduler.
func Create(name string, entry func(uintptr), arg uintptr, priority uint8, stackSize uintptr) (*TCB, *kernel.Error) {
	if stackSize == 0 {
		stackSize = DefaultStackSize
	}

	base, err := stackAllocFn(stackSize)
	if err != nil {
		return nil, err
	}

	t := &TCB{
		TID:             nextTID,
		State:           StateCreated,
		KernelStackBase: base,
		KernelStackSize: stackSize,
		Entry:           entry,
		Arg:             arg,
		Priority:        priority,
		BasePriority:    priority,
	}
	nextTID++
	t.SetName(name)
	t.RSP = initStack(base, stackSize)

	return t, nil
}

// initStack writes the initial kernel-stack image a never-run thread needs
// so that the first contextSwitch into it pops straight into
// threadEntryTrampoline with interrupts enabled (RFLAGS=0x202, IF set) and
// every callee-saved register zeroed. Returns the RSP value to store in
// the TCB.
func initStack(base, size uintptr) uintptr {
	top := base + size

	putWord(top-8, uint64(funcPC(threadEntryTrampoline)))
	putWord(top-16, 0x202) // IF=1, reserved bit 1 set
	putWord(top-24, 0)     // RBP
	putWord(top-32, 0)     // RBX
	putWord(top-40, 0)     // R12
	putWord(top-48, 0)     // R13
	putWord(top-56, 0)     // R14
	putWord(top-64, 0)     // R15

	return top - 64
}

func putWord(addr uintptr, value uint64) {
	*(*uint64)(unsafe.Pointer(addr)) = value
}

// threadEntryTrampoline is the function every freshly created thread's
// stack is rigged to "return" into the first time it runs (see initStack).
// It is ordinary Go code, not assembly: the offset trick that matters is
// only the initial return address itself, not how the trampoline reads the
// TCB once it's running.
func threadEntryTrampoline() {
	enableInterruptsFn()

	current := currentFn()
	entry, arg := current.Entry, current.Arg
	entry(arg)

	exitFn(0)
}
