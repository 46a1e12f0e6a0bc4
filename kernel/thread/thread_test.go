package thread

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"novaos/kernel"
)

// fakeStack returns a plain Go-backed byte buffer to stand in for a kernel
// stack; the tests below only inspect the memory image Create/initStack
// write into it, they never actually context-switch onto it.
func fakeStack(size uintptr) (uintptr, *kernel.Error) {
	buf := make([]byte, size)
	return uintptr(unsafe.Pointer(&buf[0])), nil
}

func withFakeStackAllocator(t *testing.T) {
	t.Helper()
	orig := stackAllocFn
	stackAllocFn = fakeStack
	t.Cleanup(func() { stackAllocFn = orig })
}

func readWord(addr uintptr) uint64 {
	return *(*uint64)(unsafe.Pointer(addr))
}

func TestTCBOffsetsMatchAssembly(t *testing.T) {
	var tcb TCB
	require.Equal(t, uintptr(tcbOffsetRSP), unsafe.Offsetof(tcb.RSP))
}

func TestCreateInitialState(t *testing.T) {
	withFakeStackAllocator(t)

	tcb, err := Create("worker", func(uintptr) {}, 0, 3, 0)
	require.Nil(t, err)
	require.Equal(t, StateCreated, tcb.State)
	require.Equal(t, uint8(3), tcb.Priority)
	require.Equal(t, uint8(3), tcb.BasePriority)
	require.Equal(t, "worker", tcb.NameString())
	require.NotZero(t, tcb.RSP)
}

func TestCreateDefaultsStackSize(t *testing.T) {
	withFakeStackAllocator(t)

	tcb, err := Create("t", func(uintptr) {}, 0, 0, 0)
	require.Nil(t, err)
	require.Equal(t, uintptr(DefaultStackSize), tcb.KernelStackSize)
}

func TestCreateAssignsIncreasingTIDs(t *testing.T) {
	withFakeStackAllocator(t)

	a, _ := Create("a", func(uintptr) {}, 0, 3, 0)
	b, _ := Create("b", func(uintptr) {}, 0, 3, 0)
	require.Less(t, a.TID, b.TID)
}

func TestInitStackImageMatchesSpecLayout(t *testing.T) {
	withFakeStackAllocator(t)

	tcb, err := Create("img", func(uintptr) {}, 0, 3, 4096)
	require.Nil(t, err)

	top := tcb.KernelStackBase + tcb.KernelStackSize
	require.Equal(t, top-64, tcb.RSP)

	require.Equal(t, uint64(funcPC(threadEntryTrampoline)), readWord(top-8))
	require.Equal(t, uint64(0x202), readWord(top-16))
	require.Equal(t, uint64(0), readWord(top-24)) // RBP
	require.Equal(t, uint64(0), readWord(top-32)) // RBX
	require.Equal(t, uint64(0), readWord(top-40)) // R12
	require.Equal(t, uint64(0), readWord(top-48)) // R13
	require.Equal(t, uint64(0), readWord(top-56)) // R14
	require.Equal(t, uint64(0), readWord(top-64)) // R15 == RSP
}

func TestCreatePropagatesStackAllocationFailure(t *testing.T) {
	orig := stackAllocFn
	defer func() { stackAllocFn = orig }()
	stackAllocFn = func(uintptr) (uintptr, *kernel.Error) { return 0, ErrStackAllocFailed }

	tcb, err := Create("x", func(uintptr) {}, 0, 3, 0)
	require.Nil(t, tcb)
	require.Equal(t, ErrStackAllocFailed, err)
}

func TestSetNameTruncatesAndNULTerminates(t *testing.T) {
	var tcb TCB
	long := make([]byte, 64)
	for i := range long {
		long[i] = 'a'
	}
	tcb.SetName(string(long))
	require.Len(t, tcb.NameString(), nameLen-1)
}

func TestThreadEntryTrampolineCallsEntryThenExit(t *testing.T) {
	withFakeStackAllocator(t)

	var ranWith uintptr
	tcb, _ := Create("trampoline", func(arg uintptr) { ranWith = arg }, 0xBEEF, 3, 0)

	var enabled, exitCode int
	SetTrampolineHooks(
		func() *TCB { return tcb },
		func() { enabled++ },
		func(code int) { exitCode = code + 1 },
	)
	defer SetTrampolineHooks(func() *TCB { return nil }, func() {}, func(int) {})

	threadEntryTrampoline()

	require.Equal(t, uintptr(0xBEEF), ranWith)
	require.Equal(t, 1, enabled)
	require.Equal(t, 1, exitCode)
}
