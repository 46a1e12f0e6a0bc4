// Package thread implements the Thread Control Block and the x86-64
// context switch. The TCB's layout is load-bearing: contextSwitch (in
// context_switch_amd64.s) reads and writes the RSP field at a fixed byte
// offset. tcbOffsetRSP is asserted against unsafe.Offsetof in an init() so
// a field reorder fails loudly at program start instead of silently
// corrupting a context switch. threadEntryTrampoline, by contrast, is
// itself a normal Go function (its entry PC is simply the initial return
// address installed on a fresh kernel stack, see initStack) so it reads
// Entry/Arg off the current TCB through ordinary field access rather than
// a second hand-maintained offset.
package thread

import (
	"unsafe"

	"novaos/kernel/kfmt"
)

// State is the lifecycle state of a thread.
type State uint8

// Thread lifecycle states: Created on Create, Ready on the first
// scheduler Add, Running when picked, then Ready/Sleeping/Blocked/
// Terminated thereafter.
const (
	StateCreated State = iota
	StateReady
	StateRunning
	StateBlocked
	StateSleeping
	StateTerminated
)

// nameLen bounds the fixed-size thread name buffer, matching the TCB's
// stable-layout requirement (no variable-length fields the assembly has to
// reason about).
const nameLen = 32

// TCB is a Thread Control Block. Field order matters up to RSP: it is read
// by hand-written assembly at a fixed offset (see tcbOffsetRSP and the
// init() assertion below), so no field may be inserted ahead of it without
// updating both.
type TCB struct {
	TID   uint32
	State State

	KernelStackBase uintptr
	KernelStackSize uintptr

	// RSP is the saved stack pointer; contextSwitch reads/writes it
	// directly from assembly. Keep its offset in sync with
	// tcbOffsetRSP below.
	RSP uintptr

	Name [nameLen]byte

	// Entry and Arg are read by threadEntryTrampoline, off the "current"
	// TCB, the first time a thread runs. Unlike RSP these are read
	// through ordinary Go field access, not hand-maintained offsets,
	// since the trampoline itself is plain Go rather than assembly.
	Entry func(uintptr)
	Arg   uintptr

	Priority     uint8
	BasePriority uint8

	TimeSlice       int32
	TimeSliceLength int32
	TotalTicks      uint64

	CPUUsageHistory [8]uint8
	HistoryIndex    int
	AvgCPUUsage     uint8

	SliceStartTicks    uint64
	TicksUsedThisSlice uint64

	WakeTime uint64

	// Next/Prev are the intrusive queue links the scheduler threads
	// ready/sleep/blocked queues through; exactly one queue owns them at
	// a time.
	Next, Prev *TCB

	ExitCode int
}

// tcbOffsetRSP is the fixed byte offset context_switch_amd64.s depends on,
// given the field order above and standard amd64 Go struct alignment.
// Asserted against unsafe.Offsetof(TCB{}.RSP) below so a struct reorder is
// caught at program startup rather than corrupting a context switch
// silently.
const tcbOffsetRSP = 24

func init() {
	var t TCB
	assertOffset("RSP", unsafe.Offsetof(t.RSP), tcbOffsetRSP)
}

func assertOffset(field string, got, want uintptr) {
	if got != want {
		kfmt.Printf("thread: TCB.%s offset mismatch: got %d want %d\n", field, got, want)
		panic("thread: TCB layout does not match assembly expectations")
	}
}

// SetName copies s (truncated to nameLen-1 bytes) into the TCB's fixed-size
// name field, NUL-terminated.
func (t *TCB) SetName(s string) {
	n := copy(t.Name[:nameLen-1], s)
	t.Name[n] = 0
}

// NameString returns the thread's name as a Go string, stopping at the
// first NUL byte.
func (t *TCB) NameString() string {
	for i, b := range t.Name {
		if b == 0 {
			return string(t.Name[:i])
		}
	}
	return string(t.Name[:])
}
