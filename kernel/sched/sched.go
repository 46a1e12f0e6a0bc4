// Package sched implements the preemptive multi-level priority scheduler:
// seven FIFO ready queues, a wake_time-ordered sleep queue, an unordered
// blocked queue, adaptive priority boost/demote, and the x86-64 bootstrap
// that hands control to the first ready thread and never returns.
package sched

import "novaos/kernel/thread"

// Priority levels: 0 is realtime (never adjusted), 6 is the idle thread's
// fixed priority (also never adjusted).
const (
	PriorityRealtime = 0
	PriorityLow      = 5
	PriorityIdle     = 6
	PriorityLevels   = 7
)

// timeSliceBaseMS is the constant term of the time-slice-length formula
// (base + (PriorityLevels - priority) * 3 ms). 10ms keeps even a realtime
// thread's slice long enough to amortize the tick ISR's own cost, while an
// idle-adjacent thread still preempts often enough to stay responsive.
const timeSliceBaseMS = 10

// historyLen is the number of completed time slices the adaptive-priority
// moving average is computed over.
const historyLen = 8

var (
	ready     [PriorityLevels]tcbQueue
	sleeping  tcbQueue
	blocked   tcbQueue
	current   *thread.TCB
	idle      *thread.TCB
	bootstrap thread.TCB

	// nowFn returns the current tick count. Production wires it to
	// pit.Ticks; tests substitute a counter they control directly, since
	// the scheduler's fairness/priority properties need to be checked at
	// exact tick boundaries.
	nowFn = func() uint64 { return 0 }

	// contextSwitchFn performs the actual stack switch. Production
	// defaults to thread.ContextSwitch; tests substitute a fake that just
	// updates bookkeeping, since a hosted test binary cannot really swap
	// stacks without corrupting the Go runtime underneath it.
	contextSwitchFn = thread.ContextSwitch
)

// SetClock overrides the tick-counter function OnTick and SleepMs use to
// compute deadlines. Called once during bring-up with pit.Ticks; tests
// install a controllable fake clock.
func SetClock(fn func() uint64) {
	nowFn = fn
}

// SetContextSwitch overrides the function used to switch between two
// threads' stacks. Production leaves the thread.ContextSwitch default in
// place; tests substitute a no-op that only updates bookkeeping.
func SetContextSwitch(fn func(old, new *thread.TCB)) {
	contextSwitchFn = fn
}

// Init installs the always-present idle thread, which runs sti/hlt forever
// whenever every ready queue is empty. haltLoop is the idle thread's entry
// function; production wires an actual sti/hlt loop, tests a no-op.
func Init(haltLoop func(uintptr)) {
	t, err := thread.Create("idle", haltLoop, 0, PriorityIdle, 0)
	if err != nil {
		panic(err.Error())
	}
	t.TimeSliceLength = timeSliceLength(PriorityIdle)
	t.TimeSlice = t.TimeSliceLength
	idle = t
}

// timeSliceLength computes a thread's time-slice length in ticks for the
// given priority: higher-priority (lower-numbered) threads get longer slices.
func timeSliceLength(priority uint8) int32 {
	return timeSliceBaseMS + int32(PriorityLevels-int(priority))*3
}

// Add makes t runnable (the Created->Ready transition), appended to the
// tail of its priority's ready queue.
func Add(t *thread.TCB) {
	t.State = thread.StateReady
	t.TimeSliceLength = timeSliceLength(t.Priority)
	t.TimeSlice = t.TimeSliceLength
	t.SliceStartTicks = nowFn()
	ready[t.Priority].pushBack(t)
}

// Current returns the thread currently charged with the CPU.
func Current() *thread.TCB {
	return current
}

// pickNext returns the highest-priority (lowest-numbered) non-empty ready
// queue's head, or idle if every ready queue is empty.
func pickNext() *thread.TCB {
	for p := 0; p < PriorityLevels; p++ {
		if !ready[p].empty() {
			return ready[p].popFront()
		}
	}
	return idle
}

// Start performs a one-way switch from a bootstrap context (whose saved
// state is never restored) into the first ready thread, and never returns
// in production: the assembly contextSwitch epilogue's ret lands in the
// chosen thread, not back here.
func Start() {
	next := pickNext()
	next.State = thread.StateRunning
	current = next
	contextSwitchFn(&bootstrap, next)
}

// switchTo transfers the CPU from the current thread to next, updating
// bookkeeping around the actual register/stack switch.
func switchTo(next *thread.TCB) {
	prev := current
	next.State = thread.StateRunning
	current = next
	contextSwitchFn(prev, next)
}

// OnTick is invoked once per timer interrupt (wired to pit.SetOnTick). It
// wakes due sleepers, charges the current thread a tick, and when its time
// slice is exhausted, runs the adaptive-priority recompute and preempts.
//
//go:noalloc
func OnTick() {
	now := nowFn()
	wakeDueSleepers(now)

	if current == nil {
		return
	}

	current.TotalTicks++
	current.TicksUsedThisSlice++
	current.TimeSlice--
	if current.TimeSlice > 0 {
		return
	}

	finishSlice(current, false)
	requeueAndSchedule(current)
}

// wakeDueSleepers moves every sleeper whose wake_time <= now from the sleep
// queue to the tail of its priority's ready queue, in wake_time order (so a
// thread that should have woken earlier is observed first).
func wakeDueSleepers(now uint64) {
	for n := sleeping.head; n != nil; {
		next := n.Next
		if n.WakeTime > now {
			break
		}
		sleeping.remove(n)
		n.State = thread.StateReady
		n.TimeSlice = n.TimeSliceLength
		n.SliceStartTicks = now
		n.TicksUsedThisSlice = 0
		ready[n.Priority].pushBack(n)
		n = next
	}
}

// finishSlice records a thread's CPU-usage percentage for the slice that
// just ended (full or partial, e.g. on a voluntary Yield) into the 8-entry
// history ring. The moving average is only recomputed, and the adaptive
// demote/boost policy only applied, once every 8 completed slices: a
// CPU-bound thread demotes exactly at slice 8 and again at slice 16,
// instead of drifting one level per slice once the history ring first
// fills.
func finishSlice(t *thread.TCB, voluntary bool) {
	used := t.TicksUsedThisSlice
	length := uint64(t.TimeSliceLength)
	if length == 0 {
		length = 1
	}
	pct := uint8((used * 100) / length)
	if pct > 100 {
		pct = 100
	}

	t.CPUUsageHistory[t.HistoryIndex%historyLen] = pct
	t.HistoryIndex++

	if t.HistoryIndex%historyLen == 0 {
		var sum uint32
		for i := 0; i < historyLen; i++ {
			sum += uint32(t.CPUUsageHistory[i])
		}
		t.AvgCPUUsage = uint8(sum / historyLen)
		adjustPriority(t)
	}

	t.TimeSliceLength = timeSliceLength(t.Priority)
	t.TimeSlice = t.TimeSliceLength
	t.TicksUsedThisSlice = 0
	t.SliceStartTicks = nowFn()
}

// adjustPriority demotes a thread averaging above 80% CPU use by one level
// (never past PriorityLow) and promotes one averaging below 30% back toward
// its base priority. Realtime (0) and idle (PriorityIdle) never adjust.
func adjustPriority(t *thread.TCB) {
	if t.Priority == PriorityRealtime || t.Priority == PriorityIdle {
		return
	}

	if t.AvgCPUUsage > 80 && t.Priority < PriorityLow {
		t.Priority++
		return
	}

	if t.AvgCPUUsage < 30 && t.Priority > t.BasePriority {
		t.Priority--
	}
}

// requeueAndSchedule appends t to the tail of its (possibly just-adjusted)
// priority queue, unless it is Terminated, then switches to whichever
// thread pickNext now selects.
func requeueAndSchedule(t *thread.TCB) {
	if t.State != thread.StateTerminated {
		t.State = thread.StateReady
		ready[t.Priority].pushBack(t)
	}
	switchTo(pickNext())
}

// Yield re-averages CPU usage with the partial slice consumed so far,
// applies the adaptive-priority policy, requeues the caller (unless it has
// been marked Terminated), and switches to the next thread.
func Yield() {
	t := current
	if t == nil {
		return
	}
	finishSlice(t, true)
	requeueAndSchedule(t)
}

// Exit marks the current thread Terminated, records its exit code, and
// falls through to Yield: requeueAndSchedule skips Terminated threads, so
// the TCB simply never runs again. There is no reaper; the TCB (and its
// kernel stack) leak until one is added.
func Exit(code int) {
	t := current
	if t == nil {
		return
	}
	t.ExitCode = code
	t.State = thread.StateTerminated
	Yield()
}

// SleepMs moves the current thread to the sleep queue until at least ms
// ticks (assumed 1 tick == 1ms, the PIT's default configuration) have
// elapsed, then schedules away from it.
func SleepMs(ms uint64) {
	t := current
	if t == nil {
		return
	}
	t.State = thread.StateSleeping
	t.WakeTime = nowFn() + ms
	sleeping.insertSorted(t, func(x *thread.TCB) uint64 { return x.WakeTime })
	switchTo(pickNext())
}

// Block removes t from the ready queue (if present) and marks it Blocked.
// If t is the currently running thread, this also schedules away from it.
func Block(t *thread.TCB) {
	ready[t.Priority].remove(t)
	t.State = thread.StateBlocked
	blocked.pushBack(t)
	if t == current {
		switchTo(pickNext())
	}
}

// Unblock moves t from the blocked queue back to the tail of its current
// priority's ready queue.
func Unblock(t *thread.TCB) {
	blocked.remove(t)
	t.State = thread.StateReady
	t.TimeSlice = t.TimeSliceLength
	ready[t.Priority].pushBack(t)
}

// Reset clears all scheduler state. Only used by tests, which otherwise
// share process-wide queues across test functions the way production
// shares them across the kernel's lifetime.
func Reset() {
	ready = [PriorityLevels]tcbQueue{}
	sleeping = tcbQueue{}
	blocked = tcbQueue{}
	current = nil
	idle = nil
}
