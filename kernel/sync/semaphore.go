package sync

// Semaphore is a counting semaphore layered atop a Spinlock. It busy-waits
// rather than putting the caller to sleep: the scheduler does not yet
// expose a blocking primitive safe to call during early init, so Wait
// spins (yielding between polls) until the count is positive.
type Semaphore struct {
	lock  Spinlock
	count int32
}

// NewSemaphore returns a semaphore initialized with the given count.
func NewSemaphore(count int32) *Semaphore {
	return &Semaphore{count: count}
}

// Wait decrements the count, busy-waiting while it is already zero.
func (s *Semaphore) Wait() {
	for {
		s.lock.Acquire()
		if s.count > 0 {
			s.count--
			s.lock.Release()
			return
		}
		s.lock.Release()
		pauseFn()
		yieldFn()
	}
}

// Signal increments the count, waking (on the next poll) any spinning
// waiter.
func (s *Semaphore) Signal() {
	s.lock.Acquire()
	s.count++
	s.lock.Release()
}

// Mutex is a binary semaphore with Lock/Unlock naming, for call sites that
// want mutual exclusion rather than a general counter.
type Mutex struct {
	sem Semaphore
}

// NewMutex returns an unlocked mutex.
func NewMutex() *Mutex {
	return &Mutex{sem: Semaphore{count: 1}}
}

// Lock acquires the mutex, busy-waiting if it is already held.
func (m *Mutex) Lock() {
	m.sem.Wait()
}

// Unlock releases the mutex.
func (m *Mutex) Unlock() {
	m.sem.Signal()
}
