package kernel

// Semaphore is a counting semaphore bounded by a maximum count.
type Semaphore struct {
	waitQueue
	k *Kernel

	name      string
	available int32
	max       int32
}

// CreateSemaphore returns a semaphore with initial of maxCount slots available.
func (k *Kernel) CreateSemaphore(initial, maxCount int32, name string) (*Semaphore, ResultCode) {
	if initial < 0 || initial > maxCount {
		return nil, ErrInvalidCombination
	}
	return &Semaphore{k: k, name: name, available: initial, max: maxCount}, ResultSuccess
}

func (s *Semaphore) HandleType() HandleType { return HandleTypeSemaphore }
func (s *Semaphore) Name() string           { return s.name }
func (s *Semaphore) Available() int32       { return s.available }
func (s *Semaphore) Max() int32             { return s.max }

func (s *Semaphore) ShouldWait(_ *Thread) bool { return s.available <= 0 }

func (s *Semaphore) Acquire(t *Thread) {
	assertf(s.available > 0, "semaphore %q: acquired by %s with no slot", s.name, t)
	s.available--
}

// Release returns n slots and wakes waiters. It reports the count before the release.
func (s *Semaphore) Release(n int32) (int32, ResultCode) {
	if n < 0 || n > s.max-s.available {
		return 0, ErrOutOfRangeKernel
	}
	prev := s.available
	s.available += n
	s.WakeupAllWaitingThreads()
	return prev, ResultSuccess
}

func (s *Semaphore) WakeupAllWaitingThreads() {
	s.wakeup(s.k.sched, s)
}
