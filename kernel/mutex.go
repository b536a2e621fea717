package kernel

import "slices"

// Mutex is a recursive lock owned by one thread at a time.
type Mutex struct {
	waitQueue
	k *Kernel

	name      string
	lockCount int32
	holder    *Thread
}

// CreateMutex returns a new mutex, locked by the calling thread if initialLocked.
func (k *Kernel) CreateMutex(initialLocked bool, name string) *Mutex {
	m := &Mutex{k: k, name: name}
	if initialLocked {
		if t := k.sched.GetCurrentThread(); t != nil {
			m.Acquire(t)
		}
	}
	return m
}

func (m *Mutex) HandleType() HandleType { return HandleTypeMutex }
func (m *Mutex) Name() string           { return m.name }
func (m *Mutex) LockCount() int32       { return m.lockCount }
func (m *Mutex) Holder() *Thread        { return m.holder }

func (m *Mutex) ShouldWait(t *Thread) bool {
	return m.lockCount > 0 && m.holder != t
}

func (m *Mutex) Acquire(t *Thread) {
	assertf(!m.ShouldWait(t), "mutex %q: acquired while held by %s", m.name, m.holder)
	if m.lockCount == 0 {
		m.holder = t
		t.mutexes = append(t.mutexes, m)
	}
	m.lockCount++
}

// Release drops one level of t's lock. The last level hands the mutex to its waiters.
func (m *Mutex) Release(t *Thread) ResultCode {
	if m.lockCount == 0 || m.holder != t {
		return ErrNotAuthorized
	}
	m.lockCount--
	if m.lockCount == 0 {
		m.drop()
		m.WakeupAllWaitingThreads()
	}
	return ResultSuccess
}

func (m *Mutex) drop() {
	if i := slices.Index(m.holder.mutexes, m); i >= 0 {
		m.holder.mutexes = slices.Delete(m.holder.mutexes, i, i+1)
	}
	m.holder = nil
}

func (m *Mutex) WakeupAllWaitingThreads() {
	m.wakeup(m.k.sched, m)
}

// releaseThreadMutexes fully unlocks every mutex t holds.
func releaseThreadMutexes(t *Thread) {
	for len(t.mutexes) > 0 {
		m := t.mutexes[0]
		m.lockCount = 0
		m.drop()
		m.WakeupAllWaitingThreads()
	}
}
