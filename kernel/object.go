package kernel

import "slices"

// HandleType tags the kind of kernel object a handle refers to.
type HandleType uint8

const (
	HandleTypeUnused HandleType = iota
	HandleTypeThread
	HandleTypeMutex
	HandleTypeSemaphore
	HandleTypeEvent
	HandleTypeTimer
	HandleTypeAddressArbiter
)

func (t HandleType) String() string {
	switch t {
	case HandleTypeThread:
		return "Thread"
	case HandleTypeMutex:
		return "Mutex"
	case HandleTypeSemaphore:
		return "Semaphore"
	case HandleTypeEvent:
		return "Event"
	case HandleTypeTimer:
		return "Timer"
	case HandleTypeAddressArbiter:
		return "Arbiter"
	default:
		return "Unused"
	}
}

// Object is anything the handle table can refer to.
type Object interface {
	HandleType() HandleType
	Name() string
}

// WaitObject is a kernel resource a thread can block on.
//
// The set of implementations is closed: Thread, Mutex, Semaphore, Event and Timer. Each
// supplies its own availability rule; the waiter list is shared code.
type WaitObject interface {
	Object

	// ShouldWait reports whether t would block acquiring the object now.
	ShouldWait(t *Thread) bool

	// Acquire claims the object for t. It must only be called when ShouldWait(t) is false.
	Acquire(t *Thread)

	AddWaitingThread(t *Thread)
	RemoveWaitingThread(t *Thread)

	// WakeupAllWaitingThreads offers the object to every waiter in subscription order.
	WakeupAllWaitingThreads()

	waiters() *waitQueue
}

// waitQueue is the subscriber list embedded in every WaitObject.
type waitQueue struct {
	threads []*Thread
}

func (q *waitQueue) waiters() *waitQueue { return q }

func (q *waitQueue) AddWaitingThread(t *Thread) {
	if !slices.Contains(q.threads, t) {
		q.threads = append(q.threads, t)
	}
}

func (q *waitQueue) RemoveWaitingThread(t *Thread) {
	if i := slices.Index(q.threads, t); i >= 0 {
		q.threads = slices.Delete(q.threads, i, i+1)
	}
}

// WaitingThreads returns a copy of the subscriber list.
func (q *waitQueue) WaitingThreads() []*Thread {
	return slices.Clone(q.threads)
}

// wakeup offers obj to a snapshot of the subscribers. Resuming a thread unsubscribes it
// from every object it waited on, so the live list shrinks while this runs.
func (q *waitQueue) wakeup(s *Scheduler, obj WaitObject) {
	for _, t := range slices.Clone(q.threads) {
		s.ReleaseWaitObject(t, obj)
	}
}
