package kernel

import "fmt"

// ResetType decides when a signaled Event or Timer becomes unsignaled again.
type ResetType uint32

const (
	// ResetOneShot clears the signal when one waiter acquires it.
	ResetOneShot ResetType = iota
	// ResetSticky stays signaled until cleared.
	ResetSticky
	// ResetPulse wakes the current waiters and clears at once.
	ResetPulse
)

func (r ResetType) String() string {
	switch r {
	case ResetOneShot:
		return "oneshot"
	case ResetSticky:
		return "sticky"
	case ResetPulse:
		return "pulse"
	default:
		return fmt.Sprintf("reset(%d)", uint32(r))
	}
}

func (r ResetType) valid() bool { return r <= ResetPulse }

type Event struct {
	waitQueue
	k *Kernel

	name      string
	resetType ResetType
	signaled  bool
}

// CreateEvent returns an unsignaled event.
func (k *Kernel) CreateEvent(rt ResetType, name string) (*Event, ResultCode) {
	if !rt.valid() {
		k.log.Errorf("CreateEvent: unknown reset type %d", rt)
		return nil, ErrInvalidEnumValue
	}
	return &Event{k: k, name: name, resetType: rt}, ResultSuccess
}

func (e *Event) HandleType() HandleType    { return HandleTypeEvent }
func (e *Event) Name() string              { return e.name }
func (e *Event) ResetType() ResetType      { return e.resetType }
func (e *Event) Signaled() bool            { return e.signaled }
func (e *Event) ShouldWait(_ *Thread) bool { return !e.signaled }

func (e *Event) Acquire(t *Thread) {
	assertf(e.signaled, "event %q: acquired by %s while unsignaled", e.name, t)
	if e.resetType == ResetOneShot {
		e.signaled = false
	}
}

// Signal sets the event and wakes its waiters.
func (e *Event) Signal() {
	e.signaled = true
	e.WakeupAllWaitingThreads()
	if e.resetType == ResetPulse {
		e.signaled = false
	}
}

func (e *Event) Clear() { e.signaled = false }

func (e *Event) WakeupAllWaitingThreads() {
	e.wakeup(e.k.sched, e)
}
