// Package timing is the emulated-time event queue: callbacks scheduled a number of CPU
// cycles into the future, fired in deadline order as the CPU clock is advanced.
package timing

import (
	"math"

	"horizon/internal/klog"
)

// EventType identifies a registered callback.
type EventType int

// Callback runs when an event is due. cyclesLate is how far past the deadline the queue
// had advanced when it fired.
type Callback func(userdata uint64, cyclesLate int64)

type eventType struct {
	name string
	cb   Callback
}

type event struct {
	due      uint64
	typ      EventType
	userdata uint64
	next     *event
}

// Queue is a deadline-ordered list of pending events. Events with equal deadlines fire in
// the order they were scheduled.
//
// Queue is not safe for concurrent use; it belongs to the emulation thread.
type Queue struct {
	types []eventType
	first *event
	free  *event
	now   uint64
	log   *klog.Logger
}

func New(log *klog.Logger) *Queue {
	return &Queue{log: log.Named("Timing")}
}

// RegisterEvent adds a callback and returns the type used to schedule it.
func (q *Queue) RegisterEvent(name string, cb Callback) EventType {
	q.types = append(q.types, eventType{name: name, cb: cb})
	return EventType(len(q.types) - 1)
}

// Name returns the registered name of typ.
func (q *Queue) Name(typ EventType) string {
	if typ < 0 || int(typ) >= len(q.types) {
		return "unknown"
	}
	return q.types[typ].name
}

// Now returns the time the queue was last advanced to.
func (q *Queue) Now() uint64 { return q.now }

// ScheduleEvent arms typ to fire cyclesInto cycles after Now. Negative delays fire at Now.
func (q *Queue) ScheduleEvent(cyclesInto int64, typ EventType, userdata uint64) {
	if typ < 0 || int(typ) >= len(q.types) {
		q.log.Errorf("schedule of unregistered event type %d", typ)
		return
	}
	if cyclesInto < 0 {
		cyclesInto = 0
	}
	due := q.now + uint64(cyclesInto)
	if due < q.now {
		due = math.MaxUint64
	}

	ev := q.alloc()
	ev.due = due
	ev.typ = typ
	ev.userdata = userdata

	if q.first == nil || q.first.due > due {
		ev.next = q.first
		q.first = ev
		return
	}
	prev := q.first
	for prev.next != nil && prev.next.due <= due {
		prev = prev.next
	}
	ev.next = prev.next
	prev.next = ev
}

// UnscheduleEvent removes every pending (typ, userdata) event and returns how many were
// removed.
func (q *Queue) UnscheduleEvent(typ EventType, userdata uint64) int {
	removed := 0
	link := &q.first
	for *link != nil {
		ev := *link
		if ev.typ == typ && ev.userdata == userdata {
			*link = ev.next
			q.release(ev)
			removed++
			continue
		}
		link = &ev.next
	}
	return removed
}

// IsScheduled reports whether a (typ, userdata) event is pending.
func (q *Queue) IsScheduled(typ EventType, userdata uint64) bool {
	for ev := q.first; ev != nil; ev = ev.next {
		if ev.typ == typ && ev.userdata == userdata {
			return true
		}
	}
	return false
}

// NextDeadline returns the deadline of the earliest pending event.
func (q *Queue) NextDeadline() (uint64, bool) {
	if q.first == nil {
		return 0, false
	}
	return q.first.due, true
}

// Pending returns the number of pending events.
func (q *Queue) Pending() int {
	n := 0
	for ev := q.first; ev != nil; ev = ev.next {
		n++
	}
	return n
}

// Advance moves the clock to now (never backwards) and fires every event that is due,
// including events scheduled by callbacks with deadlines not after now. It returns the
// number of callbacks run.
func (q *Queue) Advance(now uint64) int {
	if now > q.now {
		q.now = now
	}
	fired := 0
	for q.first != nil && q.first.due <= q.now {
		ev := q.first
		q.first = ev.next
		typ, userdata, late := ev.typ, ev.userdata, int64(q.now-ev.due)
		q.release(ev)

		q.log.Tracef("fire %s userdata=%d late=%d", q.types[typ].name, userdata, late)
		q.types[typ].cb(userdata, late)
		fired++
	}
	return fired
}

// Clear drops every pending event. Registered types are kept.
func (q *Queue) Clear() {
	for q.first != nil {
		ev := q.first
		q.first = ev.next
		q.release(ev)
	}
}

func (q *Queue) alloc() *event {
	if ev := q.free; ev != nil {
		q.free = ev.next
		*ev = event{}
		return ev
	}
	return &event{}
}

func (q *Queue) release(ev *event) {
	*ev = event{next: q.free}
	q.free = ev
}

const nsPerSecond = 1_000_000_000

// NsToCycles converts a nanosecond delay into cycles of a clockHz clock without
// intermediate overflow. Negative delays convert to zero; results saturate at MaxInt64 so
// they can be passed straight to ScheduleEvent.
func NsToCycles(ns int64, clockHz uint64) int64 {
	if ns <= 0 {
		return 0
	}
	n := uint64(ns)
	whole := n / nsPerSecond
	frac := n % nsPerSecond
	hi := whole * clockHz
	if clockHz != 0 && hi/clockHz != whole {
		return math.MaxInt64
	}
	total := hi + frac*clockHz/nsPerSecond
	if total < hi || total > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(total)
}
