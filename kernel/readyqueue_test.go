package kernel

import (
	"slices"
	"testing"
)

// priorityOf returns the bucket holding st, or -1.
func (q *readyQueue) priorityOf(st *ThreadState) int32 {
	for p := range q.buckets {
		if slices.Contains(q.buckets[p], st) {
			return int32(p)
		}
	}
	return -1
}

func TestReadyQueueOrder(t *testing.T) {
	var q readyQueue
	a, b, c, d := &ThreadState{}, &ThreadState{}, &ThreadState{}, &ThreadState{}

	q.pushBack(20, a)
	q.pushBack(20, b)
	q.pushBack(5, c)
	q.pushFront(20, d)

	if q.len() != 4 {
		t.Fatalf("len() = %d, want 4", q.len())
	}
	if got := q.popFirstBetter(4); got != nil {
		t.Fatalf("popFirstBetter(4) = %p, want nil", got)
	}
	for i, want := range []*ThreadState{c, d, a, b} {
		if got := q.popFirst(); got != want {
			t.Fatalf("popFirst() #%d = %p, want %p", i, got, want)
		}
	}
	if q.popFirst() != nil || q.nonEmpty != 0 {
		t.Fatal("queue not empty")
	}
}

func TestReadyQueueRemove(t *testing.T) {
	var q readyQueue
	a, b := &ThreadState{}, &ThreadState{}
	q.pushBack(63, a)
	q.pushBack(63, b)

	if !q.remove(63, a) {
		t.Fatal("remove(a) = false")
	}
	if q.remove(63, a) {
		t.Fatal("remove(a) twice = true")
	}
	if q.priorityOf(b) != 63 || q.priorityOf(a) != -1 {
		t.Fatalf("priorityOf() b=%d a=%d", q.priorityOf(b), q.priorityOf(a))
	}
	if got := q.popFirstBetter(63); got != b {
		t.Fatalf("popFirstBetter(63) = %p, want b", got)
	}
	if q.nonEmpty != 0 {
		t.Fatalf("nonEmpty = %#x, want 0", q.nonEmpty)
	}
}
