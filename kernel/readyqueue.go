package kernel

import (
	"math/bits"
	"slices"
)

const numPriorities = int(PriorityLowest) + 1

// readyQueue holds the runnable threads of one core: a FIFO bucket per priority plus a
// bitmap of non-empty buckets so the best bucket is found in O(1).
type readyQueue struct {
	buckets  [numPriorities][]*ThreadState
	nonEmpty uint64
}

func (q *readyQueue) pushBack(prio int32, st *ThreadState) {
	q.buckets[prio] = append(q.buckets[prio], st)
	q.nonEmpty |= 1 << uint(prio)
}

func (q *readyQueue) pushFront(prio int32, st *ThreadState) {
	q.buckets[prio] = slices.Insert(q.buckets[prio], 0, st)
	q.nonEmpty |= 1 << uint(prio)
}

// remove drops st from the prio bucket. It reports whether st was there.
func (q *readyQueue) remove(prio int32, st *ThreadState) bool {
	b := q.buckets[prio]
	i := slices.Index(b, st)
	if i < 0 {
		return false
	}
	q.buckets[prio] = slices.Delete(b, i, i+1)
	if len(q.buckets[prio]) == 0 {
		q.nonEmpty &^= 1 << uint(prio)
	}
	return true
}

func (q *readyQueue) popFirst() *ThreadState {
	if q.nonEmpty == 0 {
		return nil
	}
	return q.popBucket(int32(bits.TrailingZeros64(q.nonEmpty)))
}

// popFirstBetter pops the first thread whose priority is numerically <= prio.
func (q *readyQueue) popFirstBetter(prio int32) *ThreadState {
	if q.nonEmpty == 0 {
		return nil
	}
	best := int32(bits.TrailingZeros64(q.nonEmpty))
	if best > prio {
		return nil
	}
	return q.popBucket(best)
}

func (q *readyQueue) popBucket(prio int32) *ThreadState {
	b := q.buckets[prio]
	st := b[0]
	q.buckets[prio] = slices.Delete(b, 0, 1)
	if len(q.buckets[prio]) == 0 {
		q.nonEmpty &^= 1 << uint(prio)
	}
	return st
}

func (q *readyQueue) len() int {
	n := 0
	for p := range q.buckets {
		n += len(q.buckets[p])
	}
	return n
}
