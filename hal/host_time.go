package hal

import "time"

const hostTickDur = time.Millisecond

// hostTime turns host wall-clock progress into a 1ms tick stream.
//
// It is only used to pace the headless runner; emulated time lives in CPU ticks.
type hostTime struct {
	ch  chan uint64
	seq uint64

	now  func() time.Time
	last time.Time
	acc  time.Duration
}

func newHostTime() *hostTime {
	return newHostTimeWithClock(time.Now)
}

func newHostTimeWithClock(now func() time.Time) *hostTime {
	return &hostTime{ch: make(chan uint64, 1024), now: now}
}

func (t *hostTime) Ticks() <-chan uint64 { return t.ch }

// step publishes one tick per elapsed millisecond since the previous call.
// The first call publishes minTicks so a fresh runner makes progress.
func (t *hostTime) step(minTicks uint64) {
	now := t.now()
	if t.last.IsZero() {
		t.last = now
		t.acc = 0
		t.publish(minTicks)
		return
	}

	t.acc += now.Sub(t.last)
	t.last = now

	ticks := uint64(t.acc / hostTickDur)
	if ticks == 0 {
		return
	}
	t.acc %= hostTickDur
	t.publish(ticks)
}

func (t *hostTime) publish(n uint64) {
	for i := uint64(0); i < n; i++ {
		t.seq++
		select {
		case t.ch <- t.seq:
		default:
			// Consumer is behind; it only needs the latest sequence number.
		}
	}
}
