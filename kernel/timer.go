package kernel

import "horizon/kernel/timing"

// Timer is an Event signaled by the timing queue after a delay, optionally periodic.
type Timer struct {
	waitQueue
	k  *Kernel
	id uint32

	name      string
	resetType ResetType
	signaled  bool
	closed    bool

	initialDelay int64
	intervalNs   int64
}

// CreateTimer returns a disarmed timer.
func (k *Kernel) CreateTimer(rt ResetType, name string) (*Timer, ResultCode) {
	if !rt.valid() {
		k.log.Errorf("CreateTimer: unknown reset type %d", rt)
		return nil, ErrInvalidEnumValue
	}
	k.nextTimerID++
	tm := &Timer{k: k, id: k.nextTimerID, name: name, resetType: rt}
	k.timers[tm.id] = tm
	return tm, ResultSuccess
}

func (tm *Timer) HandleType() HandleType    { return HandleTypeTimer }
func (tm *Timer) Name() string              { return tm.name }
func (tm *Timer) ResetType() ResetType      { return tm.resetType }
func (tm *Timer) Signaled() bool            { return tm.signaled }
func (tm *Timer) InitialDelay() int64       { return tm.initialDelay }
func (tm *Timer) Interval() int64           { return tm.intervalNs }
func (tm *Timer) ShouldWait(_ *Thread) bool { return !tm.signaled }

func (tm *Timer) Acquire(t *Thread) {
	assertf(tm.signaled, "timer %q: acquired by %s while unsignaled", tm.name, t)
	if tm.resetType == ResetOneShot {
		tm.signaled = false
	}
}

// Set arms the timer to fire initialNs from now and then every intervalNs (0 = once). An
// initial delay of zero signals immediately.
func (tm *Timer) Set(initialNs, intervalNs int64) ResultCode {
	if initialNs < 0 || intervalNs < 0 {
		return ErrOutOfRange
	}
	tm.Cancel()
	tm.initialDelay = initialNs
	tm.intervalNs = intervalNs
	if initialNs == 0 {
		tm.signal(0)
		return ResultSuccess
	}
	tm.k.timing.ScheduleEvent(timing.NsToCycles(initialNs, tm.k.cfg.ClockRateHz), tm.k.timerEvent, uint64(tm.id))
	return ResultSuccess
}

// Cancel disarms the timer. Its signaled state is kept.
func (tm *Timer) Cancel() {
	tm.k.timing.UnscheduleEvent(tm.k.timerEvent, uint64(tm.id))
}

func (tm *Timer) Clear() { tm.signaled = false }

func (tm *Timer) signal(cyclesLate int64) {
	tm.signaled = true
	tm.WakeupAllWaitingThreads()
	if tm.resetType == ResetPulse {
		tm.signaled = false
	}
	if _, live := tm.k.timers[tm.id]; live && tm.intervalNs > 0 {
		next := timing.NsToCycles(tm.intervalNs, tm.k.cfg.ClockRateHz) - cyclesLate
		tm.k.timing.ScheduleEvent(max(next, 1), tm.k.timerEvent, uint64(tm.id))
	}
}

func (tm *Timer) WakeupAllWaitingThreads() {
	tm.wakeup(tm.k.sched, tm)
}

func (k *Kernel) timerCallback(userdata uint64, cyclesLate int64) {
	tm, ok := k.timers[uint32(userdata)]
	if !ok {
		k.log.Errorf("timer callback for unknown timer %d", userdata)
		return
	}
	k.log.Tracef("timer %q fired", tm.name)
	tm.signal(cyclesLate)
	k.releaseTimer(tm)
}
