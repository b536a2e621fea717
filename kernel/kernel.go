// Package kernel is the high-level emulation of the console kernel's scheduling and
// synchronization layer.
//
// A Kernel is one emulation session: it owns the thread registry, the cores, the handle
// table and every synchronization object. It is driven by a single host goroutine; guest
// threads block by leaving the RUNNING state, never by stalling the host.
package kernel

import (
	"horizon/hal"
	"horizon/internal/klog"
	"horizon/kernel/timing"
)

// Kernel is the session context.
type Kernel struct {
	cfg    Config
	log    *klog.Logger
	mem    hal.Memory
	timing *timing.Queue

	sched   *Scheduler
	handles *HandleTable

	nextThreadID uint32

	timerEvent  timing.EventType
	timers      map[uint32]*Timer
	nextTimerID uint32
}

// New starts a session over guest memory mem, scheduling timeouts on tq. Cores must be
// registered through Scheduler().RegisterCore before threads are scheduled.
func New(cfg Config, mem hal.Memory, tq *timing.Queue, log *klog.Logger) *Kernel {
	cfg = cfg.withDefaults()
	log = log.Named("Kernel")
	k := &Kernel{
		cfg:    cfg,
		log:    log,
		mem:    mem,
		timing: tq,
		timers: make(map[uint32]*Timer),
	}
	k.sched = newScheduler(cfg, tq, log)
	k.handles = newHandleTable(cfg.MaxHandles, k.sched.GetCurrentThread)
	k.timerEvent = tq.RegisterEvent("TimerCallback", k.timerCallback)
	return k
}

func (k *Kernel) Config() Config         { return k.cfg }
func (k *Kernel) Scheduler() *Scheduler  { return k.sched }
func (k *Kernel) Handles() *HandleTable  { return k.handles }
func (k *Kernel) Memory() hal.Memory     { return k.mem }
func (k *Kernel) Timing() *timing.Queue  { return k.timing }
func (k *Kernel) Logger() *klog.Logger   { return k.log }
func (k *Kernel) CurrentThread() *Thread { return k.sched.GetCurrentThread() }

// Shutdown tears the session down: pending timeouts are cancelled, every handle is closed
// and the registry is emptied.
func (k *Kernel) Shutdown() {
	for id := range k.timers {
		k.timing.UnscheduleEvent(k.timerEvent, uint64(id))
	}
	k.timers = make(map[uint32]*Timer)
	k.sched.shutdown()
	k.handles.Clear()
	k.log.Debugf("shutdown")
}

// SetupMainThread creates the first guest thread at the CPU's current PC with its stack at
// the top of the scratchpad, schedules it and switches to it immediately.
func (k *Kernel) SetupMainThread(prio int32, stackSize uint32) (*Thread, Handle, ResultCode) {
	core := k.sched.CurrentCore()
	assertf(core != nil, "setup main thread: no core registered")
	if stackSize == 0 {
		stackSize = k.cfg.DefaultStackSize
	}

	t, res := k.CreateThread("main", core.cpu.GetPC(), 0, ProcessorApp, hal.ScratchpadVAddrEnd, stackSize)
	if res != ResultSuccess {
		return nil, InvalidHandle, res
	}
	h, res := k.handles.Create(t)
	if res != ResultSuccess {
		return nil, InvalidHandle, res
	}
	k.sched.ScheduleThread(t, prio)
	k.sched.SwitchTo(t)
	core.pending = false
	k.log.Infof("main thread %s at pc=%08x priority %d", t, t.entryPoint, k.sched.GetPriority(t))
	return t, h, ResultSuccess
}

// SleepThread puts the calling thread to sleep for ns nanoseconds. A zero sleep only
// yields to threads of equal or better priority.
func (k *Kernel) SleepThread(ns int64) {
	t := k.sched.GetCurrentThread()
	if t == nil {
		return
	}
	if ns == 0 {
		k.sched.Reschedule()
		return
	}
	k.sched.WaitCurrentThreadSleep()
	k.sched.WakeThreadAfterDelay(t, ns)
}

// CloseHandle releases h. A timer reachable through no other handle is cancelled once no
// thread waits on it either.
func (k *Kernel) CloseHandle(h Handle) ResultCode {
	obj := k.handles.Get(h)
	if res := k.handles.Close(h); res != ResultSuccess {
		return res
	}
	if tm, ok := obj.(*Timer); ok && !k.handles.Holds(tm) {
		tm.closed = true
		k.releaseTimer(tm)
	}
	return ResultSuccess
}

// releaseTimer disarms and forgets a timer whose last handle is closed once no thread
// waits on it.
func (k *Kernel) releaseTimer(tm *Timer) {
	if !tm.closed || len(tm.threads) > 0 {
		return
	}
	tm.Cancel()
	delete(k.timers, tm.id)
}

// DuplicateHandle returns another handle to the object h refers to.
func (k *Kernel) DuplicateHandle(h Handle) (Handle, ResultCode) {
	return k.handles.Duplicate(h)
}
