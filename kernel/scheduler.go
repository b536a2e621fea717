package kernel

import (
	"horizon/hal"
	"horizon/internal/klog"
	"horizon/kernel/timing"
)

// Behavior selects the per-tick bookkeeping of a Core.
type Behavior uint8

const (
	BehaviorApp Behavior = iota
	BehaviorSys
)

func (b Behavior) String() string {
	if b == BehaviorSys {
		return "sys"
	}
	return "app"
}

// Core is one virtual processor: a ready queue, the running thread and the CPU engine the
// thread's registers live in while it runs.
type Core struct {
	id       int
	cpu      hal.CPU
	behavior Behavior

	ready   readyQueue
	current *ThreadState

	// pending is set when a thread became ready outside the running thread's own call path.
	pending bool

	// sliceTicks is the time consumed by the system core since the last reschedule.
	sliceTicks uint64
}

func (c *Core) ID() int            { return c.id }
func (c *Core) CPU() hal.CPU       { return c.cpu }
func (c *Core) Behavior() Behavior { return c.behavior }
func (c *Core) ReadyCount() int    { return c.ready.len() }
func (c *Core) SliceTicks() uint64 { return c.sliceTicks }

// Current returns the running thread, or nil while the core idles.
func (c *Core) Current() *Thread {
	if c.current == nil {
		return nil
	}
	return c.current.thread
}

// ThreadState is the scheduler's bookkeeping for one thread.
type ThreadState struct {
	thread *Thread
	core   *Core

	status          ThreadStatus
	priority        int32
	initialPriority int32

	waitAddress   uint32
	waitObjects   []WaitObject
	waitAll       bool
	waitSetOutput bool
}

// ThreadInfo is a snapshot of a registered thread.
type ThreadInfo struct {
	ID          uint32
	Name        string
	Core        int
	Status      ThreadStatus
	Priority    int32
	PC          uint32
	WaitAddress uint32
	WaitObjects int
	Exited      bool
}

// Scheduler owns the cores, the thread registry and every thread's scheduling state. It is
// the only code that changes a thread's status.
//
// Scheduler is not safe for concurrent use; one host goroutine drives the whole session.
type Scheduler struct {
	cfg    Config
	log    *klog.Logger
	timing *timing.Queue

	cores   []*Core
	current *Core

	// threads is in registration order; arbitration scans depend on it.
	threads []*ThreadState
	states  map[*Thread]*ThreadState
	byID    map[uint32]*ThreadState

	wakeupEvent timing.EventType
}

func newScheduler(cfg Config, tq *timing.Queue, log *klog.Logger) *Scheduler {
	s := &Scheduler{
		cfg:    cfg,
		log:    log,
		timing: tq,
		states: make(map[*Thread]*ThreadState),
		byID:   make(map[uint32]*ThreadState),
	}
	s.wakeupEvent = tq.RegisterEvent("ThreadWakeupCallback", s.threadWakeup)
	return s
}

// RegisterCore adds a virtual processor backed by cpu. The first core registered becomes
// the current one.
func (s *Scheduler) RegisterCore(cpu hal.CPU, behavior Behavior) *Core {
	c := &Core{id: len(s.cores), cpu: cpu, behavior: behavior}
	s.cores = append(s.cores, c)
	if s.current == nil {
		s.current = c
	}
	return c
}

func (s *Scheduler) Cores() []*Core { return s.cores }

// SetCurrentCore selects the core whose running thread issues the following calls.
func (s *Scheduler) SetCurrentCore(c *Core) { s.current = c }

func (s *Scheduler) CurrentCore() *Core { return s.current }

// GetCurrentThread returns the thread running on the current core, or nil if it idles.
func (s *Scheduler) GetCurrentThread() *Thread {
	if s.current == nil {
		return nil
	}
	return s.current.Current()
}

// IsScheduled reports whether t is in the registry.
func (s *Scheduler) IsScheduled(t *Thread) bool {
	_, ok := s.states[t]
	return ok
}

func (s *Scheduler) state(t *Thread) *ThreadState {
	assertf(t != nil, "scheduler: nil thread")
	st, ok := s.states[t]
	assertf(ok, "scheduler: thread %s is not scheduled", t)
	return st
}

func (s *Scheduler) running() *ThreadState {
	assertf(s.current != nil, "scheduler: no core registered")
	st := s.current.current
	assertf(st != nil && st.status == StatusRunning, "scheduler: no running thread on core %d", s.current.id)
	return st
}

func (s *Scheduler) clampPriority(t *Thread, prio int32) int32 {
	if prio < PriorityHighest || prio > PriorityLowest {
		c := min(max(prio, PriorityHighest), PriorityLowest)
		s.log.Warnf("thread %s: priority %d out of range, clamped to %d", t, prio, c)
		return c
	}
	return prio
}

func (s *Scheduler) coreFor(id ProcessorID) *Core {
	assertf(len(s.cores) > 0, "scheduler: no core registered")
	if id >= 0 && int(id) < len(s.cores) {
		return s.cores[id]
	}
	if id == ProcessorSys {
		for _, c := range s.cores {
			if c.behavior == BehaviorSys {
				return c
			}
		}
	}
	for _, c := range s.cores {
		if c.behavior == BehaviorApp {
			return c
		}
	}
	return s.cores[0]
}

// ScheduleThread registers t and makes it ready at the back of its priority bucket.
func (s *Scheduler) ScheduleThread(t *Thread, prio int32) {
	assertf(t != nil, "scheduler: nil thread")
	_, dup := s.states[t]
	assertf(!dup, "scheduler: thread %s scheduled twice", t)

	prio = s.clampPriority(t, prio)
	st := &ThreadState{
		thread:          t,
		core:            s.coreFor(t.processorID),
		status:          StatusDormant,
		priority:        prio,
		initialPriority: prio,
	}
	s.threads = append(s.threads, st)
	s.states[t] = st
	s.byID[t.id] = st

	s.makeReady(st)
	s.log.Debugf("thread %s scheduled on core %d at priority %d", t, st.core.id, prio)
}

func (s *Scheduler) makeReady(st *ThreadState) {
	st.status = StatusReady
	st.core.ready.pushBack(st.priority, st)
	st.core.pending = true
	st.core.cpu.PrepareReschedule()
}

// WaitCurrentThreadSleep blocks the running thread until it is resumed or its timeout fires.
func (s *Scheduler) WaitCurrentThreadSleep() {
	st := s.running()
	st.status = StatusWaitSleep
	s.RescheduleCore(st.core)
}

// WaitCurrentThreadSynchronization blocks the running thread on objs. The thread is
// subscribed to every object; waitAll and setOutput decide how a wake-up resolves.
func (s *Scheduler) WaitCurrentThreadSynchronization(objs []WaitObject, setOutput, waitAll bool) {
	st := s.running()
	st.waitObjects = append(st.waitObjects[:0], objs...)
	st.waitAll = waitAll
	st.waitSetOutput = setOutput
	for _, o := range objs {
		o.AddWaitingThread(st.thread)
	}
	st.status = StatusWaitSync
	s.RescheduleCore(st.core)
}

// WaitCurrentThreadArbitrateAddress blocks the running thread on a guest address.
func (s *Scheduler) WaitCurrentThreadArbitrateAddress(addr uint32) {
	st := s.running()
	st.waitAddress = addr
	st.status = StatusWaitArb
	s.RescheduleCore(st.core)
}

// ResumeFromWait makes a waiting thread ready at the back of its bucket. Its pending
// timeout is cancelled and it is unsubscribed from every object it waited on. Resuming a
// thread that is already ready does nothing.
func (s *Scheduler) ResumeFromWait(t *Thread) {
	st := s.state(t)
	switch {
	case st.status.IsWaiting():
	case st.status == StatusReady:
		s.log.Debugf("thread %s: resume of ready thread ignored", t)
		return
	default:
		assertf(false, "thread %s: resume from status %s", t, st.status)
	}

	s.timing.UnscheduleEvent(s.wakeupEvent, uint64(t.id))
	for _, o := range st.waitObjects {
		o.RemoveWaitingThread(t)
		if tm, ok := o.(*Timer); ok {
			tm.k.releaseTimer(tm)
		}
	}
	st.waitObjects = nil
	st.waitAll = false
	st.waitSetOutput = false
	st.waitAddress = 0

	s.makeReady(st)
}

// ReleaseWaitObject resolves a wake-up offered by obj to a thread waiting on it.
func (s *Scheduler) ReleaseWaitObject(t *Thread, obj WaitObject) {
	st := s.state(t)
	if st.status != StatusWaitSync {
		return
	}

	if st.waitAll {
		for _, o := range st.waitObjects {
			if o.ShouldWait(t) {
				return
			}
		}
		acquireAll(t, st.waitObjects)
		t.SetWaitSynchronizationResult(ResultSuccess)
		if st.waitSetOutput {
			t.SetWaitSynchronizationOutput(0)
		}
		s.ResumeFromWait(t)
		return
	}

	if obj.ShouldWait(t) {
		return
	}
	index := int32(-1)
	for i, o := range st.waitObjects {
		if o == obj {
			index = int32(i)
			break
		}
	}
	obj.Acquire(t)
	t.SetWaitSynchronizationResult(ResultSuccess)
	if st.waitSetOutput {
		t.SetWaitSynchronizationOutput(index)
	}
	s.ResumeFromWait(t)
}

// WakeThreadAfterDelay arms a timeout that resumes t after ns nanoseconds. ns == -1 waits
// forever.
func (s *Scheduler) WakeThreadAfterDelay(t *Thread, ns int64) {
	if ns == -1 {
		return
	}
	s.timing.UnscheduleEvent(s.wakeupEvent, uint64(t.id))
	s.timing.ScheduleEvent(timing.NsToCycles(ns, s.cfg.ClockRateHz), s.wakeupEvent, uint64(t.id))
}

func (s *Scheduler) threadWakeup(userdata uint64, cyclesLate int64) {
	st, ok := s.byID[uint32(userdata)]
	if !ok {
		s.log.Errorf("wakeup for unknown thread id %d", userdata)
		return
	}
	t := st.thread
	if !st.status.IsWaiting() {
		s.log.Debugf("thread %s: stale wakeup in status %s", t, st.status)
		return
	}
	s.log.Tracef("thread %s: timed out (%d cycles late)", t, cyclesLate)

	if st.status == StatusWaitSync || st.status == StatusWaitArb {
		t.SetWaitSynchronizationResult(ResultTimeout)
	}
	if st.status == StatusWaitSync && st.waitSetOutput {
		t.SetWaitSynchronizationOutput(-1)
	}
	s.ResumeFromWait(t)
}

// ArbitrateHighestPriorityThread resumes the best-priority thread waiting on addr. Among
// equal priorities the first registered wins. It returns nil if nobody waits there.
func (s *Scheduler) ArbitrateHighestPriorityThread(addr uint32) *Thread {
	var best *ThreadState
	for _, st := range s.threads {
		if st.status != StatusWaitArb || st.waitAddress != addr {
			continue
		}
		if best == nil || st.priority < best.priority {
			best = st
		}
	}
	if best == nil {
		return nil
	}
	s.ResumeFromWait(best.thread)
	return best.thread
}

// ArbitrateAllThreads resumes every thread waiting on addr in registration order and
// returns how many were resumed.
func (s *Scheduler) ArbitrateAllThreads(addr uint32) int {
	n := 0
	for _, st := range s.threads {
		if st.status == StatusWaitArb && st.waitAddress == addr {
			s.ResumeFromWait(st.thread)
			n++
		}
	}
	return n
}

// SetPriority changes t's priority, moving it between buckets if it is ready.
func (s *Scheduler) SetPriority(t *Thread, prio int32) {
	st := s.state(t)
	prio = s.clampPriority(t, prio)
	if st.priority == prio {
		return
	}
	if st.status == StatusReady {
		removed := st.core.ready.remove(st.priority, st)
		assertf(removed, "thread %s: ready but not in bucket %d", t, st.priority)
		st.priority = prio
		st.core.ready.pushBack(prio, st)
		st.core.pending = true
		st.core.cpu.PrepareReschedule()
		return
	}
	st.priority = prio
	if st.status == StatusRunning && st.core.ready.nonEmpty != 0 {
		st.core.pending = true
		st.core.cpu.PrepareReschedule()
	}
}

func (s *Scheduler) GetPriority(t *Thread) int32 {
	return s.state(t).priority
}

// InitialPriority returns the priority t was scheduled with.
func (s *Scheduler) InitialPriority(t *Thread) int32 {
	return s.state(t).initialPriority
}

// Status returns t's scheduling state.
func (s *Scheduler) Status(t *Thread) ThreadStatus {
	return s.state(t).status
}

// WaitAddress returns the address t is arbitrating on.
func (s *Scheduler) WaitAddress(t *Thread) (uint32, bool) {
	st := s.state(t)
	return st.waitAddress, st.status == StatusWaitArb
}

// WaitObjects returns the objects t is blocked on.
func (s *Scheduler) WaitObjects(t *Thread) []WaitObject {
	return append([]WaitObject(nil), s.state(t).waitObjects...)
}

// CoreOf returns the core t is assigned to.
func (s *Scheduler) CoreOf(t *Thread) *Core {
	return s.state(t).core
}

// ExitCurrentThread terminates the running thread: its mutexes are released, its timeout
// cancelled and threads waiting for it woken before the core reschedules.
func (s *Scheduler) ExitCurrentThread() {
	st := s.running()
	t := st.thread

	releaseThreadMutexes(t)
	s.timing.UnscheduleEvent(s.wakeupEvent, uint64(t.id))
	st.status = StatusDead
	t.exited = true
	s.log.Debugf("thread %s exited", t)

	t.WakeupAllWaitingThreads()
	s.RescheduleCore(st.core)
}

// Reschedule reschedules the current core.
func (s *Scheduler) Reschedule() {
	assertf(s.current != nil, "scheduler: no core registered")
	s.RescheduleCore(s.current)
}

// RescheduleCore charges the system call overhead to c's CPU and switches to the next
// thread. A running thread is only preempted by a ready thread of equal or better
// priority.
func (s *Scheduler) RescheduleCore(c *Core) {
	c.cpu.AddTicks(s.cfg.RescheduleTicks)
	c.cpu.PrepareReschedule()
	c.pending = false
	c.sliceTicks = 0

	cur := c.current
	var next *ThreadState
	if cur != nil && cur.status == StatusRunning {
		next = c.ready.popFirstBetter(cur.priority)
		if next == nil {
			return
		}
	} else {
		next = c.ready.popFirst()
	}
	s.switchContext(c, next)
}

func (s *Scheduler) switchContext(c *Core, next *ThreadState) {
	if prev := c.current; prev != nil {
		c.cpu.SaveContext(&prev.thread.Context)
		if prev.status == StatusRunning {
			prev.status = StatusReady
			c.ready.pushFront(prev.priority, prev)
		}
	}

	if next == nil {
		c.current = nil
		s.log.Tracef("core %d: idle", c.id)
		return
	}
	assertf(next.status == StatusReady, "thread %s: switched to from status %s", next.thread, next.status)
	next.status = StatusRunning
	c.current = next
	c.cpu.LoadContext(&next.thread.Context)
	s.log.Tracef("core %d: switch to %s pc=%08x", c.id, next.thread, next.thread.Context.PC)
}

// SwitchTo immediately makes t the running thread of its core, preempting whatever ran.
func (s *Scheduler) SwitchTo(t *Thread) {
	st := s.state(t)
	assertf(st.status == StatusReady, "thread %s: switch to from status %s", t, st.status)
	st.core.ready.remove(st.priority, st)
	s.switchContext(st.core, st)
}

// ReschedulePending reschedules every core whose pending flag is set and reports whether
// any was.
func (s *Scheduler) ReschedulePending() bool {
	did := false
	for _, c := range s.cores {
		if c.pending {
			s.RescheduleCore(c)
			did = true
		}
	}
	return did
}

// Update is the per-slice hook. The system core accounts the time its thread consumed.
func (s *Scheduler) Update(elapsed uint64) {
	for _, c := range s.cores {
		if c.behavior == BehaviorSys && c.current != nil {
			c.sliceTicks += elapsed
		}
	}
}

// SetThreadRegister writes register reg of t: into the CPU if t is running, otherwise into
// its saved context.
func (s *Scheduler) SetThreadRegister(t *Thread, reg int, v uint32) {
	st := s.state(t)
	if st.status == StatusRunning && st.core.current == st {
		st.core.cpu.SetReg(reg, v)
		return
	}
	switch {
	case reg >= 0 && reg < len(t.Context.Regs):
		t.Context.Regs[reg] = v
	case reg == hal.RegSP:
		t.Context.SP = v
	case reg == hal.RegLR:
		t.Context.LR = v
	case reg == hal.RegPC:
		t.Context.PC = v
	}
}

// ThreadRegister reads register reg of t, live or saved.
func (s *Scheduler) ThreadRegister(t *Thread, reg int) uint32 {
	st := s.state(t)
	if st.status == StatusRunning && st.core.current == st {
		return st.core.cpu.Reg(reg)
	}
	switch {
	case reg >= 0 && reg < len(t.Context.Regs):
		return t.Context.Regs[reg]
	case reg == hal.RegSP:
		return t.Context.SP
	case reg == hal.RegLR:
		return t.Context.LR
	case reg == hal.RegPC:
		return t.Context.PC
	}
	return 0
}

// Threads returns a snapshot of the registry in registration order.
func (s *Scheduler) Threads() []ThreadInfo {
	out := make([]ThreadInfo, 0, len(s.threads))
	for _, st := range s.threads {
		pc := st.thread.Context.PC
		if st.status == StatusRunning && st.core.current == st {
			pc = st.core.cpu.GetPC()
		}
		out = append(out, ThreadInfo{
			ID:          st.thread.id,
			Name:        st.thread.name,
			Core:        st.core.id,
			Status:      st.status,
			Priority:    st.priority,
			PC:          pc,
			WaitAddress: st.waitAddress,
			WaitObjects: len(st.waitObjects),
			Exited:      st.thread.exited,
		})
	}
	return out
}

// Lookup returns the registered thread with the given id.
func (s *Scheduler) Lookup(id uint32) (*Thread, bool) {
	st, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return st.thread, true
}

func (s *Scheduler) shutdown() {
	for _, st := range s.threads {
		s.timing.UnscheduleEvent(s.wakeupEvent, uint64(st.thread.id))
		for _, o := range st.waitObjects {
			o.RemoveWaitingThread(st.thread)
		}
	}
	s.threads = nil
	s.states = make(map[*Thread]*ThreadState)
	s.byID = make(map[uint32]*ThreadState)
	for _, c := range s.cores {
		c.current = nil
		c.ready = readyQueue{}
		c.pending = false
	}
}
