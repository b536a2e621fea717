package kernel

import (
	"fmt"

	"horizon/hal"
)

// Thread priorities. Lower values run first.
const (
	PriorityHighest int32 = 0
	PriorityDefault int32 = 16
	PriorityLow     int32 = 31
	PriorityLowest  int32 = 63
)

// ProcessorID selects the core a thread runs on.
type ProcessorID int32

const (
	ProcessorApp ProcessorID = -2 // application core
	ProcessorSys ProcessorID = -3 // system core
	ProcessorAll ProcessorID = -4 // either core
)

func (p ProcessorID) String() string {
	switch p {
	case ProcessorApp:
		return "app"
	case ProcessorSys:
		return "sys"
	case ProcessorAll:
		return "all"
	default:
		return fmt.Sprintf("cpu%d", int32(p))
	}
}

// ThreadStatus is the scheduling state of a thread.
type ThreadStatus uint8

const (
	StatusRunning ThreadStatus = iota + 1
	StatusReady
	StatusWaitSleep
	StatusWaitSync
	StatusWaitArb
	StatusDormant
	StatusDead
)

func (s ThreadStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusReady:
		return "ready"
	case StatusWaitSleep:
		return "wait-sleep"
	case StatusWaitSync:
		return "wait-sync"
	case StatusWaitArb:
		return "wait-arb"
	case StatusDormant:
		return "dormant"
	case StatusDead:
		return "dead"
	default:
		return "unknown"
	}
}

// IsWaiting reports whether s is one of the blocked states.
func (s ThreadStatus) IsWaiting() bool {
	return s == StatusWaitSleep || s == StatusWaitSync || s == StatusWaitArb
}

// Thread is a guest execution context. It is also a WaitObject: waiting on a thread
// blocks until it exits.
//
// Scheduling bookkeeping lives in the Scheduler's ThreadState, not here.
type Thread struct {
	waitQueue
	k *Kernel

	id          uint32
	name        string
	entryPoint  uint32
	stackTop    uint32
	stackSize   uint32
	processorID ProcessorID

	// Context is the register file while the thread is not running.
	Context hal.ThreadContext

	exited  bool
	mutexes []*Mutex
}

// CreateThread validates and builds a thread. It is not scheduled until passed to
// Scheduler.ScheduleThread.
func (k *Kernel) CreateThread(name string, entryPoint, arg uint32, processorID ProcessorID,
	stackTop, stackSize uint32) (*Thread, ResultCode) {
	if stackSize < k.cfg.MinStackSize {
		k.log.Errorf("(name=%s): invalid stack_size=0x%08X", name, stackSize)
		return nil, ErrInvalidSize
	}
	if !k.mem.IsValidAddress(entryPoint) {
		k.log.Errorf("(name=%s): invalid entry %08x", name, entryPoint)
		return nil, ErrInvalidAddress
	}

	k.nextThreadID++
	t := &Thread{
		k:           k,
		id:          k.nextThreadID,
		name:        name,
		entryPoint:  entryPoint,
		stackTop:    stackTop,
		stackSize:   stackSize,
		processorID: processorID,
	}
	t.reset(arg)
	return t, ResultSuccess
}

func (t *Thread) reset(arg uint32) {
	t.Context = hal.ThreadContext{}
	t.Context.Regs[0] = arg
	t.Context.PC = t.entryPoint
	t.Context.SP = t.stackTop
	t.Context.CPSR = 0x1F // user mode
	t.Context.Mode = 8
}

func (t *Thread) ID() uint32                { return t.id }
func (t *Thread) Name() string              { return t.name }
func (t *Thread) HandleType() HandleType    { return HandleTypeThread }
func (t *Thread) EntryPoint() uint32        { return t.entryPoint }
func (t *Thread) StackTop() uint32          { return t.stackTop }
func (t *Thread) StackSize() uint32         { return t.stackSize }
func (t *Thread) ProcessorID() ProcessorID  { return t.processorID }
func (t *Thread) Exited() bool              { return t.exited }
func (t *Thread) HeldMutexes() []*Mutex     { return append([]*Mutex(nil), t.mutexes...) }
func (t *Thread) String() string            { return fmt.Sprintf("%s(%d)", t.name, t.id) }
func (t *Thread) ShouldWait(_ *Thread) bool { return !t.exited }

func (t *Thread) Acquire(_ *Thread) {
	assertf(t.exited, "thread %s: acquired while still running", t)
}

func (t *Thread) WakeupAllWaitingThreads() {
	t.wakeup(t.k.sched, t)
}

// SetWaitSynchronizationResult sets the return register seen when the thread resumes.
func (t *Thread) SetWaitSynchronizationResult(r ResultCode) {
	t.Context.Regs[0] = uint32(r)
}

// SetWaitSynchronizationOutput sets the output register of WaitSynchronizationN.
func (t *Thread) SetWaitSynchronizationOutput(v int32) {
	t.Context.Regs[1] = uint32(v)
}
