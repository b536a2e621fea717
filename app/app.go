package app

import (
	"errors"
	"fmt"

	"horizon/hal"
	"horizon/internal/klog"
	"horizon/kernel"
	"horizon/kernel/timing"
	"horizon/svc"
)

// ErrCallRejected is returned by System.Call when the dispatcher refused the call.
var ErrCallRejected = errors.New("system call rejected")

type Config struct {
	Kernel kernel.Config

	MainPriority  int32
	MainStackSize uint32

	// EntryPoint is where the main thread starts. Zero keeps the CPU's reset PC.
	EntryPoint uint32

	// FrameTicks is the most CPU cycles one Step may run.
	FrameTicks uint64
}

func DefaultConfig() Config {
	kc := kernel.DefaultConfig()
	return Config{
		Kernel:        kc,
		MainPriority:  0x30,
		MainStackSize: kc.DefaultStackSize,
		FrameTicks:    kc.ClockRateHz / 60,
	}
}

// System is one running emulator session: the HAL, the event queue, the kernel and the
// system call dispatcher, with the main thread already running on the application core.
type System struct {
	h   hal.HAL
	cfg Config
	log *klog.Logger

	tq   *timing.Queue
	k    *kernel.Kernel
	svc  *svc.Dispatcher
	core *kernel.Core
	main *kernel.Thread

	lastSeq uint64
	err     error
}

// New initializes a session with default config and returns its per-frame step.
func New(h hal.HAL) func() error {
	return NewWithConfig(h, DefaultConfig())
}

func NewWithConfig(h hal.HAL, cfg Config) func() error {
	s, err := NewSystem(h, cfg)
	if err != nil {
		return func() error { return err }
	}
	return s.Step
}

func NewSystem(h hal.HAL, cfg Config) (*System, error) {
	if cfg.MainStackSize == 0 {
		cfg.MainStackSize = cfg.Kernel.DefaultStackSize
	}
	if cfg.FrameTicks == 0 {
		cfg.FrameTicks = DefaultConfig().FrameTicks
	}

	log := klog.New(h.Logger(), cfg.Kernel.LogLevel)
	installPanicHandler(h)

	cpu := h.CPU()
	if cfg.EntryPoint != 0 {
		cpu.SetReg(hal.RegPC, cfg.EntryPoint)
	}

	tq := timing.New(log)
	k := kernel.New(cfg.Kernel, h.Memory(), tq, log)
	core := k.Scheduler().RegisterCore(cpu, kernel.BehaviorApp)

	s := &System{h: h, cfg: cfg, log: log.Named("App"), tq: tq, k: k, svc: svc.New(k, log), core: core}
	main, _, res := k.SetupMainThread(cfg.MainPriority, cfg.MainStackSize)
	if res != kernel.ResultSuccess {
		return nil, fmt.Errorf("setup main thread: %w", res)
	}
	s.main = main
	s.log.Infof("session up: main=%s pc=%08x prio=0x%x", main, main.EntryPoint(), cfg.MainPriority)
	return s, nil
}

func (s *System) Kernel() *kernel.Kernel      { return s.k }
func (s *System) Dispatcher() *svc.Dispatcher { return s.svc }
func (s *System) Timing() *timing.Queue       { return s.tq }
func (s *System) MainThread() *kernel.Thread  { return s.main }
func (s *System) Core() *kernel.Core          { return s.core }
func (s *System) Err() error                  { return s.err }
func (s *System) Config() Config              { return s.cfg }

// Step runs one frame. With a host time source the frame covers the host milliseconds
// elapsed since the previous step, capped at FrameTicks; otherwise it runs FrameTicks.
func (s *System) Step() error {
	budget := s.cfg.FrameTicks
	if ms, ok := s.drainHostTicks(); ok {
		budget = min(ms*s.cyclesPerMs(), s.cfg.FrameTicks)
	}
	return s.RunTicks(budget)
}

func (s *System) drainHostTicks() (uint64, bool) {
	ht := s.h.Time()
	if ht == nil || ht.Ticks() == nil {
		return 0, false
	}
	ch := ht.Ticks()
	var ms uint64
	for {
		select {
		case seq := <-ch:
			if seq > s.lastSeq {
				ms += seq - s.lastSeq
				s.lastSeq = seq
			}
		default:
			return ms, true
		}
	}
}

func (s *System) cyclesPerMs() uint64 {
	return max(s.k.Config().ClockRateHz/1000, 1)
}

// RunTicks advances the session by budget CPU cycles. The CPU runs in slices that end at
// the next timing deadline; due events fire and pending reschedules are honored between
// slices. With no thread running the CPU fast-forwards to the next deadline.
func (s *System) RunTicks(budget uint64) (err error) {
	if s.err != nil {
		return s.err
	}
	defer s.recoverPanic(&err)

	cpu := s.core.CPU()
	sched := s.k.Scheduler()
	end := cpu.Ticks() + budget
	for cpu.Ticks() < end {
		now := cpu.Ticks()
		slice := end - now
		if next, ok := s.tq.NextDeadline(); ok {
			if next <= now {
				slice = 0
			} else {
				slice = min(slice, next-now)
			}
		}

		if s.core.Current() != nil {
			cpu.Run(slice)
		} else {
			cpu.AddTicks(slice)
		}
		sched.Update(cpu.Ticks() - now)
		s.tq.Advance(cpu.Ticks())
		sched.ReschedulePending()
	}
	return nil
}

// Call issues system call id for the running thread, then honors any reschedule it made
// pending.
func (s *System) Call(id uint32) (err error) {
	if s.err != nil {
		return s.err
	}
	defer s.recoverPanic(&err)

	if !s.svc.Call(id) {
		return fmt.Errorf("svc 0x%02X (%s): %w", id, svc.Name(id), ErrCallRejected)
	}
	s.k.Scheduler().ReschedulePending()
	return nil
}

func (s *System) recoverPanic(err *error) {
	r := recover()
	if r == nil {
		return
	}
	var id uint32
	if t := s.core.Current(); t != nil {
		id = t.ID()
	}
	s.err = kernel.ReportPanic(id, r)
	s.k.Shutdown()
	*err = s.err
}

// Shutdown ends the session. The System is unusable afterwards.
func (s *System) Shutdown() {
	if s.err == nil {
		s.err = errors.New("session shut down")
	}
	s.k.Shutdown()
}
