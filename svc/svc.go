// Package svc is the system call layer: it decodes guest registers, invokes the kernel and
// writes results back to the calling thread.
package svc

import (
	"strings"

	"horizon/internal/klog"
	"horizon/kernel"
)

type handler func(c *call)

type entry struct {
	fn   handler
	name string
}

var table = [...]entry{
	0x00: {nil, "Unknown"},
	0x01: {nil, "ControlMemory"},
	0x02: {nil, "QueryMemory"},
	0x03: {nil, "ExitProcess"},
	0x04: {nil, "GetProcessAffinityMask"},
	0x05: {nil, "SetProcessAffinityMask"},
	0x06: {nil, "GetProcessIdealProcessor"},
	0x07: {nil, "SetProcessIdealProcessor"},
	0x08: {createThread, "CreateThread"},
	0x09: {exitThread, "ExitThread"},
	0x0A: {sleepThread, "SleepThread"},
	0x0B: {getThreadPriority, "GetThreadPriority"},
	0x0C: {setThreadPriority, "SetThreadPriority"},
	0x0D: {nil, "GetThreadAffinityMask"},
	0x0E: {nil, "SetThreadAffinityMask"},
	0x0F: {nil, "GetThreadIdealProcessor"},
	0x10: {nil, "SetThreadIdealProcessor"},
	0x11: {nil, "GetCurrentProcessorNumber"},
	0x12: {nil, "Run"},
	0x13: {createMutex, "CreateMutex"},
	0x14: {releaseMutex, "ReleaseMutex"},
	0x15: {createSemaphore, "CreateSemaphore"},
	0x16: {releaseSemaphore, "ReleaseSemaphore"},
	0x17: {createEvent, "CreateEvent"},
	0x18: {signalEvent, "SignalEvent"},
	0x19: {clearEvent, "ClearEvent"},
	0x1A: {createTimer, "CreateTimer"},
	0x1B: {setTimer, "SetTimer"},
	0x1C: {cancelTimer, "CancelTimer"},
	0x1D: {clearTimer, "ClearTimer"},
	0x1E: {nil, "CreateMemoryBlock"},
	0x1F: {nil, "MapMemoryBlock"},
	0x20: {nil, "UnmapMemoryBlock"},
	0x21: {createAddressArbiter, "CreateAddressArbiter"},
	0x22: {arbitrateAddress, "ArbitrateAddress"},
	0x23: {closeHandle, "CloseHandle"},
	0x24: {waitSynchronization1, "WaitSynchronization1"},
	0x25: {waitSynchronizationN, "WaitSynchronizationN"},
	0x26: {nil, "SignalAndWait"},
	0x27: {duplicateHandle, "DuplicateHandle"},
	0x28: {getSystemTick, "GetSystemTick"},
	0x29: {nil, "GetHandleInfo"},
	0x2A: {nil, "GetSystemInfo"},
	0x2B: {nil, "GetProcessInfo"},
	0x2C: {nil, "GetThreadInfo"},
	0x2D: {nil, "ConnectToPort"},
	0x2E: {nil, "SendSyncRequest1"},
	0x2F: {nil, "SendSyncRequest2"},
	0x30: {nil, "SendSyncRequest3"},
	0x31: {nil, "SendSyncRequest4"},
	0x32: {nil, "SendSyncRequest"},
	0x33: {nil, "OpenProcess"},
	0x34: {nil, "OpenThread"},
	0x35: {nil, "GetProcessId"},
	0x36: {nil, "GetProcessIdOfThread"},
	0x37: {getThreadID, "GetThreadId"},
	0x38: {nil, "GetResourceLimit"},
	0x39: {nil, "GetResourceLimitLimitValues"},
	0x3A: {nil, "GetResourceLimitCurrentValues"},
	0x3B: {nil, "GetThreadContext"},
	0x3C: {nil, "Break"},
	0x3D: {outputDebugString, "OutputDebugString"},
	0x3E: {nil, "ControlPerformanceCounter"},
}

// Info describes one entry of the call table.
type Info struct {
	ID          uint32
	Name        string
	Implemented bool
}

// Calls lists the call table in number order.
func Calls() []Info {
	out := make([]Info, 0, len(table))
	for id, e := range table {
		out = append(out, Info{ID: uint32(id), Name: e.name, Implemented: e.fn != nil})
	}
	return out
}

// Name returns the name of call id.
func Name(id uint32) string {
	if int(id) < len(table) {
		return table[id].name
	}
	return "Unknown"
}

// Lookup finds a call number by name, ignoring case.
func Lookup(name string) (uint32, bool) {
	for id, e := range table {
		if id != 0 && strings.EqualFold(e.name, name) {
			return uint32(id), true
		}
	}
	return 0, false
}

// Dispatcher runs system calls against one kernel session.
type Dispatcher struct {
	k     *kernel.Kernel
	log   *klog.Logger
	debug *klog.Logger
}

func New(k *kernel.Kernel, log *klog.Logger) *Dispatcher {
	return &Dispatcher{
		k:     k,
		log:   log.Named("Kernel_SVC"),
		debug: log.Named("Debug_Emulated"),
	}
}

// Call runs system call id on behalf of the current thread. It reports false, without
// touching any state, when the number is unknown or not implemented or no thread is running.
func (d *Dispatcher) Call(id uint32) bool {
	if int(id) >= len(table) || table[id].fn == nil {
		d.log.Errorf("unimplemented svc 0x%02X (%s)", id, Name(id))
		return false
	}
	e := table[id]
	t := d.k.CurrentThread()
	if t == nil {
		d.log.Errorf("svc %s with no running thread", e.name)
		return false
	}

	c := &call{d: d, k: d.k, s: d.k.Scheduler(), t: t}
	for i := range c.args {
		c.args[i] = c.s.ThreadRegister(t, i)
	}
	d.log.Tracef("%s thread=%s args=%08x", e.name, t, c.args)
	e.fn(c)
	return true
}

// call is one system call in flight. Results always go to the thread that issued it, even
// if another thread runs by the time they are written.
type call struct {
	d    *Dispatcher
	k    *kernel.Kernel
	s    *kernel.Scheduler
	t    *kernel.Thread
	args [6]uint32
}

func (c *call) arg(i int) uint32 { return c.args[i] }

func (c *call) arg64(lo, hi int) int64 {
	return int64(uint64(c.args[lo]) | uint64(c.args[hi])<<32)
}

func (c *call) ret(reg int, v uint32) {
	c.s.SetThreadRegister(c.t, reg, v)
}

// result writes r to R0 unless the call is deferred to the resume path.
func (c *call) result(r kernel.ResultCode) {
	if r != kernel.ResultInvalid {
		c.ret(0, uint32(r))
	}
}

func (c *call) handle(i int) kernel.Handle { return kernel.Handle(c.args[i]) }
