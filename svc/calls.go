package svc

import (
	"fmt"

	"horizon/kernel"
)

// maxWaitObjects bounds the handle list of WaitSynchronizationN.
const maxWaitObjects = 256

// maxDebugString bounds a NUL-terminated OutputDebugString read.
const maxDebugString = 0x400

func lookup[T kernel.Object](c *call, i int) (T, bool) {
	return kernel.Lookup[T](c.k.Handles(), c.handle(i))
}

// create stores obj in the handle table and returns the handle in R1.
func (c *call) create(obj kernel.Object) {
	h, res := c.k.Handles().Create(obj)
	if res == kernel.ResultSuccess {
		c.ret(1, uint32(h))
	}
	c.result(res)
}

func createThread(c *call) {
	prio := int32(c.arg(0))
	entry := c.arg(1)
	arg := c.arg(2)
	stackTop := c.arg(3)
	pid := kernel.ProcessorID(int32(c.arg(4)))

	name := fmt.Sprintf("unknown-%08x", entry)
	t, res := c.k.CreateThread(name, entry, arg, pid, stackTop, c.k.Config().DefaultStackSize)
	if res != kernel.ResultSuccess {
		c.result(res)
		return
	}
	h, res := c.k.Handles().Create(t)
	if res != kernel.ResultSuccess {
		c.result(res)
		return
	}
	c.s.ScheduleThread(t, prio)
	c.d.log.Tracef("CreateThread entry=%08x arg=%08x stack=%08x prio=%d pid=%s => %s",
		entry, arg, stackTop, prio, pid, t)
	c.ret(1, uint32(h))
	c.result(kernel.ResultSuccess)
}

func exitThread(c *call) {
	c.s.ExitCurrentThread()
}

func sleepThread(c *call) {
	c.k.SleepThread(c.arg64(0, 1))
}

func getThreadPriority(c *call) {
	t, ok := lookup[*kernel.Thread](c, 1)
	if !ok {
		c.result(kernel.ErrInvalidHandle)
		return
	}
	c.ret(1, uint32(c.s.GetPriority(t)))
	c.result(kernel.ResultSuccess)
}

func setThreadPriority(c *call) {
	t, ok := lookup[*kernel.Thread](c, 0)
	if !ok {
		c.result(kernel.ErrInvalidHandle)
		return
	}
	c.s.SetPriority(t, int32(c.arg(1)))
	c.result(kernel.ResultSuccess)
}

func createMutex(c *call) {
	m := c.k.CreateMutex(c.arg(1) != 0, "")
	c.create(m)
}

func releaseMutex(c *call) {
	m, ok := lookup[*kernel.Mutex](c, 0)
	if !ok {
		c.result(kernel.ErrInvalidHandle)
		return
	}
	c.result(m.Release(c.t))
}

func createSemaphore(c *call) {
	sem, res := c.k.CreateSemaphore(int32(c.arg(1)), int32(c.arg(2)), "")
	if res != kernel.ResultSuccess {
		c.result(res)
		return
	}
	c.create(sem)
}

func releaseSemaphore(c *call) {
	sem, ok := lookup[*kernel.Semaphore](c, 1)
	if !ok {
		c.result(kernel.ErrInvalidHandle)
		return
	}
	prev, res := sem.Release(int32(c.arg(2)))
	if res == kernel.ResultSuccess {
		c.ret(1, uint32(prev))
	}
	c.result(res)
}

func createEvent(c *call) {
	ev, res := c.k.CreateEvent(kernel.ResetType(c.arg(1)), "")
	if res != kernel.ResultSuccess {
		c.result(res)
		return
	}
	c.create(ev)
}

func signalEvent(c *call) {
	ev, ok := lookup[*kernel.Event](c, 0)
	if !ok {
		c.result(kernel.ErrInvalidHandle)
		return
	}
	ev.Signal()
	c.result(kernel.ResultSuccess)
}

func clearEvent(c *call) {
	ev, ok := lookup[*kernel.Event](c, 0)
	if !ok {
		c.result(kernel.ErrInvalidHandle)
		return
	}
	ev.Clear()
	c.result(kernel.ResultSuccess)
}

func createTimer(c *call) {
	tm, res := c.k.CreateTimer(kernel.ResetType(c.arg(1)), "")
	if res != kernel.ResultSuccess {
		c.result(res)
		return
	}
	c.create(tm)
}

func setTimer(c *call) {
	tm, ok := lookup[*kernel.Timer](c, 0)
	if !ok {
		c.result(kernel.ErrInvalidHandle)
		return
	}
	c.result(tm.Set(c.arg64(2, 3), c.arg64(1, 4)))
}

func cancelTimer(c *call) {
	tm, ok := lookup[*kernel.Timer](c, 0)
	if !ok {
		c.result(kernel.ErrInvalidHandle)
		return
	}
	tm.Cancel()
	c.result(kernel.ResultSuccess)
}

func clearTimer(c *call) {
	tm, ok := lookup[*kernel.Timer](c, 0)
	if !ok {
		c.result(kernel.ErrInvalidHandle)
		return
	}
	tm.Clear()
	c.result(kernel.ResultSuccess)
}

func createAddressArbiter(c *call) {
	c.create(c.k.CreateAddressArbiter(""))
}

func arbitrateAddress(c *call) {
	c.result(c.k.ArbitrateAddress(c.handle(0), kernel.ArbitrationType(c.arg(2)), c.arg(1),
		int32(c.arg(3)), c.arg64(4, 5)))
}

func closeHandle(c *call) {
	c.result(c.k.CloseHandle(c.handle(0)))
}

func waitSynchronization1(c *call) {
	c.result(c.k.WaitSynchronization1(c.handle(0), c.arg64(2, 3)))
}

func waitSynchronizationN(c *call) {
	ptr := c.arg(1)
	count := int32(c.arg(2))
	waitAll := c.arg(3) != 0
	ns := c.arg64(0, 4)

	if ptr == 0 {
		c.result(kernel.ErrInvalidPointer)
		return
	}
	if count < 0 || count > maxWaitObjects {
		c.result(kernel.ErrOutOfRange)
		return
	}
	mem := c.k.Memory()
	handles := make([]kernel.Handle, count)
	for i := range handles {
		handles[i] = kernel.Handle(mem.Read32(ptr + uint32(i)*4))
	}

	out, res := c.k.WaitSynchronizationN(handles, waitAll, ns)
	if res == kernel.ResultInvalid {
		return
	}
	c.ret(1, uint32(out))
	c.result(res)
}

func duplicateHandle(c *call) {
	h, res := c.k.DuplicateHandle(c.handle(1))
	if res == kernel.ResultSuccess {
		c.ret(1, uint32(h))
	}
	c.result(res)
}

func getSystemTick(c *call) {
	ticks := c.s.CoreOf(c.t).CPU().Ticks()
	c.ret(0, uint32(ticks))
	c.ret(1, uint32(ticks>>32))
}

func getThreadID(c *call) {
	t, ok := lookup[*kernel.Thread](c, 1)
	if !ok {
		c.result(kernel.ErrInvalidHandle)
		return
	}
	c.ret(1, t.ID())
	c.result(kernel.ResultSuccess)
}

func outputDebugString(c *call) {
	ptr, n := c.arg(0), c.arg(1)
	mem := c.k.Memory()
	if n == 0 {
		for n < maxDebugString && mem.Read8(ptr+n) != 0 {
			n++
		}
	}
	n = min(n, maxDebugString)
	b := make([]byte, n)
	for i := range b {
		b[i] = mem.Read8(ptr + uint32(i))
	}
	c.d.debug.Infof("%s", b)
}
