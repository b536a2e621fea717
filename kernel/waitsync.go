package kernel

// caller returns the thread issuing a system call.
func (k *Kernel) caller() *Thread {
	t := k.sched.GetCurrentThread()
	assertf(t != nil, "system call with no running thread")
	return t
}

// acquireAll claims every object in objs for t, each distinct object once.
func acquireAll(t *Thread, objs []WaitObject) {
	for i, o := range objs {
		seen := false
		for _, p := range objs[:i] {
			if p == o {
				seen = true
				break
			}
		}
		if !seen {
			o.Acquire(t)
		}
	}
}

// WaitSynchronization1 acquires the object behind h or blocks the caller on it for up to ns
// nanoseconds (-1 waits forever).
//
// A blocked caller gets ResultInvalid: the result register is written when it resumes.
func (k *Kernel) WaitSynchronization1(h Handle, ns int64) ResultCode {
	obj := k.handles.GetWaitObject(h)
	if obj == nil {
		return ErrInvalidHandle
	}
	t := k.caller()
	k.log.Tracef("WaitSynchronization1 handle=0x%08X(%s:%s) ns=%d", uint32(h), obj.HandleType(), obj.Name(), ns)

	if obj.ShouldWait(t) {
		k.sched.WaitCurrentThreadSynchronization([]WaitObject{obj}, false, false)
		k.sched.WakeThreadAfterDelay(t, ns)
		return ResultInvalid
	}
	obj.Acquire(t)
	return ResultSuccess
}

// WaitSynchronizationN waits on several objects at once: for all of them if waitAll, else
// for the first available. It returns the output value (0 for wait-all, the index of the
// acquired object for wait-any) along with the result.
//
// Any invalid handle fails the call before anything is touched. With no handles, wait-all
// succeeds at once and wait-any blocks until the timeout.
func (k *Kernel) WaitSynchronizationN(handles []Handle, waitAll bool, ns int64) (int32, ResultCode) {
	objs := make([]WaitObject, 0, len(handles))
	for _, h := range handles {
		obj := k.handles.GetWaitObject(h)
		if obj == nil {
			return 0, ErrInvalidHandle
		}
		objs = append(objs, obj)
	}
	t := k.caller()
	k.log.Tracef("WaitSynchronizationN count=%d wait_all=%t ns=%d", len(objs), waitAll, ns)

	block := !waitAll
	selected := -1
	for i, o := range objs {
		if o.ShouldWait(t) {
			if waitAll {
				block = true
			}
		} else if !waitAll && selected < 0 {
			block = false
			selected = i
		}
	}

	if block {
		k.sched.WaitCurrentThreadSynchronization(objs, true, waitAll)
		k.sched.WakeThreadAfterDelay(t, ns)
		return 0, ResultInvalid
	}

	if waitAll {
		acquireAll(t, objs)
		return 0, ResultSuccess
	}
	objs[selected].Acquire(t)
	return int32(selected), ResultSuccess
}
