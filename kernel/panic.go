package kernel

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// AssertionError is the panic value raised when a host-side kernel invariant is broken.
// It indicates an emulator defect, never a guest one.
type AssertionError struct {
	Msg string
}

func (e *AssertionError) Error() string { return "kernel assertion failed: " + e.Msg }

func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(&AssertionError{Msg: fmt.Sprintf(format, args...)})
	}
}

// PanicInfo contains details about a recovered kernel panic.
type PanicInfo struct {
	ThreadID uint32
	Value    any
	Stack    []byte
}

var (
	panicActive atomic.Bool
	panicOnce   sync.Once

	panicHandler atomic.Value // func(PanicInfo)
)

// InPanicMode reports whether a kernel panic has been reported.
func InPanicMode() bool {
	return panicActive.Load()
}

// SetPanicHandler installs a process-wide panic handler.
//
// The handler is invoked at most once (on the first panic). It must not panic.
func SetPanicHandler(fn func(PanicInfo)) {
	panicHandler.Store(fn)
}

// ReportPanic records a value recovered while the kernel was running on behalf of
// threadID and returns it as an error for the session loop to stop on.
func ReportPanic(threadID uint32, v any) error {
	triggerPanic(PanicInfo{ThreadID: threadID, Value: v})
	if err, ok := v.(error); ok {
		return fmt.Errorf("kernel panic on thread %d: %w", threadID, err)
	}
	return fmt.Errorf("kernel panic on thread %d: %v", threadID, v)
}

func triggerPanic(info PanicInfo) {
	panicOnce.Do(func() {
		panicActive.Store(true)
		info.Stack = captureStack()
		if v := panicHandler.Load(); v != nil {
			if fn, ok := v.(func(PanicInfo)); ok && fn != nil {
				fn(info)
			}
		}
	})
}
