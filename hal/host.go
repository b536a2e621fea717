package hal

import (
	"fmt"
	"io"
	"os"
	"sync"
)

type hostHAL struct {
	logger *hostLogger
	cpu    *HostCPU
	mem    *HostMemory
	t      *hostTime
}

// New returns a host HAL implementation.
//
// Guest memory has the code, heap and scratchpad (stack) regions mapped; the CPU starts
// at the beginning of the code region.
func New() HAL {
	mem := NewHostMemory()
	mem.Map(CodeVAddr, CodeSize)
	mem.Map(HeapVAddr, HeapSize)
	mem.Map(ScratchpadVAddrEnd-ScratchpadSize, ScratchpadSize)
	return &hostHAL{
		logger: &hostLogger{w: os.Stdout},
		cpu:    NewHostCPU(CodeVAddr),
		mem:    mem,
		t:      newHostTime(),
	}
}

func (h *hostHAL) Logger() Logger { return h.logger }
func (h *hostHAL) CPU() CPU       { return h.cpu }
func (h *hostHAL) Memory() Memory { return h.mem }
func (h *hostHAL) Time() Time     { return h.t }

// NewWriterLogger returns a Logger writing one line per call to w.
func NewWriterLogger(w io.Writer) Logger {
	return &hostLogger{w: w}
}

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}
