package kernel

import "horizon/internal/klog"

// Config holds the tunables of one kernel session.
type Config struct {
	// RescheduleTicks is charged to the CPU on every reschedule to model the time the
	// real kernel spends inside the system call.
	RescheduleTicks uint64

	// ClockRateHz converts nanosecond timeouts into CPU cycles.
	ClockRateHz uint64

	MinStackSize     uint32
	DefaultStackSize uint32

	// MaxHandles bounds the process handle table.
	MaxHandles int

	LogLevel klog.Level
}

// DefaultConfig matches the application core of the emulated console.
func DefaultConfig() Config {
	return Config{
		RescheduleTicks:  4000,
		ClockRateHz:      268_111_856,
		MinStackSize:     0x200,
		DefaultStackSize: 0x4000,
		MaxHandles:       4096,
		LogLevel:         klog.UpTo(klog.LevelInfo),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ClockRateHz == 0 {
		c.ClockRateHz = d.ClockRateHz
	}
	if c.MinStackSize == 0 {
		c.MinStackSize = d.MinStackSize
	}
	if c.DefaultStackSize == 0 {
		c.DefaultStackSize = d.DefaultStackSize
	}
	if c.MaxHandles <= 0 || c.MaxHandles > maxHandleSlots {
		c.MaxHandles = d.MaxHandles
	}
	return c
}
