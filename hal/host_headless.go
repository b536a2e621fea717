package hal

import (
	"context"
	"fmt"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Hz         int
	Ticks      uint64
	StepBudget int
}

// RunHeadless drives the emulator session at cfg.Hz frames per second.
//
// newApp receives the host HAL and returns the per-frame step function. Each frame the
// step runs StepBudget times. RunHeadless returns when ctx is done, a step fails, or
// cfg.Ticks frames have elapsed (0 = run forever).
func RunHeadless(ctx context.Context, newApp func(HAL) func() error, cfg HeadlessConfig) error {
	if cfg.Hz <= 0 {
		cfg.Hz = 60
	}
	if cfg.StepBudget <= 0 {
		cfg.StepBudget = 1
	}

	h := New().(*hostHAL)
	step := newApp(h)
	if step == nil {
		return fmt.Errorf("headless: no step function")
	}

	d := time.Second / time.Duration(cfg.Hz)
	if d <= 0 {
		return fmt.Errorf("invalid headless hz: %d", cfg.Hz)
	}
	t := time.NewTicker(d)
	defer t.Stop()

	var frame uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			h.t.step(uint64(d / hostTickDur))
			for i := 0; i < cfg.StepBudget; i++ {
				if err := step(); err != nil {
					return fmt.Errorf("frame %d: %w", frame, err)
				}
			}
			frame++
			if cfg.Ticks > 0 && frame >= cfg.Ticks {
				return nil
			}
		}
	}
}
