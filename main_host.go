package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"horizon/app"
	"horizon/hal"
	"horizon/internal/buildinfo"
	"horizon/internal/klog"
)

func main() {
	var cfg hal.HeadlessConfig
	var budget uint64
	var level string
	var version bool
	flag.IntVar(&cfg.Hz, "hz", 60, "Frame rate.")
	flag.Uint64Var(&cfg.Ticks, "ticks", 0, "Stop after N frames (0 = run forever).")
	flag.Uint64Var(&budget, "budget", 0, "Most CPU cycles per frame (0 = one frame of the emulated clock).")
	flag.StringVar(&level, "log", "info", "Log level: error, warn, info, debug or trace.")
	flag.BoolVar(&version, "version", false, "Print the build version and exit.")
	flag.Parse()

	if version {
		fmt.Println(buildinfo.String("horizon"))
		return
	}

	mask, err := klog.ParseLevel(level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	acfg := app.DefaultConfig()
	acfg.Kernel.LogLevel = mask
	if budget > 0 {
		acfg.FrameTicks = budget
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := hal.RunHeadless(ctx, func(h hal.HAL) func() error {
		return app.NewWithConfig(h, acfg)
	}, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
