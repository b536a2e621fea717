// Command hlemon is a kernel monitor: it boots a headless session and lets a script or an
// operator issue system calls on behalf of the running guest thread, step emulated time
// and inspect threads and memory.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"horizon/app"
	"horizon/hal"
	"horizon/internal/buildinfo"
	"horizon/internal/klog"

	tty "github.com/mattn/go-tty"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		script      = flag.String("script", "", "Read commands from a file.")
		interactive = flag.Bool("i", false, "Read commands from the controlling terminal.")
		level       = flag.String("log", "info", "Log level: error, warn, info, debug or trace.")
		clockHz     = flag.Uint64("clock", 0, "Emulated clock rate in Hz (0 = console default).")
		prio        = flag.Int("prio", 0x30, "Main thread priority.")
		keepGoing   = flag.Bool("k", false, "Keep going after a failed command.")
		version     = flag.Bool("version", false, "Print the build version and exit.")
	)
	flag.Parse()

	if *version {
		fmt.Println(buildinfo.String("hlemon"))
		return
	}

	mask, err := klog.ParseLevel(*level)
	if err != nil {
		fatalf("%v", err)
	}
	cfg := app.DefaultConfig()
	cfg.Kernel.LogLevel = mask
	cfg.MainPriority = int32(*prio)
	if *clockHz > 0 {
		cfg.Kernel.ClockRateHz = *clockHz
	}

	h := hal.New()
	sys, err := app.NewSystem(h, cfg)
	if err != nil {
		fatalf("boot: %v", err)
	}
	fmt.Printf("hlemon %s: main thread %s\n", buildinfo.Short(), sys.MainThread())

	src, err := openSource(*script, *interactive)
	if err != nil {
		fatalf("%v", err)
	}

	m := newMonitor(sys, h.Memory(), os.Stdout)
	m.keepGoing = *keepGoing

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, src, m); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, errQuit) {
		fatalf("%v", err)
	}
}

// run reads lines on one goroutine and executes them on another, so that the session is
// only ever touched by the executor.
func run(ctx context.Context, src lineSource, m *monitor) error {
	g, ctx := errgroup.WithContext(ctx)
	lines := make(chan string)
	stopped := make(chan struct{})

	g.Go(func() error {
		defer close(lines)
		for {
			line, err := src.ReadLine()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				select {
				case <-stopped:
					return nil
				default:
					return err
				}
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
	g.Go(func() error {
		// Closing the source unblocks a reader still waiting for input.
		defer func() {
			close(stopped)
			src.Close()
		}()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				if err := m.exec(line); err != nil {
					return err
				}
			}
		}
	})
	return g.Wait()
}

type lineSource interface {
	ReadLine() (string, error)
	Close() error
}

func openSource(script string, interactive bool) (lineSource, error) {
	switch {
	case script != "" && interactive:
		return nil, fmt.Errorf("-script and -i are exclusive")
	case script != "":
		f, err := os.Open(script)
		if err != nil {
			return nil, fmt.Errorf("open script: %w", err)
		}
		return &scanSource{sc: bufio.NewScanner(f), c: f}, nil
	case interactive:
		t, err := tty.Open()
		if err != nil {
			return nil, fmt.Errorf("open terminal: %w", err)
		}
		return &ttySource{t: t}, nil
	default:
		return &scanSource{sc: bufio.NewScanner(os.Stdin), c: os.Stdin}, nil
	}
}

type scanSource struct {
	sc *bufio.Scanner
	c  io.Closer
}

func (s *scanSource) ReadLine() (string, error) {
	if s.sc.Scan() {
		return s.sc.Text(), nil
	}
	if err := s.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *scanSource) Close() error { return s.c.Close() }

type ttySource struct {
	t *tty.TTY
}

func (s *ttySource) ReadLine() (string, error) {
	s.t.Output().WriteString("hlemon> ")
	line, err := s.t.ReadString()
	if err != nil {
		return "", err
	}
	s.t.Output().WriteString("\n")
	if strings.TrimSpace(line) == "\x04" {
		return "", io.EOF
	}
	return line, nil
}

func (s *ttySource) Close() error { return s.t.Close() }

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(2)
}
