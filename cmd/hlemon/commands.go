package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"horizon/app"
	"horizon/hal"
	"horizon/kernel"
	"horizon/svc"

	"github.com/google/shlex"
)

var errQuit = errors.New("quit")

// mapper is implemented by memories that can back new address ranges.
type mapper interface {
	Map(addr, size uint32)
}

type monitor struct {
	sys *app.System
	mem hal.Memory
	out io.Writer

	keepGoing bool
}

func newMonitor(sys *app.System, mem hal.Memory, out io.Writer) *monitor {
	return &monitor{sys: sys, mem: mem, out: out}
}

type command struct {
	usage string
	help  string
	run   func(m *monitor, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"svc":   {"svc <name|number> [r0 r1 ...]", "issue a system call for the running thread", (*monitor).svc},
		"run":   {"run <ticks>", "advance emulated time by ticks CPU cycles", (*monitor).run},
		"ps":    {"ps", "list threads", (*monitor).ps},
		"calls": {"calls [-a]", "list implemented system calls (-a: the whole table)", (*monitor).calls},
		"r32":   {"r32 <addr>", "read a guest word", (*monitor).r32},
		"w32":   {"w32 <addr> <value>", "write a guest word", (*monitor).w32},
		"map":   {"map <addr> <size>", "back a guest address range with memory", (*monitor).mapRange},
		"help":  {"help", "list commands", (*monitor).help},
		"quit":  {"quit", "leave the monitor", func(*monitor, []string) error { return errQuit }},
	}
}

// exec runs one command line. Blank lines and #-comments are ignored. Command failures
// are printed and only returned when the monitor does not keep going.
func (m *monitor) exec(line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return m.fail(fmt.Errorf("parse %q: %w", line, err))
	}
	if len(args) == 0 {
		return nil
	}
	cmd, ok := commands[strings.ToLower(args[0])]
	if !ok {
		return m.fail(fmt.Errorf("unknown command %q (try help)", args[0]))
	}
	if err := cmd.run(m, args[1:]); err != nil {
		if errors.Is(err, errQuit) {
			return err
		}
		return m.fail(fmt.Errorf("%s: %w", args[0], err))
	}
	return nil
}

func (m *monitor) fail(err error) error {
	fmt.Fprintf(m.out, "error: %v\n", err)
	if m.keepGoing && m.sys.Err() == nil {
		return nil
	}
	return err
}

// parseWord accepts any integer syntax strconv understands. Negative values are stored as
// their two's complement, so "-1" is 0xFFFFFFFF.
func parseWord(s string) (uint32, error) {
	if v, err := strconv.ParseInt(s, 0, 64); err == nil {
		if v < -1<<31 || v > 1<<32-1 {
			return 0, fmt.Errorf("%s does not fit in 32 bits", s)
		}
		return uint32(v), nil
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	return uint32(v), nil
}

func parseWords(args []string) ([]uint32, error) {
	out := make([]uint32, len(args))
	for i, a := range args {
		v, err := parseWord(a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *monitor) svc(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: " + commands["svc"].usage)
	}
	id, ok := svc.Lookup(args[0])
	if !ok {
		n, err := parseWord(args[0])
		if err != nil {
			return fmt.Errorf("unknown system call %q", args[0])
		}
		id = n
	}
	regs, err := parseWords(args[1:])
	if err != nil {
		return err
	}
	if len(regs) > 6 {
		return errors.New("at most 6 register arguments")
	}

	k := m.sys.Kernel()
	caller := k.CurrentThread()
	if caller == nil {
		return errors.New("no thread is running")
	}
	cpu := m.sys.Core().CPU()
	for i, v := range regs {
		cpu.SetReg(i, v)
	}
	if err := m.sys.Call(id); err != nil {
		return err
	}

	sched := k.Scheduler()
	r0 := kernel.ResultCode(sched.ThreadRegister(caller, 0))
	fmt.Fprintf(m.out, "%s -> %s r0=%08x (%s) r1=%08x r2=%08x r3=%08x\n",
		svc.Name(id), caller, uint32(r0), r0, sched.ThreadRegister(caller, 1),
		sched.ThreadRegister(caller, 2), sched.ThreadRegister(caller, 3))
	if st := sched.Status(caller); st != kernel.StatusRunning {
		fmt.Fprintf(m.out, "%s is %s\n", caller, st)
	}
	if cur := k.CurrentThread(); cur != caller {
		if cur == nil {
			fmt.Fprintln(m.out, "core idle")
		} else {
			fmt.Fprintf(m.out, "now running %s\n", cur)
		}
	}
	return nil
}

func (m *monitor) run(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: " + commands["run"].usage)
	}
	n, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return fmt.Errorf("bad tick count %q", args[0])
	}
	if err := m.sys.RunTicks(n); err != nil {
		return err
	}
	cur := "idle"
	if t := m.sys.Kernel().CurrentThread(); t != nil {
		cur = t.String()
	}
	fmt.Fprintf(m.out, "ticks=%d running=%s\n", m.sys.Core().CPU().Ticks(), cur)
	return nil
}

func (m *monitor) ps([]string) error {
	w := tabwriter.NewWriter(m.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCORE\tSTATUS\tPRIO\tPC\tWAIT")
	for _, ti := range m.sys.Kernel().Scheduler().Threads() {
		wait := "-"
		switch ti.Status {
		case kernel.StatusWaitArb:
			wait = fmt.Sprintf("addr %08x", ti.WaitAddress)
		case kernel.StatusWaitSync:
			wait = fmt.Sprintf("%d objects", ti.WaitObjects)
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t0x%02x\t%08x\t%s\n",
			ti.ID, ti.Name, ti.Core, ti.Status, ti.Priority, ti.PC, wait)
	}
	return w.Flush()
}

func (m *monitor) calls(args []string) error {
	all := len(args) == 1 && args[0] == "-a"
	if len(args) > 1 || len(args) == 1 && !all {
		return errors.New("usage: " + commands["calls"].usage)
	}
	w := tabwriter.NewWriter(m.out, 0, 4, 2, ' ', 0)
	for _, c := range svc.Calls() {
		switch {
		case c.Implemented:
			fmt.Fprintf(w, "0x%02X\t%s\n", c.ID, c.Name)
		case all:
			fmt.Fprintf(w, "0x%02X\t%s\t(unimplemented)\n", c.ID, c.Name)
		}
	}
	return w.Flush()
}

func (m *monitor) r32(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: " + commands["r32"].usage)
	}
	addr, err := parseWord(args[0])
	if err != nil {
		return err
	}
	if !m.mem.IsValidAddress(addr) {
		return fmt.Errorf("%08x is not mapped", addr)
	}
	v := m.mem.Read32(addr)
	fmt.Fprintf(m.out, "%08x: %08x (%d)\n", addr, v, int32(v))
	return nil
}

func (m *monitor) w32(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: " + commands["w32"].usage)
	}
	v, err := parseWords(args)
	if err != nil {
		return err
	}
	if !m.mem.IsValidAddress(v[0]) {
		return fmt.Errorf("%08x is not mapped", v[0])
	}
	m.mem.Write32(v[0], v[1])
	return nil
}

func (m *monitor) mapRange(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: " + commands["map"].usage)
	}
	v, err := parseWords(args)
	if err != nil {
		return err
	}
	mm, ok := m.mem.(mapper)
	if !ok {
		return errors.New("memory cannot be mapped at runtime")
	}
	mm.Map(v[0], v[1])
	return nil
}

func (m *monitor) help([]string) error {
	names := []string{"svc", "calls", "run", "ps", "r32", "w32", "map", "help", "quit"}
	w := tabwriter.NewWriter(m.out, 0, 4, 2, ' ', 0)
	for _, n := range names {
		fmt.Fprintf(w, "%s\t%s\n", commands[n].usage, commands[n].help)
	}
	return w.Flush()
}
