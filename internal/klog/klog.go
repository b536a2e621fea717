// Package klog is a mask-levelled line logger on top of hal.Logger.
package klog

import (
	"fmt"
	"strings"

	"horizon/hal"
)

// Level is a bit in a log mask.
type Level uint8

const (
	LevelError Level = 1 << iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

// Nothing disables all output.
const Nothing Level = 0

// UpTo returns a mask enabling l and every more severe level.
func UpTo(l Level) Level {
	if l == 0 {
		return Nothing
	}
	return l | (l - 1)
}

// ParseLevel maps a level name to the mask enabling it and everything more severe.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none":
		return Nothing, nil
	case "error":
		return UpTo(LevelError), nil
	case "warn", "warning":
		return UpTo(LevelWarn), nil
	case "info", "":
		return UpTo(LevelInfo), nil
	case "debug":
		return UpTo(LevelDebug), nil
	case "trace":
		return UpTo(LevelTrace), nil
	default:
		return Nothing, fmt.Errorf("klog: unknown level %q", s)
	}
}

func (l Level) tag() string {
	switch {
	case l&LevelError != 0:
		return "ERROR"
	case l&LevelWarn != 0:
		return " WARN"
	case l&LevelInfo != 0:
		return " INFO"
	case l&LevelDebug != 0:
		return "DEBUG"
	case l&LevelTrace != 0:
		return "TRACE"
	default:
		return "     "
	}
}

// Logger formats lines as "[Name] LEVEL: message" and writes them to a hal.Logger.
//
// A nil *Logger discards everything.
type Logger struct {
	out  hal.Logger
	mask Level
	name string
}

// New returns a logger writing to out for every level set in mask.
func New(out hal.Logger, mask Level) *Logger {
	return &Logger{out: out, mask: mask}
}

// Named returns a logger sharing out and mask that tags lines with name.
func (l *Logger) Named(name string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{out: l.out, mask: l.mask, name: name}
}

// Enabled reports whether lines at lvl are written.
func (l *Logger) Enabled(lvl Level) bool {
	return l != nil && l.out != nil && l.mask&lvl != 0
}

func (l *Logger) logf(lvl Level, format string, args ...any) {
	if !l.Enabled(lvl) {
		return
	}
	var b strings.Builder
	if l.name != "" {
		b.WriteByte('[')
		b.WriteString(l.name)
		b.WriteString("] ")
	}
	b.WriteString(lvl.tag())
	b.WriteString(": ")
	fmt.Fprintf(&b, format, args...)
	l.out.WriteLineString(strings.TrimRight(b.String(), "\n"))
}

func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *Logger) Tracef(format string, args ...any) { l.logf(LevelTrace, format, args...) }
