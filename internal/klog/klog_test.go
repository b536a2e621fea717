package klog

import (
	"strings"
	"testing"
)

type lines []string

func (l *lines) WriteLineString(s string) { *l = append(*l, s) }
func (l *lines) WriteLineBytes(b []byte)  { *l = append(*l, string(b)) }

func TestLoggerMask(t *testing.T) {
	var out lines
	log := New(&out, UpTo(LevelWarn)).Named("Kernel")

	log.Errorf("bad %d", 1)
	log.Warnf("careful")
	log.Debugf("hidden")

	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2 (%q)", len(out), out)
	}
	if out[0] != "[Kernel] ERROR: bad 1" {
		t.Fatalf("out[0] = %q", out[0])
	}
	if !strings.HasSuffix(out[1], "WARN: careful") {
		t.Fatalf("out[1] = %q", out[1])
	}
}

func TestNilLoggerDiscards(t *testing.T) {
	var log *Logger
	log.Errorf("nothing %s", "here")
	if log.Named("x") != nil {
		t.Fatal("Named on nil logger should stay nil")
	}
	if log.Enabled(LevelError) {
		t.Fatal("nil logger should not be enabled")
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	if err != nil {
		t.Fatalf("ParseLevel: %v", err)
	}
	if lvl&LevelTrace != 0 || lvl&LevelError == 0 || lvl&LevelDebug == 0 {
		t.Fatalf("ParseLevel(debug) = %b", lvl)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
