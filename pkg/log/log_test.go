package log

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func newTestLogger(t *testing.T, name string) (*Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	SetOutput(buf)
	return ForService(name), buf
}

func TestLineFormat(t *testing.T) {
	SetGlobalDebug(false)
	Now = func() time.Time { return time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC) }
	defer func() { Now = time.Now }()

	l, buf := newTestLogger(t, "format_test")
	l.Infof("submitted %s", "abc")

	want := "2024/03/01 10:20:30.000000 INFO [format_test] submitted abc\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestForServiceMemoizes(t *testing.T) {
	if ForService("memo") != ForService("memo") {
		t.Fatal("expected the same logger for the same name")
	}
	if ForService("").Name() != "aurorax" {
		t.Fatalf("empty name should map to the default logger, got %q", ForService("").Name())
	}
}

func TestDebugPerService(t *testing.T) {
	SetGlobalDebug(false)

	const name = "debug_service_specific"
	DisableDebugFor(name)
	l, buf := newTestLogger(t, name)

	l.Debugf("should not appear")
	if strings.Contains(buf.String(), "should not appear") {
		t.Fatalf("debug message appeared while debug disabled")
	}

	EnableDebugFor(name)
	defer DisableDebugFor(name)
	l.Debugf("visible now")
	if !strings.Contains(buf.String(), "DEBUG [debug_service_specific] visible now") {
		t.Fatalf("expected debug message after enabling per-service debug; got: %q", buf.String())
	}
}

func TestDebugGlobal(t *testing.T) {
	SetGlobalDebug(false)

	const name = "debug_service_global"
	l, buf := newTestLogger(t, name)

	l.Debugf("hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("debug message appeared while global debug disabled")
	}

	SetGlobalDebug(true)
	defer SetGlobalDebug(false)

	l.Debugf("global visible")
	if !strings.Contains(buf.String(), "global visible") {
		t.Fatalf("expected debug message after enabling global debug; got: %q", buf.String())
	}
}

func TestLevels(t *testing.T) {
	l, buf := newTestLogger(t, "levels")
	l.Warnf("careful")
	l.Errorf("broken")

	out := buf.String()
	for _, want := range []string{"WARN [levels] careful", "ERROR [levels] broken"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}
