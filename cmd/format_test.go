package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/rubiojr/aurorax/pkg/progress"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	if got := formatNumber(1234567); got != "1,234,567" {
		t.Errorf("formatNumber = %q", got)
	}
	if got := formatNumber(12); got != "12" {
		t.Errorf("formatNumber = %q", got)
	}
}

func TestFormatMillis(t *testing.T) {
	if got := formatMillis(250); got != "250ms" {
		t.Errorf("formatMillis(250) = %q", got)
	}
	if got := formatMillis(1500); got != "1.5s" {
		t.Errorf("formatMillis(1500) = %q", got)
	}
}

func TestFormatTime(t *testing.T) {
	if got := formatTime(time.Time{}); got != "-" {
		t.Errorf("zero time = %q", got)
	}
	if got := formatTime(time.Now().Add(-30 * time.Second)); got != "just now" {
		t.Errorf("recent = %q", got)
	}
	if got := formatTime(time.Now().Add(-3 * time.Hour)); got != "3 hours ago" {
		t.Errorf("hours = %q", got)
	}
	old := time.Date(2001, 2, 3, 4, 5, 0, 0, time.UTC)
	if got := formatTime(old); got != "Feb 3, 2001" {
		t.Errorf("old = %q", got)
	}
}

func TestFormatEvent(t *testing.T) {
	ev := progress.Event{
		Time:      time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		Domain:    "ephemeris",
		RequestID: "abc",
		Phase:     progress.PhaseWaiting,
		Attempt:   3,
		Message:   "in progress",
	}
	want := "10:00:00.000 [ephemeris abc] waiting #3: in progress"
	if got := formatEvent(ev); got != want {
		t.Errorf("formatEvent = %q, want %q", got, want)
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"A", "LONGER"}, [][]string{{"x", "y"}, {"wide-cell", "z"}})
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[2], "wide-cell  z") {
		t.Errorf("columns not aligned:\n%s", out)
	}
	if strings.Index(lines[1], "y") != strings.Index(lines[2], "z") {
		t.Errorf("second column misaligned:\n%s", out)
	}
}

func TestDriverFor(t *testing.T) {
	tests := map[string]string{
		"conjunctions":  "conjunctions",
		"conjunction":   "conjunctions",
		"ephemeris":     "ephemeris",
		"data-products": "data_products",
		"data_products": "data_products",
		"Data_Product":  "data_products",
	}
	for in, want := range tests {
		d, err := driverFor(in)
		if err != nil {
			t.Errorf("driverFor(%q): %v", in, err)
			continue
		}
		if d.Name() != want {
			t.Errorf("driverFor(%q).Name() = %q, want %q", in, d.Name(), want)
		}
	}
	if _, err := driverFor("weather"); err == nil {
		t.Error("expected error for unknown domain")
	}
}
