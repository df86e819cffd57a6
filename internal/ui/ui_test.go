package ui

import (
	"strings"
	"testing"
)

func TestDot(t *testing.T) {
	tests := []struct {
		state DotState
		want  string
	}{
		{StateActive, "●"},
		{StateStopped, "●"},
		{StatePending, "●"},
	}
	for _, tt := range tests {
		got := Dot(tt.state)
		if !strings.Contains(got, tt.want) {
			t.Errorf("Dot(%v) = %q, want to contain %q", tt.state, got, tt.want)
		}
	}
}

func TestSection(t *testing.T) {
	out := Section("Watchers", "hello", 40)
	if !strings.Contains(out, "Watchers") {
		t.Error("Section missing title")
	}
	if !strings.Contains(out, "hello") {
		t.Error("Section missing content")
	}
	// Rounded border characters
	if !strings.Contains(out, "╭") {
		t.Error("Section missing rounded border")
	}
}

func TestRow(t *testing.T) {
	got := Row("NAME", "web", "STATUS", "active", 60)
	if !strings.Contains(got, "NAME:") || !strings.Contains(got, "web") {
		t.Error("Row missing left pair")
	}
	if !strings.Contains(got, "STATUS:") || !strings.Contains(got, "active") {
		t.Error("Row missing right pair")
	}
}

func TestRowSinglePair(t *testing.T) {
	got := Row("NAME", "web", "", "", 60)
	if !strings.Contains(got, "NAME:") {
		t.Error("Row missing key")
	}
}

func TestTable(t *testing.T) {
	out := Table(
		[]string{"NAME", "STATUS"},
		[][]string{{"web", "active"}, {"worker", "stopped"}},
	)
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if !strings.Contains(lines[0], "NAME") {
		t.Error("missing header")
	}
	if !strings.Contains(lines[2], "worker") {
		t.Error("missing row")
	}
}

func TestWarnError(t *testing.T) {
	if !strings.Contains(Warn("careful"), "careful") {
		t.Error("Warn missing message")
	}
	if !strings.Contains(Error("broken"), "broken") {
		t.Error("Error missing message")
	}
}
