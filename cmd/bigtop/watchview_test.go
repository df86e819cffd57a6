package main

import (
	"strings"
	"testing"

	"github.com/bigtopdev/bigtop/internal/ui"
	"github.com/bigtopdev/bigtop/internal/watcher"
)

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "-"},
		{-1, "-"},
		{0.5, "50.0%"},
		{0.125, "12.5%"},
		{1, "100.0%"},
	}
	for _, tt := range tests {
		if got := formatPercent(tt.in); got != tt.want {
			t.Errorf("formatPercent(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWatcherState(t *testing.T) {
	active := watcher.Watcher{Name: "web", ProcessIDs: []int{1}}
	down := watcher.Watcher{Name: "worker"}

	if got := watcherState(active, false); got != ui.StateActive {
		t.Errorf("active watcher state = %v", got)
	}
	if got := watcherState(down, false); got != ui.StateStopped {
		t.Errorf("down watcher state = %v", got)
	}
	if got := watcherState(active, true); got != ui.StatePending {
		t.Errorf("pending watcher state = %v", got)
	}
}

func TestWatcherKind(t *testing.T) {
	if got := watcherKind(watcher.Watcher{Singleton: true}); got != "singleton" {
		t.Errorf("singleton kind = %q", got)
	}
	if got := watcherKind(watcher.Watcher{}); got != "pool" {
		t.Errorf("pool kind = %q", got)
	}
}

func TestRenderWatch(t *testing.T) {
	model := watcher.NewModel()
	model.Materialize("web", true)
	model.ApplyPoll("web", []int{123}, "active")

	m := newWatchModel(model, nil, make(chan struct{}, 1))
	out := renderWatch(m)
	if !strings.Contains(out, "web") {
		t.Error("render missing watcher name")
	}
	if !strings.Contains(out, "singleton") {
		t.Error("render missing kind")
	}
	if !strings.Contains(out, "q quit") {
		t.Error("render missing help line")
	}
}

func TestRenderWatchEmpty(t *testing.T) {
	m := newWatchModel(watcher.NewModel(), nil, make(chan struct{}, 1))
	out := renderWatch(m)
	if !strings.Contains(out, "waiting for daemon") {
		t.Error("render missing empty placeholder")
	}
}

func TestRenderWatcherDetail(t *testing.T) {
	w := watcher.Watcher{Name: "web", Singleton: true, ProcessIDs: []int{123}, Status: "active"}
	out := renderWatcherDetail(w)
	if !strings.Contains(out, "active") {
		t.Error("detail missing status")
	}
	if !strings.Contains(out, "123") {
		t.Error("detail missing pid")
	}
}
