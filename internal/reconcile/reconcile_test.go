package reconcile

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/bigtopdev/bigtop/internal/channel"
	"github.com/bigtopdev/bigtop/internal/protocol"
	"github.com/bigtopdev/bigtop/internal/transport"
	"github.com/bigtopdev/bigtop/internal/watcher"
)

// fakeDaemon answers control requests with canned per-command state that
// tests mutate between cycles.
type fakeDaemon struct {
	watchers []string
	options  map[string]map[string]any // name -> options object
	info     map[string]map[string]any // name -> stats info mapping
	statuses map[string]string         // name -> status string
}

func (d *fakeDaemon) serve(t *testing.T, conn net.Conn) {
	t.Helper()
	go func() {
		r := bufio.NewReader(conn)
		for {
			parts, err := transport.ReadMessage(r)
			if err != nil {
				return
			}
			var req protocol.Request
			if err := json.Unmarshal(parts[0], &req); err != nil {
				return
			}
			name, _ := req.Properties["name"].(string)
			reply := map[string]any{"id": req.ID, "status": "ok"}
			switch req.Command {
			case protocol.CmdList:
				reply["watchers"] = d.watchers
			case protocol.CmdOptions:
				if opts, ok := d.options[name]; ok {
					reply["options"] = opts
				} else {
					reply["status"] = "error"
					reply["reason"] = "program " + name + " not found"
				}
			case protocol.CmdStats:
				if info, ok := d.info[name]; ok {
					reply["info"] = info
				} else {
					reply["status"] = "error"
					reply["reason"] = "program " + name + " not found"
				}
			case protocol.CmdStatus:
				reply["status"] = d.statuses[name]
			}
			raw, _ := json.Marshal(reply)
			if err := transport.WriteMessage(conn, raw); err != nil {
				return
			}
		}
	}()
}

func startLoop(t *testing.T, d *fakeDaemon) (*Loop, *watcher.Model, *int) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { _ = client.Close(); _ = server.Close() })
	d.serve(t, server)

	model := watcher.NewModel()
	count := new(int)
	model.OnChange(func() { *count++ })

	mon := channel.NewMonitor(transport.NewConn(client), time.Second)
	return New(mon, model, 10*time.Millisecond), model, count
}

func TestCycleEndToEnd(t *testing.T) {
	d := &fakeDaemon{
		watchers: []string{"web", "worker"},
		options: map[string]map[string]any{
			"web":    {"singleton": true},
			"worker": {"singleton": false},
		},
		info: map[string]map[string]any{
			"web":    {"123": map[string]any{}},
			"worker": {},
		},
		statuses: map[string]string{"web": "active", "worker": "stopped"},
	}
	loop, model, count := startLoop(t, d)

	if err := loop.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	web, ok := model.Get("web")
	if !ok {
		t.Fatal("web not materialized")
	}
	if !web.Singleton {
		t.Error("web must be a singleton")
	}
	if len(web.ProcessIDs) != 1 || web.ProcessIDs[0] != 123 {
		t.Errorf("web.ProcessIDs = %v, want [123]", web.ProcessIDs)
	}
	if web.Status != "active" {
		t.Errorf("web.Status = %q, want active", web.Status)
	}

	worker, ok := model.Get("worker")
	if !ok {
		t.Fatal("worker not materialized")
	}
	if worker.Singleton || !worker.Down() || worker.Status != "stopped" {
		t.Errorf("worker = %+v", worker)
	}

	// Two materializations plus web's refresh; worker's refresh matched the
	// fresh entity (no pids, stopped) so it must not notify.
	if *count != 3 {
		t.Errorf("notifications after first cycle = %d, want 3", *count)
	}

	// Identical second cycle: diff suppression means zero notifications.
	if err := loop.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if *count != 3 {
		t.Errorf("notifications after identical cycle = %d, want 3", *count)
	}
}

func TestCycleForgetPropagation(t *testing.T) {
	d := &fakeDaemon{
		watchers: []string{"a", "b", "c"},
		options: map[string]map[string]any{
			"a": {"singleton": false, "forget": "b c"},
			"b": {"singleton": false},
			"c": {"singleton": false},
		},
		info:     map[string]map[string]any{"a": {}, "b": {}, "c": {}},
		statuses: map[string]string{"a": "stopped", "b": "stopped", "c": "stopped"},
	}
	loop, model, _ := startLoop(t, d)

	if err := loop.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, ok := model.Get("a"); !ok {
		t.Error("a missing from model")
	}
	for _, name := range []string{"b", "c"} {
		if _, ok := model.Get(name); ok {
			t.Errorf("%s materialized despite forget declaration", name)
		}
	}
}

func TestCyclePrunesVanishedWatchers(t *testing.T) {
	d := &fakeDaemon{
		watchers: []string{"web", "worker"},
		options: map[string]map[string]any{
			"web":    {"singleton": true},
			"worker": {"singleton": false},
		},
		info: map[string]map[string]any{
			"web":    {"1": map[string]any{}},
			"worker": {"2": map[string]any{}},
		},
		statuses: map[string]string{"web": "active", "worker": "active"},
	}
	loop, model, _ := startLoop(t, d)

	if err := loop.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if model.Len() != 2 {
		t.Fatalf("Len = %d, want 2", model.Len())
	}

	d.watchers = []string{"web"}
	if err := loop.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok := model.Get("worker"); ok {
		t.Error("worker still in model after vanishing from list")
	}
	if _, ok := model.Get("web"); !ok {
		t.Error("web wrongly pruned")
	}
}

func TestCycleFailedOptionsRetries(t *testing.T) {
	d := &fakeDaemon{
		watchers: []string{"web"},
		options:  map[string]map[string]any{}, // options query fails
		info:     map[string]map[string]any{"web": {}},
		statuses: map[string]string{"web": "stopped"},
	}
	loop, model, _ := startLoop(t, d)

	if err := loop.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok := model.Get("web"); ok {
		t.Error("web materialized without a successful options query")
	}

	// Options become available: the next cycle classifies.
	d.options["web"] = map[string]any{"singleton": true}
	if err := loop.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	w, ok := model.Get("web")
	if !ok || !w.Singleton {
		t.Errorf("web = %+v, want materialized singleton", w)
	}
}

func TestCycleFailedStatsKeepsStaleState(t *testing.T) {
	d := &fakeDaemon{
		watchers: []string{"web"},
		options:  map[string]map[string]any{"web": {"singleton": true}},
		info:     map[string]map[string]any{"web": {"9": map[string]any{}}},
		statuses: map[string]string{"web": "active"},
	}
	loop, model, _ := startLoop(t, d)

	if err := loop.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	// The watcher vanishes mid-round-trip: stats starts failing.
	delete(d.info, "web")
	if err := loop.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	w, _ := model.Get("web")
	if len(w.ProcessIDs) != 1 || w.ProcessIDs[0] != 9 {
		t.Errorf("ProcessIDs = %v, stale state must survive a failed stats poll", w.ProcessIDs)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	d := &fakeDaemon{
		watchers: []string{},
		options:  map[string]map[string]any{},
		info:     map[string]map[string]any{},
		statuses: map[string]string{},
	}
	loop, _, _ := startLoop(t, d)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}
