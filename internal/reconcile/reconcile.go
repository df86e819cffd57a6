// Package reconcile drives the periodic discovery loop: it finds watchers,
// classifies them once, and keeps their polled state current in the model.
// It is the sole caller of the monitoring channel, which is what makes that
// channel's single-outstanding-request rule hold by construction.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bigtopdev/bigtop/internal/channel"
	"github.com/bigtopdev/bigtop/internal/metrics"
	"github.com/bigtopdev/bigtop/internal/protocol"
	"github.com/bigtopdev/bigtop/internal/watcher"
)

// DefaultInterval is the sleep between discovery cycles.
const DefaultInterval = 500 * time.Millisecond

// Loop owns one monitoring channel and one model.
type Loop struct {
	mon      *channel.Monitor
	model    *watcher.Model
	interval time.Duration

	// classified remembers which watchers already had their options
	// fetched; options are fixed at discovery time.
	classified map[string]bool
}

// New builds a loop. interval <= 0 selects DefaultInterval.
func New(mon *channel.Monitor, model *watcher.Model, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{
		mon:        mon,
		model:      model,
		interval:   interval,
		classified: make(map[string]bool),
	}
}

// Run drives cycles until ctx is cancelled. A timed-out cycle is logged and
// retried on the next interval; monitoring is best-effort and self-healing.
// Desync and transport errors abort the loop — correlation state is gone and
// the whole client should shut down rather than hang.
func (l *Loop) Run(ctx context.Context) error {
	for {
		err := l.Cycle(ctx)
		switch {
		case err == nil:
		case errors.Is(err, channel.ErrTimeout):
			log.Printf("poll cycle timed out, retrying next interval")
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			return fmt.Errorf("reconcile: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.interval):
		}
	}
}

// Cycle performs one discover → classify → refresh → prune pass.
func (l *Loop) Cycle(ctx context.Context) error {
	res, err := l.mon.Request(ctx, protocol.CmdList, "")
	if err != nil {
		return err
	}
	names, ok := stringList(res["watchers"])
	if !ok {
		// list failed. Fail-safe: never prune on a cycle we could not see.
		return nil
	}
	sort.Strings(names)

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if l.model.Forgotten(name) {
			continue
		}
		if !l.classified[name] {
			if err := l.classify(ctx, name); err != nil {
				return err
			}
		}
		if l.model.Forgotten(name) {
			// A fresh options reply may have put this very watcher in the
			// forget set.
			continue
		}
		seen[name] = true
		if err := l.refresh(ctx, name); err != nil {
			return err
		}
	}

	if removed := l.model.Prune(seen); len(removed) > 0 {
		log.Printf("watchers vanished from list: %s", strings.Join(removed, ", "))
	}

	metrics.ReconcileCycles.Inc()
	metrics.Watchers.Set(float64(l.model.Len()))
	return nil
}

// classify fetches a watcher's options once, accumulates the daemon-declared
// forget set, and materializes the watcher. A failed options query leaves
// the watcher unclassified so the next cycle retries.
func (l *Loop) classify(ctx context.Context, name string) error {
	res, err := l.mon.Request(ctx, protocol.CmdOptions, name)
	if err != nil {
		return err
	}
	opts, ok := res["options"].(map[string]any)
	if !ok {
		return nil
	}
	l.classified[name] = true

	if forget, ok := opts["forget"].(string); ok && forget != "" {
		l.model.Forget(strings.Fields(forget)...)
	}
	if l.model.Forgotten(name) {
		return nil
	}

	singleton, _ := opts["singleton"].(bool)
	if l.model.Materialize(name, singleton) {
		log.Printf("discovered watcher %s (singleton=%v)", name, singleton)
	}
	return nil
}

// refresh polls stats and status for one watcher and merges the result. The
// current process-id set is derived from the keys of the stats payload's
// process-info mapping.
func (l *Loop) refresh(ctx context.Context, name string) error {
	res, err := l.mon.Request(ctx, protocol.CmdStats, name)
	if err != nil {
		return err
	}
	status, err := l.mon.Status(ctx, name)
	if err != nil {
		return err
	}

	info, ok := res["info"].(map[string]any)
	if !ok {
		// The watcher likely vanished mid-round-trip. Stale state is fine;
		// the next cycle heals it.
		return nil
	}
	pids := make([]int, 0, len(info))
	for key := range info {
		if pid, err := strconv.Atoi(key); err == nil {
			pids = append(pids, pid)
		}
	}
	l.model.ApplyPoll(name, pids, status)
	return nil
}

func stringList(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}
