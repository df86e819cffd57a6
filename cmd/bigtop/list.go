package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bigtopdev/bigtop/internal/channel"
	"github.com/bigtopdev/bigtop/internal/config"
	"github.com/bigtopdev/bigtop/internal/reconcile"
	"github.com/bigtopdev/bigtop/internal/ui"
	"github.com/bigtopdev/bigtop/internal/watcher"
)

// ListCmd prints a one-shot table of watchers and their polled state.
type ListCmd struct{}

func (c *ListCmd) Run(globals *CLI) error {
	cfg, err := loadConfig(globals)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	model, mon, err := fetchModel(ctx, cfg)
	if err != nil {
		return err
	}
	defer mon.Close()

	watchers := model.Snapshot()
	if len(watchers) == 0 {
		fmt.Println("no watchers")
		return nil
	}

	rows := make([][]string, 0, len(watchers))
	for _, w := range watchers {
		rows = append(rows, []string{
			w.Name,
			w.Status,
			strconv.Itoa(len(w.ProcessIDs)),
			watcherKind(w),
		})
	}
	fmt.Println(ui.Table([]string{"NAME", "STATUS", "PROCS", "KIND"}, rows))
	return nil
}

func watcherKind(w watcher.Watcher) string {
	if w.Singleton {
		return "singleton"
	}
	return "pool"
}

// fetchModel dials the control endpoint and runs a single discovery cycle so
// one-shot commands see the daemon's current watcher set.
func fetchModel(ctx context.Context, cfg *config.Config) (*watcher.Model, *channel.Monitor, error) {
	mon, err := dialMonitor(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("dial control endpoint %s: %w", cfg.ControlAddr, err)
	}
	model := watcher.NewModel()
	if err := reconcile.New(mon, model, 0).Cycle(ctx); err != nil {
		_ = mon.Close()
		return nil, nil, fmt.Errorf("poll daemon: %w", err)
	}
	return model, mon, nil
}
