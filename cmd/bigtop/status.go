package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bigtopdev/bigtop/internal/ui"
	"github.com/bigtopdev/bigtop/internal/watcher"
)

// StatusCmd shows one watcher's polled state.
type StatusCmd struct {
	Name string `arg:"" help:"Watcher name."`
}

func (c *StatusCmd) Run(globals *CLI) error {
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

	w, ok := model.Get(c.Name)
	if !ok {
		return fmt.Errorf("unknown watcher %q", c.Name)
	}

	fmt.Println(ui.Section(c.Name, renderWatcherDetail(w), ui.MaxWidth))
	return nil
}

func renderWatcherDetail(w watcher.Watcher) string {
	status := ui.Dot(ui.StateStopped) + " " + w.Status
	if !w.Down() {
		status = ui.Dot(ui.StateActive) + " " + w.Status
	}

	pids := "-"
	if len(w.ProcessIDs) > 0 {
		parts := make([]string, len(w.ProcessIDs))
		for i, pid := range w.ProcessIDs {
			parts[i] = strconv.Itoa(pid)
		}
		pids = strings.Join(parts, " ")
	}

	var lines []string
	lines = append(lines, ui.Row("STATUS", status, "KIND", watcherKind(w), ui.MaxWidth-4))
	lines = append(lines, ui.Row("PROCS", strconv.Itoa(len(w.ProcessIDs)), "PIDS", pids, ui.MaxWidth-4))
	return strings.Join(lines, "\n")
}
