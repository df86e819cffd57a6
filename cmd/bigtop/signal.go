package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bigtopdev/bigtop/internal/action"
)

// SignalCmd sends an OS signal to one of a watcher's processes. The pid must
// belong to the watcher's current process-id set.
type SignalCmd struct {
	Name   string `arg:"" help:"Watcher name."`
	PID    int    `arg:"" help:"Target process id."`
	Signal string `arg:"" help:"Signal name, e.g. HUP or TERM."`
}

func (c *SignalCmd) Run(globals *CLI) error {
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

	sig := strings.TrimPrefix(strings.ToUpper(c.Signal), "SIG")
	acts := action.New(model, nil, sendSignal)
	if err := acts.Signal(c.Name, c.PID, sig); err != nil {
		return err
	}
	fmt.Printf("sent SIG%s to %d\n", sig, c.PID)
	return nil
}
