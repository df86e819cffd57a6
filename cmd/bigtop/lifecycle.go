package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/bigtopdev/bigtop/internal/action"
	"github.com/bigtopdev/bigtop/internal/channel"
)

// StartCmd starts a watcher.
type StartCmd struct {
	Name string `arg:"" help:"Watcher name."`
}

func (c *StartCmd) Run(globals *CLI) error {
	if err := runLifecycle(globals, func(a *action.Actions) <-chan channel.Outcome {
		return a.Start(c.Name)
	}); err != nil {
		return err
	}
	fmt.Printf("started %s\n", c.Name)
	return nil
}

// StopCmd stops a watcher, asking for confirmation first.
type StopCmd struct {
	Name string `arg:"" help:"Watcher name."`
	Yes  bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (c *StopCmd) Run(globals *CLI) error {
	if !c.Yes {
		var confirm bool
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Stop watcher %q?", c.Name)).
				Description("All of its processes will be terminated.").
				Value(&confirm),
		))
		if err := form.Run(); err != nil {
			return err
		}
		if !confirm {
			return nil
		}
	}

	if err := runLifecycle(globals, func(a *action.Actions) <-chan channel.Outcome {
		return a.Stop(c.Name)
	}); err != nil {
		return err
	}
	fmt.Printf("stopped %s\n", c.Name)
	return nil
}

// IncrCmd adds one process to a pool watcher.
type IncrCmd struct {
	Name string `arg:"" help:"Watcher name."`
}

func (c *IncrCmd) Run(globals *CLI) error {
	if err := runLifecycle(globals, func(a *action.Actions) <-chan channel.Outcome {
		return a.Incr(c.Name)
	}); err != nil {
		return err
	}
	fmt.Printf("added one process to %s\n", c.Name)
	return nil
}

// DecrCmd removes one process from a pool watcher.
type DecrCmd struct {
	Name string `arg:"" help:"Watcher name."`
}

func (c *DecrCmd) Run(globals *CLI) error {
	if err := runLifecycle(globals, func(a *action.Actions) <-chan channel.Outcome {
		return a.Decr(c.Name)
	}); err != nil {
		return err
	}
	fmt.Printf("removed one process from %s\n", c.Name)
	return nil
}

// runLifecycle polls the daemon once so the action layer sees current state,
// then submits a single command and waits for its outcome.
func runLifecycle(globals *CLI, invoke func(*action.Actions) <-chan channel.Outcome) error {
	cfg, err := loadConfig(globals)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	model, mon, err := fetchModel(ctx, cfg)
	if err != nil {
		return err
	}
	defer mon.Close()

	cmdr, err := dialCommander(cfg)
	if err != nil {
		return fmt.Errorf("dial control endpoint %s: %w", cfg.ControlAddr, err)
	}
	defer cmdr.Close()

	acts := action.New(model, cmdr, sendSignal)
	select {
	case o := <-invoke(acts):
		return o.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}
