package main

import (
	"os"

	"github.com/alecthomas/kong"

	"github.com/bigtopdev/bigtop/internal/channel"
	"github.com/bigtopdev/bigtop/internal/config"
	"github.com/bigtopdev/bigtop/internal/transport"
)

// CLI is the top-level Kong struct.
type CLI struct {
	Config  string `short:"c" help:"Path to config file (default ~/.config/bigtop/config.yaml)."`
	Control string `help:"Control endpoint address, overrides config."`
	Stream  string `help:"Stats stream endpoint address, overrides config."`

	Watch   WatchCmd   `cmd:"" help:"Live watcher dashboard."`
	List    ListCmd    `cmd:"" help:"List watchers and their state."`
	Status  StatusCmd  `cmd:"" help:"Show one watcher's status."`
	Start   StartCmd   `cmd:"" help:"Start a watcher."`
	Stop    StopCmd    `cmd:"" help:"Stop a watcher."`
	Incr    IncrCmd    `cmd:"" help:"Add one process to a watcher."`
	Decr    DecrCmd    `cmd:"" help:"Remove one process from a watcher."`
	Signal  SignalCmd  `cmd:"" help:"Send a signal to one of a watcher's processes."`
	Version VersionCmd `cmd:"" help:"Print version."`
}

func main() {
	var cli CLI
	k, err := kong.New(&cli,
		kong.Name("bigtop"),
		kong.Description("bigtop — control panel for a circus process-supervision daemon"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			NoExpandSubcommands: true,
			Compact:             true,
		}),
	)
	if err != nil {
		panic(err)
	}

	args := os.Args[1:]
	// No args or bare "help" prints usage and exits 0, not an error.
	if len(args) == 0 || (len(args) == 1 && args[0] == "help") {
		_, _ = k.Parse([]string{"--help"})
		os.Exit(0)
	}

	ctx, err := k.Parse(args)
	k.FatalIfErrorf(err)
	k.FatalIfErrorf(ctx.Run(&cli))
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(globals *CLI) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if globals.Config != "" {
		cfg, err = config.LoadFile(globals.Config)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if globals.Control != "" {
		cfg.ControlAddr = globals.Control
	}
	if globals.Stream != "" {
		cfg.StreamAddr = globals.Stream
	}
	return cfg, nil
}

// dialMonitor opens a fresh monitoring channel to the control endpoint.
func dialMonitor(cfg *config.Config) (*channel.Monitor, error) {
	conn, err := transport.Dial(cfg.ControlAddr)
	if err != nil {
		return nil, err
	}
	return channel.NewMonitor(conn, 0), nil
}

// dialCommander opens a fresh command channel to the control endpoint.
func dialCommander(cfg *config.Config) (*channel.Commander, error) {
	conn, err := transport.Dial(cfg.ControlAddr)
	if err != nil {
		return nil, err
	}
	return channel.NewCommander(conn, 0), nil
}
