package main

import (
	"context"
	"fmt"
	"log"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bigtopdev/bigtop/internal/action"
	"github.com/bigtopdev/bigtop/internal/channel"
	"github.com/bigtopdev/bigtop/internal/metrics"
	"github.com/bigtopdev/bigtop/internal/reconcile"
	"github.com/bigtopdev/bigtop/internal/stats"
	"github.com/bigtopdev/bigtop/internal/transport"
	"github.com/bigtopdev/bigtop/internal/watcher"
)

// WatchCmd runs the live watcher dashboard.
type WatchCmd struct {
	Metrics string `name:"metrics-addr" help:"Serve Prometheus metrics on this address (e.g. :9300)."`
}

func (c *WatchCmd) Run(globals *CLI) error {
	cfg, err := loadConfig(globals)
	if err != nil {
		return err
	}
	if c.Metrics != "" {
		cfg.MetricsAddr = c.Metrics
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Two control connections: the reconcile loop owns the monitoring
	// channel, user gestures go through the command channel.
	mon, err := dialMonitor(cfg)
	if err != nil {
		return fmt.Errorf("dial control endpoint %s: %w", cfg.ControlAddr, err)
	}
	defer mon.Close()

	cmdr, err := dialCommander(cfg)
	if err != nil {
		return fmt.Errorf("dial control endpoint %s: %w", cfg.ControlAddr, err)
	}
	defer cmdr.Close()

	sub, err := transport.DialStream(cfg.StreamAddr)
	if err != nil {
		return fmt.Errorf("dial stream endpoint %s: %w", cfg.StreamAddr, err)
	}

	model := watcher.NewModel()
	changes := make(chan struct{}, 1)
	model.OnChange(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})

	loop := reconcile.New(mon, model, cfg.Interval())
	streamer := stats.New(model, sub)
	acts := action.New(model, cmdr, sendSignal)

	fatal := make(chan error, 2)
	go func() { fatal <- loop.Run(ctx) }()
	go func() { fatal <- streamer.Run(ctx) }()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	p := tea.NewProgram(newWatchModel(model, acts, changes), tea.WithAltScreen())
	go func() {
		if err := <-fatal; err != nil && ctx.Err() == nil {
			p.Send(fatalMsg{err: err})
		}
	}()

	final, err := p.Run()
	cancel()
	if err != nil {
		return err
	}
	if wm, ok := final.(watchModel); ok && wm.fatal != nil {
		return wm.fatal
	}
	return nil
}

// watchModel is the Bubble Tea model for the dashboard.
type watchModel struct {
	model   *watcher.Model
	acts    *action.Actions
	changes chan struct{}

	watchers []watcher.Watcher
	cursor   int
	pending  map[string]bool
	spin     spinner.Model
	errText  string
	width    int
	quitting bool
	fatal    error
}

func newWatchModel(model *watcher.Model, acts *action.Actions, changes chan struct{}) watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	return watchModel{
		model:    model,
		acts:     acts,
		changes:  changes,
		watchers: model.Snapshot(),
		pending:  make(map[string]bool),
		spin:     s,
		width:    80,
	}
}

// Messages.
type changeMsg struct{}

type outcomeMsg struct {
	name    string
	outcome channel.Outcome
}

type fatalMsg struct {
	err error
}

// waitChange blocks until the shared model reports a change.
func (m watchModel) waitChange() tea.Cmd {
	return func() tea.Msg {
		<-m.changes
		return changeMsg{}
	}
}

func awaitOutcome(name string, ch <-chan channel.Outcome) tea.Cmd {
	return func() tea.Msg {
		return outcomeMsg{name: name, outcome: <-ch}
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.waitChange())
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "j":
			if m.cursor < len(m.watchers)-1 {
				m.cursor++
			}
			return m, nil
		case "s":
			return m.gesture(m.acts.Start)
		case "x":
			return m.gesture(m.acts.Stop)
		case "+", "=":
			return m.gesture(m.acts.Incr)
		case "-":
			return m.gesture(m.acts.Decr)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case changeMsg:
		m.watchers = m.model.Snapshot()
		if m.cursor >= len(m.watchers) {
			m.cursor = max(len(m.watchers)-1, 0)
		}
		return m, m.waitChange()

	case outcomeMsg:
		delete(m.pending, msg.name)
		if msg.outcome.Err != nil {
			m.errText = msg.outcome.Err.Error()
		}
		m.watchers = m.model.Snapshot()
		return m, nil

	case fatalMsg:
		m.fatal = msg.err
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

// gesture submits a lifecycle command for the selected watcher. Controls for
// a watcher are disabled while its command is in flight; a new gesture
// re-arms the error line.
func (m watchModel) gesture(invoke func(string) <-chan channel.Outcome) (tea.Model, tea.Cmd) {
	if len(m.watchers) == 0 {
		return m, nil
	}
	name := m.watchers[m.cursor].Name
	if m.pending[name] {
		return m, nil
	}
	m.pending[name] = true
	m.errText = ""
	return m, awaitOutcome(name, invoke(name))
}

func (m watchModel) View() string {
	if m.quitting {
		return ""
	}
	return renderWatch(m)
}
