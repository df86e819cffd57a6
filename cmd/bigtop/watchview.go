package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bigtopdev/bigtop/internal/ui"
	"github.com/bigtopdev/bigtop/internal/watcher"
)

// renderWatch renders the full dashboard view.
func renderWatch(m watchModel) string {
	width := m.width
	if width > ui.MaxWidth {
		width = ui.MaxWidth
	}
	contentWidth := width - 4
	if contentWidth < 40 {
		contentWidth = 40
	}

	var sections []string
	sections = append(sections, renderWatcherSection(m, contentWidth))

	if m.errText != "" {
		sections = append(sections, ui.Error(m.errText))
	}
	sections = append(sections, renderHelp())

	return strings.Join(sections, "\n")
}

func renderWatcherSection(m watchModel, width int) string {
	if len(m.watchers) == 0 {
		return ui.Section("Watchers", m.spin.View()+" waiting for daemon...", width)
	}

	header := fmt.Sprintf("   %-16s %-9s %5s %7s %7s  %s",
		"NAME", "KIND", "PROCS", "CPU", "MEM", "STATUS")
	lines := []string{lipgloss.NewStyle().Foreground(ui.Subtle).Render(header)}

	for i, w := range m.watchers {
		marker := " "
		if i == m.cursor {
			marker = "▸"
		}
		// A command in flight shows the spinner in place of the status dot.
		dot := ui.Dot(watcherState(w, false))
		if m.pending[w.Name] {
			dot = m.spin.View()
		}
		lines = append(lines, fmt.Sprintf("%s %s %-16s %-9s %5d %7s %7s  %s",
			marker,
			dot,
			w.Name,
			watcherKind(w),
			len(w.ProcessIDs),
			formatPercent(w.AggregateCPU),
			formatPercent(w.AggregateMem),
			w.Status,
		))
	}

	return ui.Section("Watchers", strings.Join(lines, "\n"), width)
}

func renderHelp() string {
	return lipgloss.NewStyle().Foreground(ui.Subtle).Render(
		"↑/↓ select   s start   x stop   + incr   - decr   q quit")
}

// watcherState maps a watcher to its dot color. A command in flight shows
// pending regardless of the last known state.
func watcherState(w watcher.Watcher, pending bool) ui.DotState {
	switch {
	case pending:
		return ui.StatePending
	case w.Down():
		return ui.StateStopped
	default:
		return ui.StateActive
	}
}

// formatPercent renders a 0..1 usage ratio as a percentage.
func formatPercent(v float64) string {
	if v <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", v*100)
}
