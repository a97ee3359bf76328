package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/user/linkpulse/internal/model"
)

var (
	Primary = lipgloss.Color("205")
	Accent  = lipgloss.Color("86")
	Subtle  = lipgloss.Color("241")
	Alert   = lipgloss.Color("196")

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(Primary).
			Padding(0, 1)

	SectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Subtle).
			Padding(0, 1)

	SectionTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Accent)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Accent)

	SelectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Background(lipgloss.Color("236"))

	LabelStyle = lipgloss.NewStyle().
			Foreground(Subtle)

	DimStyle = lipgloss.NewStyle().
			Foreground(Subtle)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Alert)

	HelpStyle = lipgloss.NewStyle().
			Foreground(Subtle).
			MarginTop(1)
)

// statusColor picks the row colour of a target from the configured palette.
// Targets that have not been probed yet use the paused colour.
func statusColor(t model.Target, colors model.ColorMap) lipgloss.Color {
	if !t.Active {
		return lipgloss.Color(colors.Paused)
	}
	o, ok := t.Status()
	if !ok {
		return lipgloss.Color(colors.Paused)
	}
	return lipgloss.Color(colors.For(o))
}

// statusText is the short status word shown in the first column.
func statusText(t model.Target) string {
	if !t.Active {
		return "paused"
	}
	if _, open := t.OpenIncident(); open {
		return "down"
	}
	o, ok := t.Status()
	if !ok {
		return "waiting"
	}
	return o.String()
}

// RenderSparkline draws the latest RTTs as a bar sparkline. Failed probes are
// drawn as a low dot.
func RenderSparkline(history []model.ProbeResult, width int) string {
	if width <= 0 || len(history) == 0 {
		return ""
	}
	if len(history) > width {
		history = history[len(history)-width:]
	}

	bars := []rune("▁▂▃▄▅▆▇█")
	var hi float64
	for _, r := range history {
		if !r.Failed() && r.RTT > hi {
			hi = r.RTT
		}
	}

	var sb strings.Builder
	for _, r := range history {
		if r.Failed() {
			sb.WriteRune('·')
			continue
		}
		idx := 0
		if hi > 0 {
			idx = int(r.RTT / hi * float64(len(bars)-1))
		}
		sb.WriteRune(bars[idx])
	}
	return sb.String()
}
