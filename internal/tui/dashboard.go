package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/user/linkpulse/internal/model"
	"github.com/user/linkpulse/internal/monitor"
)

const (
	nameWidth    = 22
	addressWidth = 18
	sparkWidth   = 20
)

// Dashboard renders a registry snapshot as a target table with a trace pane
// for the selected row.
type Dashboard struct {
	snap     monitor.Snapshot
	settings model.Settings
	cursor   int
	width    int
	height   int
	now      time.Time
}

// NewDashboard creates a dashboard for one frame.
func NewDashboard(snap monitor.Snapshot, settings model.Settings, cursor, width, height int) *Dashboard {
	return &Dashboard{
		snap:     snap,
		settings: settings,
		cursor:   cursor,
		width:    width,
		height:   height,
		now:      time.Now(),
	}
}

// View renders the table and trace pane.
func (d *Dashboard) View(spin string) string {
	var sb strings.Builder

	active, paused := d.snap.Counts()
	title := fmt.Sprintf("linkpulse  %d active  %d paused  every %s  warn %dms",
		active, paused, d.settings.Interval, d.settings.WarnThreshold)
	sb.WriteString(HeaderStyle.Width(d.sectionWidth()).Render(title))
	sb.WriteString("\n\n")

	sb.WriteString(d.renderTable())
	sb.WriteString("\n")

	if t, ok := d.selected(); ok {
		sb.WriteString(d.renderTrace(t, spin))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (d *Dashboard) sectionWidth() int {
	w := d.width - 4
	if w < 60 {
		w = 60
	}
	return w
}

func (d *Dashboard) selected() (model.Target, bool) {
	if d.cursor < 0 || d.cursor >= len(d.snap.Targets) {
		return model.Target{}, false
	}
	return d.snap.Targets[d.cursor], true
}

func (d *Dashboard) renderTable() string {
	if len(d.snap.Targets) == 0 {
		content := DimStyle.Render("No targets yet. Press 'a' to add some.")
		return SectionStyle.Width(d.sectionWidth()).Render(
			SectionTitleStyle.Render("Targets") + "\n" + content)
	}

	rows := []string{
		TableHeaderStyle.Render(fmt.Sprintf("%-8s %-*s %-*s %8s %8s %8s %8s %6s %4s  %s",
			"STATUS", nameWidth, "NAME", addressWidth, "ADDRESS",
			"LAST", "AVG", "MIN", "MAX", "LOSS", "INC", "HISTORY")),
	}

	for i, t := range d.snap.Targets {
		status := lipgloss.NewStyle().
			Foreground(statusColor(t, d.settings.Colors)).
			Render(fmt.Sprintf("%-8s", statusText(t)))

		line := fmt.Sprintf("%s %-*s %-*s %8s %8s %8s %8s %5.1f%% %4d  %s",
			status,
			nameWidth, truncate(displayName(t), nameWidth),
			addressWidth, truncate(t.Address, addressWidth),
			formatLast(t), formatRTT(t.AvgRTT, t.Received > 0), formatRTT(t.MinRTT, t.HasMinRTT()),
			formatRTT(t.MaxRTT, t.HasMinRTT()), t.PacketLoss, len(t.Incidents),
			RenderSparkline(t.History, sparkWidth),
		)
		if i == d.cursor {
			line = SelectedRowStyle.Render(line)
		}
		rows = append(rows, line)
	}

	return SectionStyle.Width(d.sectionWidth()).Render(
		SectionTitleStyle.Render("Targets") + "\n" + strings.Join(rows, "\n"))
}

func (d *Dashboard) renderTrace(t model.Target, spin string) string {
	title := SectionTitleStyle.Render("Path to " + t.DisplayName())

	var content string
	switch t.Trace.Status {
	case model.TraceNever:
		content = DimStyle.Render("No trace yet. Press 't' to trace.")
	case model.TraceRunning:
		content = spin + " tracing " + t.Address + "..."
	case model.TraceFailed:
		content = ErrorStyle.Render("trace failed at " + t.Trace.FinishedAt.Format("15:04:05"))
	default:
		content = renderHops(t.Trace.Hops)
	}

	if inc, ok := t.OpenIncident(); ok {
		content += "\n" + ErrorStyle.Render(fmt.Sprintf("down since %s (%s, %d lost)",
			inc.Start.Format("15:04:05"), inc.Duration(d.now).Truncate(time.Second), inc.LostCount))
	}

	return SectionStyle.Width(d.sectionWidth()).Render(title + "\n" + content)
}

func renderHops(hops []model.Hop) string {
	if len(hops) == 0 {
		return DimStyle.Render("no hops")
	}
	rows := make([]string, 0, len(hops))
	for _, h := range hops {
		if h.Lost {
			rows = append(rows, fmt.Sprintf("%3d  %s", h.Number, DimStyle.Render("*")))
			continue
		}
		host := h.Address
		if h.Name != "" && h.Name != h.Address {
			host = fmt.Sprintf("%s (%s)", h.Name, h.Address)
		}
		rows = append(rows, fmt.Sprintf("%3d  %-40s %8.1f ms", h.Number, host, h.RTT))
	}
	return strings.Join(rows, "\n")
}

// displayName shows the label or resolved name, and "..." while resolution
// is still pending.
func displayName(t model.Target) string {
	if !t.Label.Set && t.Name.Pending() {
		return "..."
	}
	if !t.Label.Set && t.Name.Status == model.NameUnavailable {
		return model.UnavailableName
	}
	return t.DisplayName()
}

func formatLast(t model.Target) string {
	r, ok := t.Latest()
	if !ok {
		return "-"
	}
	if r.Failed() {
		return "timeout"
	}
	return formatRTT(t.LastRTT, true)
}

func formatRTT(v float64, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.1fms", v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
