package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/user/linkpulse/internal/model"
)

// FormatMarkdown renders a report as Markdown.
func FormatMarkdown(data *ReportData) string {
	var sb strings.Builder

	sb.WriteString("# linkpulse Reachability Report\n\n")
	fmt.Fprintf(&sb, "Generated: %s\n\n", data.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Probe interval: %s, warning threshold: %d ms, retention: %s (%d probes per target)\n\n",
		data.Settings.Interval, data.Settings.WarnThreshold, data.Settings.Retention, data.HistoryCap)

	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- Targets: %d (%d active, %d paused)\n", len(data.Targets), data.ActiveCount, data.PausedCount)
	fmt.Fprintf(&sb, "- Currently down: %d\n", data.DownCount)
	fmt.Fprintf(&sb, "- Path changes: %d\n\n", len(data.TraceChanges))

	if len(data.Targets) == 0 {
		sb.WriteString("_No targets are monitored._\n")
		return sb.String()
	}

	sb.WriteString("| Target | Address | Status | Last | Avg | Min | Max | Sent | Lost | Loss | Availability | Incidents |\n")
	sb.WriteString("|---|---|---|---|---|---|---|---|---|---|---|---|\n")
	for _, tr := range data.Targets {
		t := tr.Target
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s | %s | %s | %d | %d | %.1f%% | %.1f%% | %d |\n",
			escapeCell(t.DisplayName()), t.Address, targetStatus(t),
			ms(t.LastRTT, len(t.History) > 0), ms(t.AvgRTT, t.Received > 0),
			ms(t.MinRTT, t.HasMinRTT()), ms(t.MaxRTT, t.HasMinRTT()),
			t.Sent, t.Lost, t.PacketLoss, tr.Availability, len(t.Incidents))
	}
	sb.WriteString("\n")

	writeIncidents(&sb, data)
	writeTraces(&sb, data)
	writeTraceChanges(&sb, data)

	return sb.String()
}

func writeIncidents(sb *strings.Builder, data *ReportData) {
	sb.WriteString("## Downtime Incidents\n\n")

	var found bool
	for _, tr := range data.Targets {
		if len(tr.Target.Incidents) == 0 {
			continue
		}
		found = true
		fmt.Fprintf(sb, "### %s\n\n", escapeCell(tr.Target.DisplayName()))
		sb.WriteString("| # | Start | End | Duration | Lost probes |\n")
		sb.WriteString("|---|---|---|---|---|\n")
		for _, inc := range tr.Target.Incidents {
			end := "ongoing"
			if inc.End != nil {
				end = inc.End.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(sb, "| %d | %s | %s | %s | %d |\n",
				inc.ID, inc.Start.Format("2006-01-02 15:04:05"), end,
				inc.Duration(data.GeneratedAt).Truncate(time.Second), inc.LostCount)
		}
		fmt.Fprintf(sb, "\nTotal downtime: %s\n\n", tr.Downtime.Truncate(time.Second))
	}
	if !found {
		sb.WriteString("_No downtime recorded._\n\n")
	}
}

func writeTraces(sb *strings.Builder, data *ReportData) {
	var traced []TargetReport
	for _, tr := range data.Targets {
		if len(tr.Traces) > 0 {
			traced = append(traced, tr)
		}
	}
	if len(traced) == 0 {
		return
	}

	sb.WriteString("## Paths\n\n")
	for _, tr := range traced {
		latest := tr.Traces[0]
		fmt.Fprintf(sb, "### %s (%s)\n\n", escapeCell(tr.Target.DisplayName()), latest.Timestamp.Format("2006-01-02 15:04:05"))
		if latest.Status == model.TraceFailed {
			sb.WriteString("_Latest trace failed._\n\n")
			continue
		}
		sb.WriteString(GenerateMermaidDiagram(latest))
		sb.WriteString("\n")
	}

	var latest []model.TraceResult
	for _, tr := range traced {
		if tr.Traces[0].Status == model.TraceDone {
			latest = append(latest, tr.Traces[0])
		}
	}
	if len(latest) > 1 {
		sb.WriteString("### Topology\n\n")
		sb.WriteString(GenerateNetworkTopology(latest))
		sb.WriteString("\n")
	}
}

func writeTraceChanges(sb *strings.Builder, data *ReportData) {
	if len(data.TraceChanges) == 0 {
		return
	}
	sb.WriteString("## Path Changes\n\n")
	for _, c := range data.TraceChanges {
		fmt.Fprintf(sb, "- %s at %s", escapeCell(c.Target), c.Timestamp.Format("2006-01-02 15:04:05"))
		if len(c.Added) > 0 {
			fmt.Fprintf(sb, ", added %s", strings.Join(c.Added, ", "))
		}
		if len(c.Removed) > 0 {
			fmt.Fprintf(sb, ", removed %s", strings.Join(c.Removed, ", "))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

func targetStatus(t model.Target) string {
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

func ms(v float64, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.1f ms", v)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
