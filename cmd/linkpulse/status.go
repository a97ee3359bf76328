package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/user/linkpulse/internal/daemon"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  "Show the current status of the linkpulse daemon and its targets.",
	RunE:  runStatus,
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).MarginBottom(1)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

func runStatus(cmd *cobra.Command, args []string) error {
	running, pid := daemon.CheckRunning(cfg.DataDir)

	fmt.Println(titleStyle.Render("linkpulse status"))

	fmt.Print(labelStyle.Render("Daemon: "))
	if running {
		fmt.Println(runningStyle.Render(fmt.Sprintf("Running (PID %d)", pid)))
	} else {
		fmt.Println(stoppedStyle.Render("Stopped"))
	}

	sf, err := daemon.ReadStatusFile(cfg.DataDir)
	if err != nil {
		return nil
	}

	printField("Started: ", sf.StartTime.Format("2006-01-02 15:04:05"))
	if running {
		printField("Uptime: ", sf.Uptime)
	}
	printField("Interval: ", sf.Interval)
	printField("Updated: ", sf.UpdatedAt.Format("15:04:05"))

	fmt.Println()
	fmt.Println(titleStyle.Render("Targets"))
	if len(sf.Targets) == 0 {
		fmt.Println(labelStyle.Render("  none"))
	}
	for _, t := range sf.Targets {
		fmt.Println("  " + formatTargetLine(t))
	}

	if len(sf.Jobs) > 0 {
		fmt.Println()
		fmt.Println(titleStyle.Render("Jobs"))
		for _, job := range sf.Jobs {
			state := "idle"
			if job.Running {
				state = "running"
			}
			fmt.Printf("  %s: %s (last: %s, errors: %d)\n",
				labelStyle.Render(job.Name),
				valueStyle.Render(state),
				formatClock(job.LastRun),
				job.ErrorCount)
		}
	}
	return nil
}

func printField(label, value string) {
	fmt.Print(labelStyle.Render(label))
	fmt.Println(valueStyle.Render(value))
}

func formatTargetLine(t daemon.TargetSummary) string {
	style := valueStyle
	switch {
	case t.OpenIncident, t.Status == "failed":
		style = stoppedStyle
	case t.Status == "paused", t.Status == "pending":
		style = labelStyle
	}

	line := fmt.Sprintf("%-9s %-30s %-16s avg %7.1fms  loss %5.1f%%  incidents %d",
		t.Status, truncateName(t.Name, 30), t.Address, t.AvgRTT, t.PacketLoss, t.Incidents)
	return style.Render(line)
}

func formatClock(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("15:04:05")
}

func truncateName(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
