package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/linkpulse/internal/daemon"
	"github.com/user/linkpulse/internal/model"
	"github.com/user/linkpulse/internal/report"
	"github.com/user/linkpulse/internal/util"
)

var (
	reportDuration string
	reportOutput   string
	reportTraces   bool
	reportCharts   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Monitor for a while and write a report",
	Long: `Monitor the stored targets for a fixed duration and write a Markdown
report with latency statistics, downtime incidents and network paths.

Examples:
  linkpulse report --duration 10m
  linkpulse report --duration 1h --traces --output ./report.md
  linkpulse report --duration 2d --charts ./charts`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportDuration, "duration", "1m",
		"How long to monitor before reporting (e.g. 30s, 10m, 2d, 1w)")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "",
		"Output file path, or - for stdout (default: auto-generated in the data dir)")
	reportCmd.Flags().BoolVar(&reportTraces, "traces", false,
		"Trace every active target before writing the report")
	reportCmd.Flags().StringVar(&reportCharts, "charts", "",
		"Directory to write one latency chart PNG per target")
}

func runReport(cmd *cobra.Command, args []string) error {
	if running, pid := daemon.CheckRunning(cfg.DataDir); running {
		return fmt.Errorf("daemon is running (PID %d); stop it first with 'linkpulse stop'", pid)
	}

	duration, err := parseDuration(reportDuration)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}

	logger := util.L()
	d, err := daemon.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}
	if err := d.StartEmbedded(); err != nil {
		d.Close()
		return fmt.Errorf("failed to start monitoring: %w", err)
	}
	defer d.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := d.Engine()
	fmt.Fprintf(os.Stderr, "monitoring %d target(s) for %s...\n", len(engine.Registry.Snapshot().Targets), duration)
	select {
	case <-time.After(duration):
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "interrupted, writing report")
	}

	if reportTraces {
		started := 0
		for _, t := range engine.Registry.Snapshot().Targets {
			if t.Active && engine.StartTrace(t.ID) {
				started++
			}
		}
		fmt.Fprintf(os.Stderr, "tracing %d target(s)...\n", started)
		engine.Traces.Wait()
	}

	snap := engine.Registry.Snapshot()
	settings := engine.Settings.Load()
	data, err := report.NewGenerator(d.Traces()).Generate(snap, settings)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	if reportCharts != "" {
		if err := writeCharts(reportCharts, snap.Targets, settings.WarnThreshold, logger); err != nil {
			return err
		}
	}

	switch reportOutput {
	case "-":
		fmt.Print(report.FormatMarkdown(data))
	case "":
		path, err := report.WriteMarkdownFile(data, filepath.Join(cfg.DataDir, "reports"))
		if err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Printf("Report written to %s\n", path)
	default:
		if err := os.WriteFile(reportOutput, []byte(report.FormatMarkdown(data)), 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Printf("Report written to %s\n", reportOutput)
	}
	return nil
}

func writeCharts(dir string, list []model.Target, warn int, logger *zap.Logger) error {
	if err := util.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create chart dir: %w", err)
	}

	for _, t := range list {
		path := filepath.Join(dir, chartFileName(t.Address))
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create chart: %w", err)
		}
		err = report.RenderLatencyChart(f, t, report.ChartOptions{WarnThreshold: warn})
		f.Close()
		if errors.Is(err, report.ErrNotEnoughData) {
			os.Remove(path)
			logger.Debug("skipping chart", zap.String("target", t.Address))
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to render chart for %s: %w", t.Address, err)
		}
	}
	return nil
}

func chartFileName(address string) string {
	r := strings.NewReplacer(":", "_", "/", "_", ".", "_")
	return "latency_" + r.Replace(address) + ".png"
}

// parseDuration extends time.ParseDuration with d (days) and w (weeks).
func parseDuration(s string) (time.Duration, error) {
	d, err := parseDurationUnit(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %s", s)
	}
	return d, nil
}

func parseDurationUnit(s string) (time.Duration, error) {
	if n, ok := strings.CutSuffix(s, "d"); ok {
		if days, err := strconv.Atoi(n); err == nil {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	if n, ok := strings.CutSuffix(s, "w"); ok {
		if weeks, err := strconv.Atoi(n); err == nil {
			return time.Duration(weeks) * 7 * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}
