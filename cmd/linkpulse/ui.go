package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/linkpulse/internal/daemon"
	"github.com/user/linkpulse/internal/tui"
	"github.com/user/linkpulse/internal/util"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open the interactive dashboard",
	Long: `Open the terminal dashboard. Monitoring runs inside this process for as
long as the dashboard is open; logs go to the configured log file.`,
	RunE: runUI,
}

func runUI(cmd *cobra.Command, args []string) error {
	if running, pid := daemon.CheckRunning(cfg.DataDir); running {
		return fmt.Errorf("daemon is running (PID %d); stop it first with 'linkpulse stop'", pid)
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

	runErr := tui.NewApp(d.Engine(), logger.Named("tui")).Run()
	if err := d.Stop(); err != nil {
		logger.Named("ui").Sugar().Warnf("failed to stop monitoring cleanly: %v", err)
	}
	return runErr
}
