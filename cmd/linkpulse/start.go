package main

import (
	"fmt"
	"os"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/linkpulse/internal/daemon"
	"github.com/user/linkpulse/internal/util"
	"github.com/user/linkpulse/internal/web"
)

// daemonEnv marks the re-executed background process.
const daemonEnv = "LINKPULSE_DETACHED"

var (
	foreground   bool
	withWeb      bool
	startWebPort int
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the linkpulse daemon",
	Long:  "Start the linkpulse daemon in the background to monitor the configured targets.",
	RunE:  runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false,
		"Run in foreground instead of daemonizing")
	startCmd.Flags().BoolVar(&withWeb, "with-web", false,
		"Also start the web API server")
	startCmd.Flags().IntVar(&startWebPort, "web-port", 0,
		"Port for web server when using --with-web (default from config)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if running, pid := daemon.CheckRunning(cfg.DataDir); running {
		fmt.Printf("Daemon is already running (PID %d)\n", pid)
		return nil
	}
	if startWebPort == 0 {
		startWebPort = cfg.Web.Port
	}

	if foreground {
		return runForeground()
	}
	return runDaemon()
}

func runForeground() error {
	logger := util.L()

	d, err := daemon.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}
	if err := d.Start(); err != nil {
		d.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	if withWeb {
		srv := web.NewServer(web.Options{
			Engine:  d.Engine(),
			Traces:  d.Traces(),
			Port:    startWebPort,
			Version: version,
			Logger:  logger,
		})
		go func() {
			if err := srv.Start(d.Context()); err != nil {
				logger.Error("web server error", zap.Error(err))
			}
		}()
		fmt.Printf("Web API: http://localhost:%d\n", startWebPort)
	}

	fmt.Println("linkpulse daemon started. Press Ctrl+C to stop.")
	d.Wait()
	return nil
}

func runDaemon() error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	args := []string{executable, "start", "--foreground"}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	if logLevel != "" {
		args = append(args, "--log-level", logLevel)
	}
	if withWeb {
		args = append(args, "--with-web", "--web-port", strconv.Itoa(startWebPort))
	}

	if err := util.EnsureDir(cfg.DataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	proc, err := os.StartProcess(executable, args, &os.ProcAttr{
		Dir:   "/",
		Env:   append(os.Environ(), daemonEnv+"=1"),
		Files: []*os.File{nil, logFile, logFile},
		Sys:   &syscall.SysProcAttr{Setsid: true},
	})
	if err != nil {
		return fmt.Errorf("failed to start daemon process: %w", err)
	}

	pid := proc.Pid
	if err := proc.Release(); err != nil {
		util.L().Warn("failed to release process", zap.Error(err))
	}

	fmt.Printf("linkpulse daemon started (PID %d)\n", pid)
	fmt.Printf("Logs: %s\n", cfg.LogFile)
	if withWeb {
		fmt.Printf("Web API: http://localhost:%d\n", startWebPort)
	}
	return nil
}
