package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/linkpulse/internal/daemon"
	"github.com/user/linkpulse/internal/util"
	"github.com/user/linkpulse/internal/web"
)

var webPort int

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Serve the web API and dashboard",
	Long: `Run monitoring in this process and serve the JSON API, the websocket
stream and the HTML dashboard. Use 'start --with-web' to do the same from the
background daemon.`,
	RunE: runWeb,
}

func init() {
	webCmd.Flags().IntVarP(&webPort, "port", "p", 0, "Port to listen on (default from config)")
}

func runWeb(cmd *cobra.Command, args []string) error {
	if running, pid := daemon.CheckRunning(cfg.DataDir); running {
		return fmt.Errorf("daemon is running (PID %d); use 'start --with-web' instead", pid)
	}
	if webPort == 0 {
		webPort = cfg.Web.Port
	}

	logger := util.L()
	d, err := daemon.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}
	if err := d.Start(); err != nil {
		d.Close()
		return fmt.Errorf("failed to start monitoring: %w", err)
	}

	srv := web.NewServer(web.Options{
		Engine:  d.Engine(),
		Traces:  d.Traces(),
		Port:    webPort,
		Version: version,
		Logger:  logger,
	})

	fmt.Printf("Web dashboard: http://localhost:%d\n", webPort)
	fmt.Println("Press Ctrl+C to stop.")

	srvErr := srv.Start(d.Context())
	if srvErr != nil {
		d.Stop()
	}
	d.Wait()
	return srvErr
}
