package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/linkpulse/internal/model"
	"github.com/user/linkpulse/internal/probes"
	"github.com/user/linkpulse/internal/report"
	"github.com/user/linkpulse/internal/util"
)

var traceMermaid bool

var traceCmd = &cobra.Command{
	Use:   "trace <address>",
	Short: "Trace the network path to an address",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrace,
}

func init() {
	traceCmd.Flags().BoolVar(&traceMermaid, "mermaid", false, "Print the path as a mermaid diagram")
}

func runTrace(cmd *cobra.Command, args []string) error {
	address := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if cfg.Trace.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Trace.Timeout)
		defer cancel()
	}

	tracer := probes.NewTracerouteProbe(cfg.Trace.MaxHops, cfg.Trace.Wait, util.L().Named("traceroute"))

	fmt.Printf("tracing %s (max %d hops)...\n", address, cfg.Trace.MaxHops)
	hops, err := tracer.Trace(ctx, address)
	if err != nil {
		return fmt.Errorf("trace failed: %w", err)
	}

	if traceMermaid {
		fmt.Println(report.GenerateMermaidDiagram(model.TraceResult{
			Address:   address,
			Timestamp: time.Now(),
			Status:    model.TraceDone,
			Hops:      hops,
		}))
		return nil
	}

	for _, h := range hops {
		fmt.Println(formatHop(h))
	}
	return nil
}

func formatHop(h model.Hop) string {
	if h.Lost {
		return fmt.Sprintf("%3d  *", h.Number)
	}
	host := h.Address
	if h.Name != "" && h.Name != h.Address {
		host = fmt.Sprintf("%s (%s)", h.Name, h.Address)
	}
	return fmt.Sprintf("%3d  %-50s %8.1f ms", h.Number, host, h.RTT)
}
