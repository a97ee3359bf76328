// Package probes implements probe and trace executors for the monitor.
package probes

import (
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/user/linkpulse/internal/monitor"
)

// Probe methods accepted by NewProber.
const (
	MethodICMP = "icmp"
	MethodTCP  = "tcp"
	MethodSim  = "sim"
)

// Options configures the prober built by NewProber.
type Options struct {
	Timeout    time.Duration
	Count      int
	Privileged bool
	TCPPorts   []int
	SimLoss    float64
	SimSeed    uint64
}

// NewProber returns the prober for method.
func NewProber(method string, opts Options, logger *zap.Logger) (monitor.Prober, error) {
	switch method {
	case MethodICMP, "":
		// Raw sockets are required on Windows.
		privileged := opts.Privileged || runtime.GOOS == "windows"
		return NewICMPProber(opts.Count, opts.Timeout, privileged, logger), nil
	case MethodTCP:
		return NewTCPProber(opts.TCPPorts, opts.Timeout), nil
	case MethodSim:
		seed := opts.SimSeed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		return NewSimProber(seed, opts.SimLoss, 0), nil
	default:
		return nil, fmt.Errorf("unknown probe method %q", method)
	}
}
