package probes

import (
	"context"
	"errors"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/user/linkpulse/internal/monitor"
)

// DefaultTCPPorts are tried in order by the TCP prober.
var DefaultTCPPorts = []int{80, 443, 22, 21, 445, 139}

// TCPProber measures reachability with TCP connects. It needs no privileges.
type TCPProber struct {
	ports   []int
	timeout time.Duration
	dialer  net.Dialer
}

// NewTCPProber creates a TCP prober over ports.
func NewTCPProber(ports []int, timeout time.Duration) *TCPProber {
	if len(ports) == 0 {
		ports = DefaultTCPPorts
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &TCPProber{
		ports:   ports,
		timeout: timeout,
		dialer:  net.Dialer{Timeout: timeout},
	}
}

// Probe tries each port until one answers. A refused connection still proves
// the host is up.
func (p *TCPProber) Probe(ctx context.Context, address string) (monitor.Measurement, error) {
	for _, port := range p.ports {
		if err := ctx.Err(); err != nil {
			return monitor.Measurement{}, err
		}
		start := time.Now()
		conn, err := p.dialer.DialContext(ctx, "tcp", net.JoinHostPort(address, strconv.Itoa(port)))
		latency := millis(time.Since(start))

		if err == nil {
			conn.Close()
			return monitor.Measurement{RTT: latency, Reachable: true}, nil
		}
		if isConnectionRefused(err) {
			return monitor.Measurement{RTT: latency, Reachable: true}, nil
		}
	}
	return monitor.Measurement{Reachable: false}, nil
}

func isConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}
