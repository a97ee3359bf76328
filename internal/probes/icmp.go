package probes

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"

	"github.com/user/linkpulse/internal/monitor"
)

// ICMPProber probes addresses with ICMP echo requests.
type ICMPProber struct {
	count      int
	timeout    time.Duration
	privileged bool
	logger     *zap.Logger
}

// NewICMPProber creates an ICMP prober. Unprivileged mode uses UDP ping
// sockets and needs net.ipv4.ping_group_range on Linux.
func NewICMPProber(count int, timeout time.Duration, privileged bool, logger *zap.Logger) *ICMPProber {
	if count <= 0 {
		count = 1
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ICMPProber{
		count:      count,
		timeout:    timeout,
		privileged: privileged,
		logger:     logger,
	}
}

// Probe sends the configured number of echo requests. The address is
// reachable if any reply arrives; RTT is the average over replies.
func (p *ICMPProber) Probe(ctx context.Context, address string) (monitor.Measurement, error) {
	pinger, err := probing.NewPinger(address)
	if err != nil {
		return monitor.Measurement{}, fmt.Errorf("create pinger for %s: %w", address, err)
	}
	pinger.Count = p.count
	pinger.Timeout = p.timeout
	pinger.SetPrivileged(p.privileged)

	done := make(chan error, 1)
	go func() {
		done <- pinger.Run()
	}()

	select {
	case runErr := <-done:
		if runErr != nil {
			return monitor.Measurement{}, fmt.Errorf("ping %s: %w", address, runErr)
		}
	case <-ctx.Done():
		pinger.Stop()
		<-done
		return monitor.Measurement{}, ctx.Err()
	}

	stats := pinger.Statistics()
	p.logger.Debug("ping finished",
		zap.String("address", address),
		zap.Int("sent", stats.PacketsSent),
		zap.Int("recv", stats.PacketsRecv),
		zap.Duration("avg_rtt", stats.AvgRtt),
	)
	if stats.PacketsRecv == 0 {
		return monitor.Measurement{Reachable: false}, nil
	}
	return monitor.Measurement{RTT: millis(stats.AvgRtt), Reachable: true}, nil
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
