package probes

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/linkpulse/internal/model"
)

// Hop line formats:
//
//	" 1  gateway (192.168.0.1)  1.234 ms"
//	" 1  192.168.0.1  1.234 ms"
//	" 1  *"
var (
	hopNamedRe = regexp.MustCompile(`^\s*(\d+)\s+(\S+)\s+\(([0-9a-fA-F:.]+)\)\s+(\d+(?:\.\d+)?)\s*ms`)
	hopAddrRe  = regexp.MustCompile(`^\s*(\d+)\s+([0-9a-fA-F:.]+)\s+(\d+(?:\.\d+)?)\s*ms`)
	hopLostRe  = regexp.MustCompile(`^\s*(\d+)\s+\*`)
)

// TracerouteProbe traces paths with the system traceroute command.
type TracerouteProbe struct {
	maxHops int
	wait    time.Duration
	logger  *zap.Logger
	command string
}

// NewTracerouteProbe creates a traceroute probe.
func NewTracerouteProbe(maxHops int, wait time.Duration, logger *zap.Logger) *TracerouteProbe {
	if maxHops <= 0 || maxHops > 64 {
		maxHops = 30
	}
	if wait <= 0 {
		wait = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TracerouteProbe{
		maxHops: maxHops,
		wait:    wait,
		logger:  logger,
		command: "traceroute",
	}
}

// Trace runs traceroute to address and returns the parsed hops. UDP probes
// are tried first, then ICMP. Hop names come from traceroute's own reverse
// lookups.
func (p *TracerouteProbe) Trace(ctx context.Context, address string) ([]model.Hop, error) {
	output, err := exec.CommandContext(ctx, p.command, p.args(address, false)...).Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Debug("udp traceroute failed, retrying with icmp", zap.String("address", address), zap.Error(err))
		output, err = exec.CommandContext(ctx, p.command, p.args(address, true)...).Output()
		if err != nil {
			hops := ParseTraceroute(string(output))
			return hops, fmt.Errorf("traceroute %s: %w", address, err)
		}
	}
	return ParseTraceroute(string(output)), nil
}

func (p *TracerouteProbe) args(address string, icmp bool) []string {
	wait := strconv.Itoa(max(1, int(p.wait.Round(time.Second)/time.Second)))
	args := []string{"-q", "1", "-w", wait, "-m", strconv.Itoa(p.maxHops)}
	if icmp {
		args = append([]string{"-I"}, args...)
	}
	return append(args, address)
}

// ParseTraceroute extracts hops from traceroute output. The header line and
// unrecognized lines are skipped.
func ParseTraceroute(output string) []model.Hop {
	hops := []model.Hop{}
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()

		if m := hopNamedRe.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[1])
			rtt, _ := strconv.ParseFloat(m[4], 64)
			name := m[2]
			if name == m[3] {
				name = ""
			}
			hops = append(hops, model.Hop{Number: n, Address: m[3], Name: name, RTT: rtt})
			continue
		}
		if m := hopAddrRe.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[1])
			rtt, _ := strconv.ParseFloat(m[3], 64)
			hops = append(hops, model.Hop{Number: n, Address: m[2], RTT: rtt})
			continue
		}
		if m := hopLostRe.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[1])
			hops = append(hops, model.Hop{Number: n, Lost: true})
		}
	}
	return hops
}
