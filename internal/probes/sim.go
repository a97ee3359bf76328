package probes

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/user/linkpulse/internal/monitor"
)

// SimProber generates synthetic measurements. Each address gets a stable base
// latency with jitter and a configurable loss probability.
type SimProber struct {
	mu     sync.Mutex
	rng    *rand.Rand
	loss   float64
	jitter float64
	delay  time.Duration
}

// NewSimProber creates a simulated prober. loss is a probability in [0,1].
func NewSimProber(seed uint64, loss float64, delay time.Duration) *SimProber {
	if loss < 0 {
		loss = 0
	}
	if loss > 1 {
		loss = 1
	}
	return &SimProber{
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		loss:   loss,
		jitter: 0.25,
		delay:  delay,
	}
}

// Probe returns a synthetic measurement after the configured delay.
func (p *SimProber) Probe(ctx context.Context, address string) (monitor.Measurement, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return monitor.Measurement{}, ctx.Err()
		}
	}

	base := baseLatency(address)

	p.mu.Lock()
	lost := p.rng.Float64() < p.loss
	j := (p.rng.Float64()*2 - 1) * p.jitter
	p.mu.Unlock()

	if lost {
		return monitor.Measurement{Reachable: false}, nil
	}
	return monitor.Measurement{RTT: base * (1 + j), Reachable: true}, nil
}

// baseLatency maps an address to a stable latency between 5 and 205 ms.
func baseLatency(address string) float64 {
	h := fnv.New32a()
	h.Write([]byte(address))
	return 5 + float64(h.Sum32()%200)
}
