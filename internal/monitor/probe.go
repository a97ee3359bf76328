// Package monitor implements the reachability monitoring engine: the target
// registry, the probing scheduler, per-target aggregation and path tracing.
package monitor

import (
	"context"

	"github.com/user/linkpulse/internal/model"
)

// Measurement is the raw outcome of one probe.
type Measurement struct {
	RTT       float64 // milliseconds
	Reachable bool
}

// Prober probes a single address. Implementations enforce their own timeout.
type Prober interface {
	Probe(ctx context.Context, address string) (Measurement, error)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, address string) (Measurement, error)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, address string) (Measurement, error) {
	return f(ctx, address)
}

// Tracer discovers the hop-by-hop path to an address. It may return partial
// hops together with an error.
type Tracer interface {
	Trace(ctx context.Context, address string) ([]model.Hop, error)
}

// TracerFunc adapts a function to the Tracer interface.
type TracerFunc func(ctx context.Context, address string) ([]model.Hop, error)

// Trace calls f.
func (f TracerFunc) Trace(ctx context.Context, address string) ([]model.Hop, error) {
	return f(ctx, address)
}

// TraceSink receives completed traces, e.g. for archiving.
type TraceSink interface {
	Save(result *model.TraceResult) error
}

// Resolver looks up a display name for an address.
type Resolver interface {
	Resolve(ctx context.Context, address string) (string, error)
}
