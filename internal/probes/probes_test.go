package probes

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewProber(t *testing.T) {
	p, err := NewProber(MethodICMP, Options{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &ICMPProber{}, p)

	p, err = NewProber(MethodTCP, Options{TCPPorts: []int{22}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &TCPProber{}, p)

	p, err = NewProber(MethodSim, Options{SimSeed: 1}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SimProber{}, p)

	_, err = NewProber("carrier-pigeon", Options{}, nil)
	assert.Error(t, err)
}

func TestTCPProber_OpenPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	m, err := NewTCPProber([]int{port}, time.Second).Probe(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.True(t, m.Reachable)
	assert.GreaterOrEqual(t, m.RTT, 0.0)
}

func TestTCPProber_RefusedCountsAsUp(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	m, err := NewTCPProber([]int{port}, time.Second).Probe(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.True(t, m.Reachable)
}

func TestTCPProber_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewTCPProber(nil, time.Second).Probe(ctx, "127.0.0.1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimProber_Deterministic(t *testing.T) {
	a := NewSimProber(42, 0.3, 0)
	b := NewSimProber(42, 0.3, 0)
	for i := 0; i < 20; i++ {
		ma, _ := a.Probe(context.Background(), "10.0.0.1")
		mb, _ := b.Probe(context.Background(), "10.0.0.1")
		assert.Equal(t, ma, mb)
	}
}

func TestSimProber_LossBounds(t *testing.T) {
	never := NewSimProber(1, 0, 0)
	always := NewSimProber(1, 1, 0)
	for i := 0; i < 50; i++ {
		m, _ := never.Probe(context.Background(), "10.0.0.1")
		assert.True(t, m.Reachable)
		base := baseLatency("10.0.0.1")
		assert.InDelta(t, base, m.RTT, base*0.25+1e-9)

		m, _ = always.Probe(context.Background(), "10.0.0.1")
		assert.False(t, m.Reachable)
	}
}

func TestSimProber_DelayHonoursContext(t *testing.T) {
	p := NewSimProber(1, 0, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Probe(ctx, "10.0.0.1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
