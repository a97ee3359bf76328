package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDNSResolver_Defaults(t *testing.T) {
	r := NewDNSResolver(DNSResolverOptions{})
	assert.Equal(t, 2*time.Second, r.timeout)
	assert.Equal(t, 1, r.limiter.Burst())
}

func TestDNSResolver_CancelledContext(t *testing.T) {
	r := NewDNSResolver(DNSResolverOptions{Rate: 0.001, Burst: 1, Nameserver: "127.0.0.1"})
	// Drain the single token so the next call has to wait.
	require.True(t, r.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Resolve(ctx, "10.0.0.1")
	assert.Error(t, err)
}
