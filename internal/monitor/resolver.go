package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrNoName is returned when a lookup succeeds but yields nothing usable.
var ErrNoName = errors.New("no name found")

// DNSResolver resolves display names: reverse lookups for IP literals, and
// the first forward address for hostnames. Lookups are rate limited.
type DNSResolver struct {
	resolver *net.Resolver
	limiter  *rate.Limiter
	timeout  time.Duration
}

// DNSResolverOptions configures a DNSResolver.
type DNSResolverOptions struct {
	Rate       float64       // lookups per second, 0 disables limiting
	Burst      int           // limiter burst, at least 1
	Timeout    time.Duration // per lookup
	Nameserver string        // optional "ip" or "ip:port" to query instead of the system resolver
}

// NewDNSResolver creates a resolver from opts.
func NewDNSResolver(opts DNSResolverOptions) *DNSResolver {
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	r := net.DefaultResolver
	if opts.Nameserver != "" {
		addr := opts.Nameserver
		if _, _, err := net.SplitHostPort(addr); err != nil {
			addr = net.JoinHostPort(addr, "53")
		}
		r = &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
				d := net.Dialer{Timeout: timeout}
				return d.DialContext(ctx, network, addr)
			},
		}
	}

	return &DNSResolver{
		resolver: r,
		limiter:  rate.NewLimiter(limit, burst),
		timeout:  timeout,
	}
}

// Resolve returns a display name for address.
func (d *DNSResolver) Resolve(ctx context.Context, address string) (string, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if ip := net.ParseIP(address); ip != nil {
		names, err := d.resolver.LookupAddr(ctx, address)
		if err != nil {
			return "", fmt.Errorf("reverse lookup %s: %w", address, err)
		}
		for _, n := range names {
			if n = strings.TrimSuffix(n, "."); n != "" {
				return n, nil
			}
		}
		return "", ErrNoName
	}

	addrs, err := d.resolver.LookupHost(ctx, address)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", address, err)
	}
	if len(addrs) == 0 {
		return "", ErrNoName
	}
	return addrs[0], nil
}
