// Package targets turns free-form user input into monitorable addresses.
package targets

import (
	"net"
	"regexp"
	"strconv"
	"strings"
)

const (
	// MaxRange caps the number of addresses a last-octet range expands to.
	MaxRange = 100
	// MaxSubnet caps the number of addresses a subnet expands to.
	MaxSubnet = 254

	minPrefix = 24
)

var hostnameLabel = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)

// Parse splits text on commas and whitespace and expands each token into
// addresses. Recognized forms: a.b.c.d, a.b.c.d-N, a.b.c.d/M with M in
// [24,32], and hostnames. Invalid tokens are dropped. The result is
// deduplicated, keeping first occurrences in order.
func Parse(text string) []string {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})

	seen := make(map[string]struct{})
	var out []string
	for _, tok := range tokens {
		for _, addr := range expand(tok) {
			if _, dup := seen[addr]; dup {
				continue
			}
			seen[addr] = struct{}{}
			out = append(out, addr)
		}
	}
	return out
}

func expand(tok string) []string {
	switch {
	case strings.Contains(tok, "/"):
		return expandCIDR(tok)
	case strings.Contains(tok, "-") && isIPv4Prefix(tok):
		return expandRange(tok)
	}
	if ip := parseIPv4(tok); ip != nil {
		return []string{ip.String()}
	}
	if IsHostname(tok) {
		return []string{strings.ToLower(tok)}
	}
	return nil
}

// expandRange expands "a.b.c.d-N" over the last octet, inclusive.
func expandRange(tok string) []string {
	base, end, ok := strings.Cut(tok, "-")
	if !ok {
		return nil
	}
	ip := parseIPv4(base)
	if ip == nil {
		return nil
	}
	last, err := strconv.Atoi(end)
	if err != nil || last > 255 || last < int(ip[3]) {
		return nil
	}

	var ips []string
	for o := int(ip[3]); o <= last && len(ips) < MaxRange; o++ {
		next := net.IPv4(ip[0], ip[1], ip[2], byte(o))
		ips = append(ips, next.String())
	}
	return ips
}

// expandCIDR expands a subnet to its host addresses. Network and broadcast
// addresses are excluded when the subnet has more than two addresses.
func expandCIDR(cidr string) []string {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil || ip.To4() == nil {
		return nil
	}
	ones, _ := ipnet.Mask.Size()
	if ones < minPrefix {
		return nil
	}

	var ips []string
	for cur := ip.Mask(ipnet.Mask).To4(); ipnet.Contains(cur); incIP(cur) {
		ips = append(ips, cur.String())
		if cur.Equal(net.IPv4bcast) {
			break
		}
	}
	if len(ips) > 2 {
		ips = ips[1 : len(ips)-1]
	}
	if len(ips) > MaxSubnet {
		ips = ips[:MaxSubnet]
	}
	return ips
}

func incIP(ip net.IP) {
	for j := len(ip) - 1; j >= 0; j-- {
		ip[j]++
		if ip[j] > 0 {
			break
		}
	}
}

// parseIPv4 returns the 4-byte form of a dotted-quad address, or nil.
func parseIPv4(s string) net.IP {
	if strings.Count(s, ".") != 3 {
		return nil
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil
	}
	return ip.To4()
}

func isIPv4Prefix(tok string) bool {
	base, _, _ := strings.Cut(tok, "-")
	return parseIPv4(base) != nil
}

// IsHostname reports whether s is a valid RFC 1123 hostname that is not an
// all-numeric dotted string.
func IsHostname(s string) bool {
	if len(s) == 0 || len(s) > 253 {
		return false
	}
	s = strings.TrimSuffix(s, ".")
	labels := strings.Split(s, ".")
	allNumeric := true
	for _, l := range labels {
		if !hostnameLabel.MatchString(l) {
			return false
		}
		if _, err := strconv.Atoi(l); err != nil {
			allNumeric = false
		}
	}
	return !allNumeric
}
