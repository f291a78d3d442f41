// Package iphex normalizes IP addresses to the fixed-width hexadecimal form
// persisted in the temp-account activity table. The prefixed encoding keeps
// IPv4 and IPv6 keys disjoint and makes range scans over the column cheap.
package iphex

import (
	"fmt"
	"net/netip"
	"strings"
)

const (
	prefixV4 = "v4-"
	prefixV6 = "v6-"
)

// FromString parses an IP address and returns its normalized hex form:
// "v4-" followed by 8 uppercase hex digits for IPv4, "v6-" followed by
// 32 uppercase hex digits for IPv6. IPv4-mapped IPv6 addresses normalize
// to their IPv4 form.
func FromString(ip string) (string, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return "", fmt.Errorf("invalid ip address %q: %w", ip, err)
	}
	return FromAddr(addr), nil
}

// FromAddr returns the normalized hex form of an already-parsed address.
func FromAddr(addr netip.Addr) string {
	addr = addr.Unmap()
	if addr.Is4() {
		b := addr.As4()
		return fmt.Sprintf("%s%02X%02X%02X%02X", prefixV4, b[0], b[1], b[2], b[3])
	}
	b := addr.As16()
	var sb strings.Builder
	sb.Grow(len(prefixV6) + 32)
	sb.WriteString(prefixV6)
	for _, octet := range b {
		fmt.Fprintf(&sb, "%02X", octet)
	}
	return sb.String()
}
