package utils

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ParseHostNoPort returns the host part (no port) from strings like "ip:port", "[v6]:port", or "ip".
func ParseHostNoPort(s string) string {
	if s == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(s); err == nil {
		return h
	}
	return s
}

// FirstForwardedFor returns the left-most address of an X-Forwarded-For header.
func FirstForwardedFor(xff string) string {
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}

// ClientIP resolves the client address. Proxy headers (X-Forwarded-For,
// then X-Real-IP) are only honoured when trustProxy is set.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, v := range []string{
			FirstForwardedFor(r.Header.Get("X-Forwarded-For")),
			strings.TrimSpace(r.Header.Get("X-Real-IP")),
		} {
			if ip := ParseHostNoPort(v); ip != "" {
				return ip
			}
		}
	}
	return ParseHostNoPort(r.RemoteAddr)
}

// IPMatcher matches addresses against a list of single IPs and prefixes.
type IPMatcher struct {
	prefixes []netip.Prefix
	rejected []string
}

func NewIPMatcher(list []string) *IPMatcher {
	m := &IPMatcher{}
	for _, raw := range list {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if p, err := netip.ParsePrefix(s); err == nil {
			m.prefixes = append(m.prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(s); err == nil {
			m.prefixes = append(m.prefixes, netip.PrefixFrom(a.Unmap(), a.Unmap().BitLen()))
			continue
		}
		m.rejected = append(m.rejected, s)
	}
	return m
}

func (m *IPMatcher) IsEmpty() bool {
	return len(m.prefixes) == 0
}

// Rejected lists the entries that were neither an IP nor a prefix.
func (m *IPMatcher) Rejected() []string {
	return m.rejected
}

func (m *IPMatcher) Allow(ipStr string) bool {
	a, err := netip.ParseAddr(ipStr)
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range m.prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}
