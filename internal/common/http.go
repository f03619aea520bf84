package common

import (
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the address rate limits and logs are keyed by. Behind
// chi's RealIP middleware RemoteAddr already carries the forwarded address;
// the headers are consulted directly for handlers mounted without it. Only
// values that parse as IP addresses are accepted.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, hop := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if addr, ok := parseAddr(hop); ok {
			return addr
		}
	}
	if addr, ok := parseAddr(r.Header.Get("X-Real-IP")); ok {
		return addr
	}
	if addr, ok := parseAddr(r.RemoteAddr); ok {
		return addr
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func parseAddr(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if ap, err := netip.ParseAddrPort(raw); err == nil {
		return ap.Addr().Unmap().String(), true
	}
	if a, err := netip.ParseAddr(strings.Trim(raw, "[]")); err == nil {
		return a.Unmap().String(), true
	}
	return "", false
}
