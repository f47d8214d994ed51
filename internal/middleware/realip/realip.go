// Package realip resolves the originating client IP for a request,
// honoring X-Forwarded-For only when the peer is a trusted proxy.
package realip

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// ClientIPKey is the context key for the resolved client IP
	ClientIPKey contextKey = "client_ip"
)

// Config holds the configuration for the real IP middleware
type Config struct {
	// TrustProxy enables X-Forwarded-For header parsing
	TrustProxy bool
	// TrustedProxies is a list of CIDR ranges (or single addresses) for trusted proxies
	TrustedProxies []string
}

// Middleware returns an HTTP middleware that resolves the originating client
// IP and stores it on the request context. Forwarding headers are consulted
// only when the immediate peer is listed in TrustedProxies.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	var trusted []netip.Prefix
	if cfg.TrustProxy {
		trusted = parsePrefixes(cfg.TrustedProxies)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := resolveClientIP(r, cfg.TrustProxy, trusted)
			ctx := context.WithValue(r.Context(), ClientIPKey, clientIP)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// parsePrefixes converts the configured entries to prefixes. Plain addresses
// become single-host prefixes; unparseable entries are skipped.
func parsePrefixes(entries []string) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		if p, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			addr = addr.Unmap()
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return prefixes
}

// resolveClientIP gets the originating client IP for the request
func resolveClientIP(r *http.Request, trustProxy bool, trusted []netip.Prefix) string {
	remoteIP := stripPort(r.RemoteAddr)

	// Without proxy trust the peer address is the client
	if !trustProxy {
		return remoteIP
	}

	// A forwarding header only means something when the peer is one of ours
	if !isTrusted(remoteIP, trusted) {
		return remoteIP
	}

	// X-Forwarded-For is "client, proxy1, proxy2, ...". Walk right to left:
	// the first hop that is not a trusted proxy is the client.
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
		return remoteIP
	}

	hops := strings.Split(xff, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !isTrusted(hop, trusted) {
			return hop
		}
	}

	// Every hop is a trusted proxy, so the leftmost entry is the client
	if len(hops) > 0 {
		return strings.TrimSpace(hops[0])
	}

	return remoteIP
}

// stripPort extracts the host part of an address:port string
func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		// Already a bare address
		return addr
	}
	return host
}

// isTrusted checks whether an IP falls inside one of the trusted prefixes
func isTrusted(ipStr string, trusted []netip.Prefix) bool {
	addr, err := netip.ParseAddr(ipStr)
	if err != nil {
		return false
	}
	// Unmap so IPv4-mapped IPv6 addresses match IPv4 prefixes
	addr = addr.Unmap()

	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// GetClientIP retrieves the resolved client IP from the request context.
// Falls back to RemoteAddr if the middleware did not run.
func GetClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(ClientIPKey).(string); ok && ip != "" {
		return ip
	}
	return stripPort(r.RemoteAddr)
}
