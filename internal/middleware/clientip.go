package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// IPResolver derives the client address of a request. Forwarding headers
// are honoured only when the connection comes from a trusted proxy.
type IPResolver struct {
	trusted []*net.IPNet
}

// NewIPResolver parses proxy CIDRs; bare addresses are treated as /32 or
// /128. An empty list trusts no proxy.
func NewIPResolver(proxies []string) (*IPResolver, error) {
	r := &IPResolver{}
	for _, raw := range proxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			ip := net.ParseIP(raw)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", raw)
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			raw = fmt.Sprintf("%s/%d", raw, bits)
		}
		_, network, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		r.trusted = append(r.trusted, network)
	}
	return r, nil
}

func (r *IPResolver) isTrusted(ip net.IP) bool {
	if r == nil || ip == nil {
		return false
	}
	for _, network := range r.trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the connection address, unless that address is a trusted
// proxy. In that case the nearest untrusted X-Forwarded-For hop wins, then
// X-Real-IP. A nil resolver only ever uses the connection address.
func (r *IPResolver) ClientIP(req *http.Request) string {
	peer := remoteHost(req)
	if !r.isTrusted(net.ParseIP(peer)) {
		return peer
	}
	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		hops := strings.Split(fwd, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			ip := net.ParseIP(hop)
			if ip == nil {
				break
			}
			if !r.isTrusted(ip) {
				return ip.String()
			}
		}
	}
	if real := net.ParseIP(strings.TrimSpace(req.Header.Get("X-Real-IP"))); real != nil {
		return real.String()
	}
	return peer
}

// ClientIP is the connection address of req with no proxy trusted.
func ClientIP(req *http.Request) string {
	var r *IPResolver
	return r.ClientIP(req)
}

func remoteHost(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
