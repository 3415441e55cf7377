package decision

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Details is the part of an HTTP request the rules look at.
type Details struct {
	IP        string            `json:"ip"`
	Method    string            `json:"method"`
	Host      string            `json:"host"`
	Path      string            `json:"path"`
	Query     string            `json:"query,omitempty"`
	UserAgent string            `json:"user_agent"`
	Headers   map[string]string `json:"headers,omitempty"`
}

var forwardedHeaders = []string{"Accept", "Accept-Language", "Accept-Encoding", "Referer", "Origin"}

// DetailsFromRequest describes r, taking the client IP from proxies.
func DetailsFromRequest(r *http.Request, proxies TrustedProxies) Details {
	d := Details{
		IP:        proxies.ClientIP(r),
		Method:    r.Method,
		Host:      r.Host,
		Path:      r.URL.Path,
		Query:     r.URL.RawQuery,
		UserAgent: r.UserAgent(),
		Headers:   map[string]string{},
	}
	for _, h := range forwardedHeaders {
		if v := r.Header.Get(h); v != "" {
			d.Headers[h] = v
		}
	}
	return d
}

// TrustedProxies lists the peers allowed to name the client through
// X-Forwarded-For or X-Real-IP. The zero value trusts nobody.
type TrustedProxies struct {
	prefixes []netip.Prefix
}

// ParseTrustedProxies accepts IP addresses and CIDR ranges.
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	var t TrustedProxies
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			prefix, err := netip.ParsePrefix(e)
			if err != nil {
				return TrustedProxies{}, fmt.Errorf("invalid trusted proxy %q: %w", e, err)
			}
			t.prefixes = append(t.prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return TrustedProxies{}, fmt.Errorf("invalid trusted proxy %q: %w", e, err)
		}
		addr = addr.Unmap()
		t.prefixes = append(t.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return t, nil
}

func (t TrustedProxies) trusts(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range t.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the peer address unless the peer is a trusted proxy. Behind
// trusted proxies X-Forwarded-For is read right to left and the first hop that
// is not itself trusted is the client; X-Real-IP is the fallback.
func (t TrustedProxies) ClientIP(r *http.Request) string {
	peer := PeerIP(r)
	addr, err := netip.ParseAddr(peer)
	if err != nil || !t.trusts(addr) {
		return peer
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				// a hop we cannot read ends the trusted chain
				break
			}
			if !t.trusts(hop) {
				return hop.Unmap().String()
			}
		}
	}
	if xrip, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return xrip.Unmap().String()
	}
	return peer
}

// ClientIP is the peer address of r; forwarding headers are ignored.
func ClientIP(r *http.Request) string {
	return TrustedProxies{}.ClientIP(r)
}

// PeerIP is the host part of r.RemoteAddr.
func PeerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
