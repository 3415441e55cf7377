package decision

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const browserUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

// fakeResolver answers from fixed tables; names listed in failing return SERVFAIL.
type fakeResolver struct {
	ptr     map[string][]string
	forward map[string][]string
	failing map[string]bool
}

func (f fakeResolver) LookupAddr(_ context.Context, addr string) ([]string, error) {
	if f.failing[addr] {
		return nil, &net.DNSError{Err: "server misbehaving", Name: addr, IsTemporary: true}
	}
	names, ok := f.ptr[addr]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: addr, IsNotFound: true}
	}
	return names, nil
}

func (f fakeResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	if f.failing[host] {
		return nil, &net.DNSError{Err: "server misbehaving", Name: host, IsTemporary: true}
	}
	addrs, ok := f.forward[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	out := make([]net.IPAddr, len(addrs))
	for i, a := range addrs {
		out[i] = net.IPAddr{IP: net.ParseIP(a)}
	}
	return out, nil
}

type failingStore struct{}

func (failingStore) Take(context.Context, string, int, Bucket) (Take, error) {
	return Take{}, errors.New("connection refused")
}

func newRequest(target, ua, ip string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, target, nil)
	r.Header.Set("User-Agent", ua)
	r.RemoteAddr = ip + ":52100"
	return r
}

func newTestEngine(resolver Resolver, b Bucket) *Engine {
	return NewEngine(nil, TrustedProxies{},
		NewShieldRule(),
		NewBotRule(resolver),
		NewTokenBucketRule(b, NewMemoryBucketStore()),
	)
}

var generous = Bucket{Capacity: 100, Refill: 100, Interval: time.Second}

func TestEngine_AllowsBrowser(t *testing.T) {
	e := newTestEngine(fakeResolver{}, generous)

	dec, err := e.Protect(context.Background(), newRequest("/api/products", browserUA, "203.0.113.7"), 1)
	require.NoError(t, err)

	assert.True(t, dec.IsAllowed())
	assert.False(t, dec.HasSpoofedBot())
	assert.Len(t, dec.Results, 3)
	assert.NotEmpty(t, dec.ID)
}

func TestEngine_RateLimit(t *testing.T) {
	e := newTestEngine(fakeResolver{}, Bucket{Capacity: 2, Refill: 1, Interval: time.Hour})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		dec, err := e.Protect(ctx, newRequest("/api/products", browserUA, "198.51.100.1"), 1)
		require.NoError(t, err)
		require.True(t, dec.IsAllowed(), "request %d should pass", i+1)
	}

	dec, err := e.Protect(ctx, newRequest("/api/products", browserUA, "198.51.100.1"), 1)
	require.NoError(t, err)
	assert.True(t, dec.IsDenied())
	assert.True(t, dec.Reason.IsRateLimit())
	assert.Positive(t, dec.Reason.ResetSeconds)

	// buckets are per client
	other, err := e.Protect(ctx, newRequest("/api/products", browserUA, "198.51.100.2"), 1)
	require.NoError(t, err)
	assert.True(t, other.IsAllowed())
}

func TestEngine_Bots(t *testing.T) {
	resolver := fakeResolver{
		ptr: map[string][]string{
			"66.249.66.1":  {"crawl-66-249-66-1.googlebot.com."},
			"203.0.113.15": {"crawl-66-249-66-1.googlebot.com."},
			"157.55.39.1":  {"msnbot-157-55-39-1.search.msn.com."},
		},
		forward: map[string][]string{
			"crawl-66-249-66-1.googlebot.com": {"66.249.66.1"},
		},
		failing: map[string]bool{
			"66.249.66.2":                       true,
			"msnbot-157-55-39-1.search.msn.com": true,
		},
	}
	e := newTestEngine(resolver, generous)
	ctx := context.Background()

	tests := []struct {
		name        string
		ua          string
		ip          string
		wantDenied  bool
		wantSpoofed bool
	}{
		{"Curl is a tool", "curl/8.5.0", "203.0.113.10", true, false},
		{"Empty user agent", "", "203.0.113.11", true, false},
		{"Generic crawler", "AcmeCrawler/1.0", "203.0.113.12", true, false},
		{"Postman", "PostmanRuntime/7.39.0", "203.0.113.13", true, false},
		{"Verified Googlebot", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", "66.249.66.1", false, false},
		{"Spoofed Googlebot", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", "203.0.113.14", false, true},
		{"PTR without matching forward record", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", "203.0.113.15", false, true},
		{"Reverse lookup failure is unverified", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", "66.249.66.2", false, false},
		{"Forward lookup failure is unverified", "Mozilla/5.0 (compatible; bingbot/2.0; +http://www.bing.com/bingbot.htm)", "157.55.39.1", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, err := e.Protect(ctx, newRequest("/", tt.ua, tt.ip), 1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDenied, dec.IsDenied())
			assert.Equal(t, tt.wantSpoofed, dec.HasSpoofedBot())
			if tt.ip == "66.249.66.1" {
				assert.True(t, dec.Results[1].Reason.Verified)
			}
			if tt.wantDenied {
				assert.True(t, dec.Reason.IsBot())
			}
		})
	}
}

func TestEngine_Shield(t *testing.T) {
	e := newTestEngine(fakeResolver{}, generous)

	for _, target := range []string{
		"/api/products?id=1%27%20OR%20%271%27%3D%271",
		"/static/..%2F..%2Fetc/passwd",
		"/api/products?q=%3Cscript%3Ealert(1)%3C/script%3E",
		"/api/products?id=1%20UNION%20SELECT%20password%20FROM%20users",
	} {
		dec, err := e.Protect(context.Background(), newRequest(target, browserUA, "203.0.113.20"), 1)
		require.NoError(t, err)
		assert.True(t, dec.IsDenied(), target)
		assert.True(t, dec.Reason.IsShield(), target)
		// evaluation stops at the first deny
		assert.Len(t, dec.Results, 1)
	}
}

func TestEngine_StoreFailureIsUnavailable(t *testing.T) {
	e := NewEngine(nil, TrustedProxies{}, NewTokenBucketRule(generous, failingStore{}))

	_, err := e.Protect(context.Background(), newRequest("/", browserUA, "203.0.113.30"), 1)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestClientIP_IgnoresForwardingHeaders(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.5:4000"
	r.Header.Set("X-Real-IP", "192.0.2.9")
	r.Header.Set("X-Forwarded-For", "192.0.2.1, 10.0.0.1")

	assert.Equal(t, "10.0.0.5", ClientIP(r))
	assert.Equal(t, "10.0.0.5", PeerIP(r))
}

func TestTrustedProxies_ClientIP(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 127.0.0.1 ", ""})
	require.NoError(t, err)

	tests := []struct {
		name   string
		remote string
		xff    string
		xrip   string
		want   string
	}{
		{"untrusted peer keeps its address", "203.0.113.50:1000", "66.249.66.1", "66.249.66.1", "203.0.113.50"},
		{"trusted peer, single hop", "10.0.0.5:1000", "192.0.2.1", "", "192.0.2.1"},
		{"client-prepended hops are skipped", "10.0.0.5:1000", "6.6.6.6, 192.0.2.1, 10.0.0.9", "", "192.0.2.1"},
		{"X-Real-IP fallback", "127.0.0.1:1000", "", "192.0.2.9", "192.0.2.9"},
		{"garbage ends the chain", "10.0.0.5:1000", "not-an-ip", "", "10.0.0.5"},
		{"no headers", "10.0.0.5:1000", "", "", "10.0.0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xrip != "" {
				r.Header.Set("X-Real-IP", tt.xrip)
			}
			assert.Equal(t, tt.want, proxies.ClientIP(r))
		})
	}
}

func TestParseTrustedProxies_Invalid(t *testing.T) {
	_, err := ParseTrustedProxies([]string{"10.0.0.0/33"})
	assert.Error(t, err)

	_, err = ParseTrustedProxies([]string{"proxy.internal"})
	assert.Error(t, err)
}

func TestEngine_RotatingForwardedForSharesOneBucket(t *testing.T) {
	e := newTestEngine(fakeResolver{}, Bucket{Capacity: 10, Refill: 5, Interval: 10 * time.Second})
	ctx := context.Background()

	denied := 0
	for i := 0; i < 30; i++ {
		r := newRequest("/api/products", browserUA, "192.0.2.1")
		r.Header.Set("X-Forwarded-For", fmt.Sprintf("198.18.0.%d", i+1))
		dec, err := e.Protect(ctx, r, 1)
		require.NoError(t, err)
		if dec.IsDenied() {
			denied++
		}
	}
	assert.Equal(t, 20, denied)
}

func TestEngine_ForgedForwardedForDoesNotVerifyCrawler(t *testing.T) {
	resolver := fakeResolver{
		ptr:     map[string][]string{"66.249.66.1": {"crawl-66-249-66-1.googlebot.com."}},
		forward: map[string][]string{"crawl-66-249-66-1.googlebot.com": {"66.249.66.1"}},
	}
	e := newTestEngine(resolver, generous)

	r := newRequest("/", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", "203.0.113.60")
	r.Header.Set("X-Forwarded-For", "66.249.66.1")

	dec, err := e.Protect(context.Background(), r, 1)
	require.NoError(t, err)
	assert.True(t, dec.HasSpoofedBot())
}
