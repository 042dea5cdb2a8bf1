package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"seaguard/internal/auth"
)

// clientLimiter holds one token bucket per caller for the telemetry ingest
// endpoints. Buckets are never evicted; the key space is bounded by the
// fleet size plus a handful of operator hosts.
type clientLimiter struct {
	mu    sync.Mutex
	rps   rate.Limit
	burst int
	m     map[string]*rate.Limiter
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	if rps <= 0 {
		rps = 50
	}
	if burst <= 0 {
		burst = 100
	}
	return &clientLimiter{rps: rate.Limit(rps), burst: burst, m: make(map[string]*rate.Limiter)}
}

// allowN reserves n samples for the caller. Batch ingest charges one token
// per sample so a batch cannot sidestep the per-sample rate.
func (c *clientLimiter) allowN(key string, n int) bool {
	c.mu.Lock()
	l := c.m[key]
	if l == nil {
		l = rate.NewLimiter(c.rps, c.burst)
		c.m[key] = l
	}
	c.mu.Unlock()
	return l.AllowN(time.Now(), n)
}

// clientKey prefers the authenticated subject; anonymous callers share one
// bucket per remote host.
func clientKey(r *http.Request, p auth.Principal) string {
	if p.Subject != "" {
		return p.Subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
