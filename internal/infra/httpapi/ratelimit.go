package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP. Buckets idle for a full
// window are refilled anyway, so they are dropped.
type RateLimiter struct {
	mu         sync.Mutex
	clients    map[string]*clientLimiter
	limit      rate.Limit
	burst      int
	window     time.Duration
	trustProxy bool
	lastSweep  time.Time
	now        func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows requests per window for each client, with bursts up
// to the full window's allowance. Forwarding headers identify the client
// only when trustProxy is set.
func NewRateLimiter(requests int, window time.Duration, trustProxy bool) *RateLimiter {
	return &RateLimiter{
		clients:    make(map[string]*clientLimiter),
		limit:      rate.Limit(float64(requests) / window.Seconds()),
		burst:      requests,
		window:     window,
		trustProxy: trustProxy,
		now:        time.Now,
	}
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	now := rl.now()
	rl.sweepLocked(now)

	c, ok := rl.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = now
	rl.mu.Unlock()

	return c.limiter.AllowN(now, 1)
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	for ip, c := range rl.clients {
		if now.Sub(c.lastSeen) >= rl.window {
			delete(rl.clients, ip)
		}
	}
	rl.lastSweep = now
}

func (rl *RateLimiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(rl.clientIP(r)) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next(w, r)
	}
}

// clientIP is the connection's remote host. Behind a trusted proxy the first
// X-Forwarded-For hop wins, then X-Real-IP.
func (rl *RateLimiter) clientIP(r *http.Request) string {
	if rl.trustProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			return strings.TrimSpace(first)
		}

		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			return realIP
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
