package security

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter manages rate limiting per client. A client that exhausts its
// budget is blocked outright for the block duration.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientState
	limit    rate.Limit
	burst    int
	window   time.Duration
	blockFor time.Duration
	now      func() time.Time
}

type clientState struct {
	limiter      *rate.Limiter
	blockedUntil time.Time
	lastSeen     time.Time
}

// NewRateLimiter allows requests per window for each client.
func NewRateLimiter(requests int, window, blockFor time.Duration) *RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		clients:  make(map[string]*clientState),
		limit:    rate.Limit(float64(requests) / window.Seconds()),
		burst:    requests,
		window:   window,
		blockFor: blockFor,
		now:      time.Now,
	}
}

// Allow reports whether clientID may proceed. When it may not, retryAfter
// is how long the client should wait.
func (rl *RateLimiter) Allow(clientID string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	st, exists := rl.clients[clientID]
	if !exists {
		st = &clientState{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[clientID] = st
	}
	st.lastSeen = now

	if now.Before(st.blockedUntil) {
		return false, st.blockedUntil.Sub(now)
	}

	if st.limiter.AllowN(now, 1) {
		return true, 0
	}

	if rl.blockFor > 0 {
		st.blockedUntil = now.Add(rl.blockFor)
		return false, rl.blockFor
	}
	r := st.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return false, delay
}

// Reconfigure applies new limits. Tracked clients keep their current
// tokens and any active block.
func (rl *RateLimiter) Reconfigure(requests int, window, blockFor time.Duration) {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.limit = rate.Limit(float64(requests) / window.Seconds())
	rl.burst = requests
	rl.window = window
	rl.blockFor = blockFor
	now := rl.now()
	for _, st := range rl.clients {
		st.limiter.SetLimitAt(now, rl.limit)
		st.limiter.SetBurstAt(now, rl.burst)
	}
}

// Prune drops clients idle for longer than the window and not blocked.
func (rl *RateLimiter) Prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for id, st := range rl.clients {
		if now.Sub(st.lastSeen) > rl.window && !now.Before(st.blockedUntil) {
			delete(rl.clients, id)
			removed++
		}
	}
	return removed
}

// Run prunes idle clients every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Prune()
		}
	}
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// ClientIP extracts the caller address, preferring proxy headers.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
