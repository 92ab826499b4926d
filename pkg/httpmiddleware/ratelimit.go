package httpmiddleware

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// Max is the number of requests allowed per key within Window.
	Max int
	// Window is the sliding window size.
	Window time.Duration
	// KeyFunc derives the limiter key from a request. Defaults to the
	// client IP (X-Forwarded-For, then RemoteAddr).
	KeyFunc func(r *http.Request) string
}

type window struct {
	times []time.Time
}

type rateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	max     int
	size    time.Duration
}

func (l *rateLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		w = &window{}
		l.windows[key] = w
	}

	cutoff := now.Add(-l.size)
	kept := w.times[:0]
	for _, t := range w.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.times = kept

	if len(w.times) >= l.max {
		return false
	}
	w.times = append(w.times, now)
	return true
}

// cleanup drops windows with no recent activity so the map does not grow
// unboundedly with one-off clients.
func (l *rateLimiter) cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.size)
	for key, w := range l.windows {
		if len(w.times) == 0 || !w.times[len(w.times)-1].After(cutoff) {
			delete(l.windows, key)
		}
	}
}

// RateLimit returns a sliding-window rate limiting middleware. Requests
// over the limit receive 429 with a Retry-After hint.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientIP
	}
	limiter := &rateLimiter{
		windows: make(map[string]*window),
		max:     cfg.Max,
		size:    cfg.Window,
	}

	go func() {
		ticker := time.NewTicker(cfg.Window)
		defer ticker.Stop()
		for now := range ticker.C {
			limiter.cleanup(now)
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.allow(cfg.KeyFunc(r), time.Now()) {
				w.Header().Set("Retry-After", cfg.Window.String())
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
