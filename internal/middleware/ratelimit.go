package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// window is one client's fixed rate window: requests served so far and when
// the window resets.
type window struct {
	served  int
	resetAt time.Time
}

// RateLimit caps requests per client IP over a fixed window. Generation
// endpoints are already quota-gated per user; this guards the
// unauthenticated surface and blunts polling loops gone wild.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	var mu sync.Mutex
	windows := make(map[string]*window)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := rateLimitKey(r)

			mu.Lock()
			win := windows[ip]
			now := time.Now()
			if win == nil || now.After(win.resetAt) {
				win = &window{resetAt: now.Add(per)}
				windows[ip] = win
			}
			exceeded := win.served >= limit
			if !exceeded {
				win.served++
			}
			mu.Unlock()

			if exceeded {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitKey picks the first parseable IP from X-Forwarded-For, falling
// back to the connection's remote address.
func rateLimitKey(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip != "" && net.ParseIP(ip) != nil {
				return ip
			}
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && net.ParseIP(host) != nil {
		return host
	}
	return r.RemoteAddr
}
