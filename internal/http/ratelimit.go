package http

import (
	"net/http"

	"mmms/internal/middleware/ratelimit"
)

// rateLimiter applies the per-client limit to API routes only; probes and
// metrics stay reachable while a client is throttled.
type rateLimiter struct {
	*ratelimit.Limiter
	clientIP func(*http.Request) string
}

func newRateLimiter(cfg ratelimit.Config, clientIP func(*http.Request) string) *rateLimiter {
	return &rateLimiter{Limiter: ratelimit.NewLimiter(cfg), clientIP: clientIP}
}

func (rl *rateLimiter) Middleware(onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limited := rl.Limiter.Middleware(rl.clientIP, onLimit)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isAPI(r) || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}
