package httpadapter

import (
	"net/http"

	"golang.org/x/time/rate"
)

// rateLimitMiddleware applies a process-wide token-bucket limit to every
// route. Turn execution is expensive (multiple model and store calls per
// request), so the bucket sits in front of the whole surface rather than
// per-endpoint.
func (rt *Router) rateLimitMiddleware(next http.Handler) http.Handler {
	if rt.rateLimitRPS <= 0 {
		return next
	}
	burst := rt.rateLimitBurst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rt.rateLimitRPS), burst)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// backpressureMiddleware bounds concurrent in-flight requests with a
// channel semaphore; saturated requests get an immediate 503 instead of
// queueing behind turns that may hold their deadline for up to a minute.
func (rt *Router) backpressureMiddleware(next http.Handler) http.Handler {
	if rt.maxInFlight <= 0 {
		return next
	}

	slots := make(chan struct{}, rt.maxInFlight)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case slots <- struct{}{}:
			defer func() { <-slots }()
			next.ServeHTTP(w, r)
		default:
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "server is saturated"})
		}
	})
}
