package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/recordkit/recordkit/internal/api"
)

// Middleware returns middleware that enforces per-tenant request quotas. It
// must run after the tenant middleware so the bucket key is resolved. A nil
// limiter disables rate limiting.
func Middleware(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil {
				next.ServeHTTP(w, r)
				return
			}

			res := l.Allow(api.TenantID(r.Context()))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if !res.Allowed {
				retry := int((res.RetryAfter + time.Second - 1) / time.Second)
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				api.WriteError(w, http.StatusTooManyRequests, &api.Error{
					Status:        "error",
					Message:       "You have reached your tenant request quota. Retry after the indicated delay.",
					CorrelationID: api.CorrelationID(r.Context()),
					Category:      api.CategoryRateLimits,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
