package middleware

import (
	"fmt"
	"math"
	"net/http"

	"collective-rides/pkg/auth"
	"collective-rides/pkg/common"

	"go.uber.org/zap"
)

// RateLimit applies a per-caller token bucket. Authenticated callers are keyed by user ID,
// anonymous ones by client address.
func RateLimit(limiter *auth.RateLimiter, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + r.RemoteAddr
			if identity, ok := auth.IdentityFromContext(r.Context()); ok {
				key = "user:" + identity.UserID
			}

			if !limiter.Allow(key) {
				logger.Warn("Rate limit exceeded",
					zap.String("key", key),
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
				)
				retryAfter := int(math.Ceil(limiter.RetryAfter().Seconds()))
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				common.RespondError(w, http.StatusTooManyRequests, common.StandardErrorCodes.TooManyRequests, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
