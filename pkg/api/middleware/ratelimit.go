package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/brilliox/brilliox/pkg/api/response"
	"github.com/brilliox/brilliox/pkg/logger"
)

// Limiter decides whether a client may proceed. *security.RateLimiter
// satisfies it.
type Limiter interface {
	Allow(clientID string) (bool, time.Duration)
}

// RateLimit rejects requests from clients over budget with 429 and a
// Retry-After header. Clients are keyed by keyFunc.
func RateLimit(limiter Limiter, keyFunc func(*http.Request) string, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := keyFunc(r)
			ok, retryAfter := limiter.Allow(client)
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			log.WarnContext(r.Context(), "Rate limit exceeded",
				"client", client,
				"path", r.URL.Path,
				"retry_after_s", seconds,
			)
			response.Error(w,
				http.StatusTooManyRequests,
				response.ErrCodeTooManyRequests,
				"Too many requests",
				GetRequestID(r.Context()),
			)
		})
	}
}
