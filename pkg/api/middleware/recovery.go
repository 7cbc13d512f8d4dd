package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/brilliox/brilliox/pkg/api/response"
	"github.com/brilliox/brilliox/pkg/logger"
)

// Recovery turns a handler panic into a 500 envelope. The panic value and
// stack go to the log only. http.ErrAbortHandler is re-raised.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.ErrorContext(r.Context(), "Panic recovered",
					"error", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				requestID := GetRequestID(r.Context())
				if requestID == "" {
					requestID = "unknown"
				}
				response.Fail(w, http.StatusInternalServerError, "Internal server error", requestID)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
