package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/brilliox/brilliox/pkg/api/response"
)

// AdminRealm is advertised in the Basic challenge on admin routes.
const AdminRealm = "brilliox-admin"

// VerifyFunc checks a username and password pair.
type VerifyFunc func(ctx context.Context, username, password string) error

// RequireAdmin admits requests carrying Basic credentials that verify and
// name an administrator. A nil verify rejects everyone.
func RequireAdmin(isAdmin func(username string) bool, verify VerifyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())
			user, pass, ok := r.BasicAuth()
			user = strings.TrimSpace(user)
			if !ok || user == "" || pass == "" {
				w.Header().Set("WWW-Authenticate", `Basic realm="`+AdminRealm+`"`)
				response.Error(w, http.StatusUnauthorized, response.ErrCodeUnauthorized,
					"Admin credentials are required", requestID)
				return
			}
			if verify == nil || verify(r.Context(), user, pass) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="`+AdminRealm+`"`)
				response.Error(w, http.StatusUnauthorized, response.ErrCodeUnauthorized,
					"Invalid admin credentials", requestID)
				return
			}
			if !isAdmin(user) {
				response.Error(w, http.StatusForbidden, response.ErrCodeForbidden,
					"Admin access required", requestID)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
