package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brilliox/brilliox/pkg/logger"
	"github.com/brilliox/brilliox/pkg/security"
)

func serve(h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNewRouter(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(cfg, logger.NewNop(), &Handlers{})
	require.NotNil(t, router)

	w := serve(router, http.MethodGet, "/api/login", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_Routes(t *testing.T) {
	stack := newTestStack(t, nil)
	router := NewRouter(stack.cfg, logger.NewNop(), stack.handlers)

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/", "", http.StatusOK},
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/ready", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/api/translations/en", "", http.StatusOK},
		{http.MethodPost, "/api/login", `{"username":"sara"}`, http.StatusOK},
		{http.MethodGet, "/api/wallet/sara", "", http.StatusOK},
		{http.MethodPost, "/api/chat/sara", `{"message":"hello"}`, http.StatusOK},
		{http.MethodGet, "/api/leads/sara", "", http.StatusOK},
		{http.MethodGet, "/api/leads/sara/scored", "", http.StatusOK},
		{http.MethodGet, "/api/leads/sara/insights", "", http.StatusOK},
		{http.MethodPost, "/api/leads/sara/add", `{"name":"Ali"}`, http.StatusCreated},
		{http.MethodPut, "/api/leads/00000000", `{"notes":"x"}`, http.StatusNotFound},
		{http.MethodDelete, "/api/leads/00000000", "", http.StatusNotFound},
		{http.MethodGet, "/api/stats/sara", "", http.StatusOK},
		{http.MethodGet, "/webhook/lead", "", http.StatusOK},
		{http.MethodGet, "/ws/events", "", http.StatusBadRequest},
		{http.MethodGet, "/api/system/stats", "", http.StatusUnauthorized},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := serve(router, tt.method, tt.path, tt.body, nil)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestRouter_AdminGuard(t *testing.T) {
	stack := newTestStack(t, nil)
	router := NewRouter(stack.cfg, logger.NewNop(), stack.handlers)

	w := serve(router, http.MethodGet, "/api/system/history", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(router, http.MethodGet, "/api/system/history", "", map[string]string{"X-Admin-User": "admin"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(router, http.MethodGet, "/api/system/history", "", basicAuth("admin", "wrong"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	require.NoError(t, stack.users.SetPassword(context.Background(), "sara", "sara-pass"))
	w = serve(router, http.MethodGet, "/api/system/history", "", basicAuth("sara", "sara-pass"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(router, http.MethodGet, "/api/system/history", "", basicAuth("admin", testAdminPassword))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(router, http.MethodPost, "/api/system/rules",
		`{"id":"loop","condition":{"op":"always"},"action":"score_lead"}`, map[string]string{"X-Admin-User": "admin"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Len(t, stack.bus.Rules(), 2)
}

func TestRouter_RateLimit(t *testing.T) {
	stack := newTestStack(t, nil)
	stack.handlers.RateLimiter = security.NewRateLimiter(2, time.Minute, time.Minute)
	router := NewRouter(stack.cfg, logger.NewNop(), stack.handlers)

	for i := 0; i < 2; i++ {
		w := serve(router, http.MethodGet, "/api/wallet/sara", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := serve(router, http.MethodGet, "/api/wallet/sara", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Probes are never throttled.
	w = serve(router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_Dashboard(t *testing.T) {
	stack := newTestStack(t, nil)
	router := NewRouter(stack.cfg, logger.NewNop(), stack.handlers)

	w := serve(router, http.MethodGet, "/app", "", nil)
	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "/app/", w.Header().Get("Location"))

	w = serve(router, http.MethodGet, "/app/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `dir="rtl"`)

	w = serve(router, http.MethodGet, "/app/app.js", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "javascript")

	w = serve(router, http.MethodGet, "/app/leads/abc", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<html")
}

func TestRouter_CORS(t *testing.T) {
	stack := newTestStack(t, nil)
	router := NewRouter(stack.cfg, logger.NewNop(), stack.handlers)

	w := serve(router, http.MethodOptions, "/api/login", "", map[string]string{
		"Origin":                        "https://example.com",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
