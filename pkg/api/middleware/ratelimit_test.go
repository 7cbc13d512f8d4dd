package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brilliox/brilliox/pkg/logger"
	"github.com/brilliox/brilliox/pkg/security"
)

type stubLimiter struct {
	allow      bool
	retryAfter time.Duration
	clients    []string
}

func (s *stubLimiter) Allow(clientID string) (bool, time.Duration) {
	s.clients = append(s.clients, clientID)
	return s.allow, s.retryAfter
}

func TestRateLimit_Allows(t *testing.T) {
	lim := &stubLimiter{allow: true}
	handler := RateLimit(lim, security.ClientIP, logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/wallet/alice", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(lim.clients) != 1 || lim.clients[0] != "203.0.113.9" {
		t.Fatalf("limiter keyed by %v, want forwarded client ip", lim.clients)
	}
}

func TestRateLimit_Rejects(t *testing.T) {
	lim := &stubLimiter{allow: false, retryAfter: 1500 * time.Millisecond}
	called := false
	handler := RateLimit(lim, security.ClientIP, logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/chat/alice", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if called {
		t.Fatal("handler should not run when rate limited")
	}
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("Retry-After = %q, want 2", got)
	}
}

func TestRateLimit_RealLimiterBlocks(t *testing.T) {
	lim := security.NewRateLimiter(2, time.Minute, time.Minute)
	handler := RateLimit(lim, security.ClientIP, logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/leads/alice", nil)
		req.RemoteAddr = "198.51.100.7:5555"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("status sequence = %v, want [200 200 429]", codes)
	}
}

func TestRateLimit_NilLimiterPassesThrough(t *testing.T) {
	handler := RateLimit(nil, security.ClientIP, logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
}
