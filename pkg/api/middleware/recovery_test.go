package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brilliox/brilliox/pkg/api/response"
	"github.com/brilliox/brilliox/pkg/logger"
)

func TestRecovery(t *testing.T) {
	tests := []struct {
		name  string
		panic any
	}{
		{"string", "scorer exploded"},
		{"error", errors.New("nil lead")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			log := logger.New(&logger.Config{Level: logger.InfoLevel, Format: "json", Writer: &logs})

			h := RequestID()(Recovery(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				panic(tt.panic)
			})))
			req := httptest.NewRequest(http.MethodPost, "/api/leads/alice/add", nil)
			req.Header.Set(RequestIDHeader, "req-9")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			var resp response.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, response.ErrCodeInternalServer, resp.Error.Code)
			assert.Equal(t, "req-9", resp.Error.RequestID)
			assert.NotContains(t, w.Body.String(), "exploded")
			assert.NotContains(t, w.Body.String(), "nil lead")
			assert.Contains(t, logs.String(), "Panic recovered")
		})
	}
}

func TestRecovery_PassThrough(t *testing.T) {
	h := Recovery(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRecovery_RepanicsAbort(t *testing.T) {
	h := Recovery(logger.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRecovery_NoRequestID(t *testing.T) {
	h := Recovery(logger.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var resp response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unknown", resp.Error.RequestID)
}
