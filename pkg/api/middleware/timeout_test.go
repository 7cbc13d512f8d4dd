package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brilliox/brilliox/pkg/api/response"
)

func slowProvider(delay time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
			_, _ = w.Write([]byte(`{"response":"hello"}`))
		case <-r.Context().Done():
		}
	})
}

func TestTimeout_FastHandlerPassesThrough(t *testing.T) {
	w := httptest.NewRecorder()
	Timeout(200*time.Millisecond)(slowProvider(5*time.Millisecond)).
		ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/chat/alice", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"response":"hello"}`, w.Body.String())
}

func TestTimeout_SlowHandlerGets504(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/chat/alice", nil)
	w := httptest.NewRecorder()
	RequestID()(Timeout(30*time.Millisecond)(slowProvider(time.Second))).ServeHTTP(w, req)

	require.Equal(t, http.StatusGatewayTimeout, w.Code)
	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, response.ErrCodeGatewayTimeout, body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)
	assert.NotEqual(t, "unknown", body.Error.RequestID)
}

func TestTimeout_PreservesHeadersAndStatus(t *testing.T) {
	handler := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Lead", "3f9a1c2e")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/leads/alice/add", nil))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "3f9a1c2e", w.Header().Get("X-Lead"))
	assert.Equal(t, `{"success":true}`, w.Body.String())
}

func TestTimeout_LateWriteIsDiscarded(t *testing.T) {
	wrote := make(chan error, 1)
	handler := Timeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		time.Sleep(10 * time.Millisecond)
		_, err := w.Write([]byte("late"))
		wrote <- err
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat/alice", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)

	select {
	case err := <-wrote:
		assert.ErrorIs(t, err, http.ErrHandlerTimeout)
	case <-time.After(time.Second):
		t.Fatal("handler never attempted its late write")
	}
}

func TestTimeout_PropagatesPanic(t *testing.T) {
	handler := Timeout(time.Second)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	assert.PanicsWithValue(t, "boom", func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestTimeout_ZeroDisables(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.Context().Deadline()
		assert.False(t, ok, "no deadline when disabled")
	})
	Timeout(0)(inner).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
