package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusCreated, map[string]any{"lead_id": "L1", "score": 85})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"lead_id":"L1","score":85}`, w.Body.String())
}

func TestJSON_NilBody(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusNoContent, nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestJSON_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, map[string]any{"bad": make(chan int)})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeInternalServer, resp.Error.Code)
}

func TestErrorWithDetails(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorWithDetails(w, http.StatusBadRequest, ErrCodeValidationFailed, "Validation failed",
		map[string]any{"username": "required"}, "req-7")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeValidationFailed, resp.Error.Code)
	assert.Equal(t, "req-7", resp.Error.RequestID)
	assert.Equal(t, "required", resp.Error.Details["username"])
}

func TestError_OmitsEmptyDetails(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusNotFound, ErrCodeNotFound, "lead not found", "req-1")

	assert.NotContains(t, w.Body.String(), "details")
	assert.Contains(t, w.Body.String(), `"request_id":"req-1"`)
}

func TestFail(t *testing.T) {
	w := httptest.NewRecorder()
	Fail(w, http.StatusPaymentRequired, "رصيد غير كافٍ", "req-2")

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodePaymentRequired, resp.Error.Code)
	assert.Equal(t, "رصيد غير كافٍ", resp.Error.Message)
}

func TestErrorCodeFromStatus(t *testing.T) {
	tests := map[int]string{
		http.StatusBadRequest:          ErrCodeBadRequest,
		http.StatusUnauthorized:        ErrCodeUnauthorized,
		http.StatusPaymentRequired:     ErrCodePaymentRequired,
		http.StatusForbidden:           ErrCodeForbidden,
		http.StatusNotFound:            ErrCodeNotFound,
		http.StatusConflict:            ErrCodeConflict,
		http.StatusTooManyRequests:     ErrCodeTooManyRequests,
		http.StatusServiceUnavailable:  ErrCodeServiceUnavailable,
		http.StatusGatewayTimeout:      ErrCodeGatewayTimeout,
		http.StatusInternalServerError: ErrCodeInternalServer,
		http.StatusTeapot:              ErrCodeInternalServer,
	}
	for status, want := range tests {
		assert.Equal(t, want, ErrorCodeFromStatus(status), http.StatusText(status))
	}
}
