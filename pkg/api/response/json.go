// Package response writes the JSON envelopes shared by the API handlers.
package response

import (
	"encoding/json"
	"net/http"
)

var encodeFailure = []byte(`{"error":{"code":"INTERNAL_SERVER_ERROR","message":"failed to encode response","request_id":""}}` + "\n")

// JSON marshals data before touching the header, so a value that cannot be
// encoded turns into a 500 instead of a truncated body.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	if data == nil {
		w.WriteHeader(status)
		return
	}
	body, err := json.Marshal(data)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(encodeFailure)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// Error writes an error envelope.
func Error(w http.ResponseWriter, status int, code, message, requestID string) {
	ErrorWithDetails(w, status, code, message, nil, requestID)
}

// ErrorWithDetails writes an error envelope with per-field details.
func ErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]any, requestID string) {
	JSON(w, status, ErrorResponse{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: requestID,
	}})
}
