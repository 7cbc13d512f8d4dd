package response

import "net/http"

// ErrorResponse is the envelope of every failed API call.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine-readable code next to the message shown to
// the user. Details holds per-field validation failures.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodePaymentRequired    = "PAYMENT_REQUIRED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInternalServer     = "INTERNAL_SERVER_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeGatewayTimeout     = "GATEWAY_TIMEOUT"
)

var codeByStatus = map[int]string{
	http.StatusBadRequest:         ErrCodeBadRequest,
	http.StatusUnauthorized:       ErrCodeUnauthorized,
	http.StatusPaymentRequired:    ErrCodePaymentRequired,
	http.StatusForbidden:          ErrCodeForbidden,
	http.StatusNotFound:           ErrCodeNotFound,
	http.StatusMethodNotAllowed:   ErrCodeMethodNotAllowed,
	http.StatusConflict:           ErrCodeConflict,
	http.StatusTooManyRequests:    ErrCodeTooManyRequests,
	http.StatusServiceUnavailable: ErrCodeServiceUnavailable,
	http.StatusGatewayTimeout:     ErrCodeGatewayTimeout,
}

// ErrorCodeFromStatus returns the error code for status. Unknown statuses
// report an internal error.
func ErrorCodeFromStatus(status int) string {
	if code, ok := codeByStatus[status]; ok {
		return code
	}
	return ErrCodeInternalServer
}

// Fail writes an error envelope whose code is derived from status.
func Fail(w http.ResponseWriter, status int, message, requestID string) {
	Error(w, status, ErrorCodeFromStatus(status), message, requestID)
}
