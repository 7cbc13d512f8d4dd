package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/brilliox/brilliox/pkg/api/middleware"
	"github.com/brilliox/brilliox/pkg/api/response"
	"github.com/brilliox/brilliox/pkg/crm"
	"github.com/brilliox/brilliox/pkg/events"
	"github.com/brilliox/brilliox/pkg/i18n"
	"github.com/brilliox/brilliox/pkg/security"
	"github.com/brilliox/brilliox/pkg/storage"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

func getRequestID(ctx context.Context) string {
	if reqID := middleware.GetRequestID(ctx); reqID != "" {
		return reqID
	}
	return "unknown"
}

// decode reads a JSON body into dst and validates it. On failure the error
// response has already been written.
func decode(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		msg := "Invalid request body"
		if errors.Is(err, io.EOF) {
			msg = "Request body is required"
		}
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, msg, getRequestID(r.Context()))
		return false
	}
	if v == nil {
		return true
	}
	if err := v.Struct(dst); err != nil {
		response.ErrorWithDetails(w, http.StatusBadRequest, response.ErrCodeValidationFailed,
			"Validation failed", validationDetails(err), getRequestID(r.Context()))
		return false
	}
	return true
}

func validationDetails(err error) map[string]interface{} {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]interface{}{"error": err.Error()}
	}
	fields := make(map[string]interface{}, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if fe.Param() != "" {
			fields[field] = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
		} else {
			fields[field] = fe.Tag()
		}
	}
	return fields
}

// userParam returns the trimmed {userID} path parameter.
func userParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "userID"))
}

// requestLang picks the response language: explicit value, then the lang
// query parameter, then Accept-Language.
func requestLang(r *http.Request, explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" && i18n.Supported(explicit) {
		return explicit
	}
	if q := r.URL.Query().Get("lang"); q != "" && i18n.Supported(q) {
		return q
	}
	return i18n.Match(r.Header.Get("Accept-Language"))
}

// serviceError maps domain errors onto HTTP responses.
func serviceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "Internal server error"
	lang := requestLang(r, "")

	switch {
	case errors.Is(err, crm.ErrInsufficientBalance):
		status, msg = http.StatusPaymentRequired, i18n.T(lang, "error_insufficient_balance")
	case errors.Is(err, crm.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, crm.ErrNotOwner):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, crm.ErrLeadNotFound), errors.Is(err, crm.ErrUserNotFound),
		errors.Is(err, events.ErrRuleNotFound), storage.IsNotFound(err):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, events.ErrDuplicateRule), storage.IsDuplicate(err):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, crm.ErrWrongPassword), errors.Is(err, crm.ErrInvalidStatus),
		errors.Is(err, crm.ErrEmptyLead), errors.Is(err, security.ErrPasswordTooShort),
		errors.Is(err, security.ErrPasswordTooLong):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusGatewayTimeout, "Request timeout"
	}

	response.Fail(w, status, msg, getRequestID(r.Context()))
}
