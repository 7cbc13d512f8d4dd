package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brilliox/brilliox/pkg/api/models"
	"github.com/brilliox/brilliox/pkg/api/response"
)

func TestAuthHandler_LoginCreatesAccount(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/login", models.LoginRequest{Username: "  sara  "})
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.LoginResponse
	decodeBody(t, w, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "sara", resp.UserID)
	assert.Equal(t, testBilling.DefaultBalance, resp.WalletBalance)
	assert.False(t, resp.IsAdmin)
	assert.False(t, resp.HasPassword)
}

func TestAuthHandler_LoginAdmin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/login", models.LoginRequest{Username: "admin"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.LoginResponse
	decodeBody(t, w, &resp)
	assert.True(t, resp.IsAdmin)
}

func TestAuthHandler_PasswordFlow(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/login", models.LoginRequest{Username: "omar"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/user/omar/change-password", models.ChangePasswordRequest{NewPassword: "secret123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// A password-protected account refuses username-only login.
	w = env.do(t, http.MethodPost, "/api/login", models.LoginRequest{Username: "omar"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/login", models.LoginRequest{Username: "omar", Password: "wrong-one"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/login", models.LoginRequest{Username: "omar", Password: "secret123"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.LoginResponse
	decodeBody(t, w, &resp)
	assert.True(t, resp.HasPassword)

	w = env.do(t, http.MethodPost, "/api/user/omar/change-password", models.ChangePasswordRequest{
		OldPassword: "nope",
		NewPassword: "another123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_LoginUnknownUserWithPassword(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/login", models.LoginRequest{Username: "ghost", Password: "whatever1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// No account is created by a failed login.
	_, err := env.users.Login(t.Context(), "ghost", "whatever1")
	assert.Error(t, err)
	w = env.do(t, http.MethodPost, "/api/user/ghost/change-password", models.ChangePasswordRequest{NewPassword: "secret123"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthHandler_LoginValidation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/login", `{"username": ""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var errResp response.ErrorResponse
	decodeBody(t, w, &errResp)
	assert.Equal(t, response.ErrCodeValidationFailed, errResp.Error.Code)
	assert.Contains(t, errResp.Error.Details, "username")

	w = env.do(t, http.MethodPost, "/api/login", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/login", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_Wallet(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/wallet/layla", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.WalletResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, "layla", resp.UserID)
	assert.Equal(t, testBilling.DefaultBalance, resp.WalletBalance)
}
