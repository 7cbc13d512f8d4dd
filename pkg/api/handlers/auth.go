package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/brilliox/brilliox/pkg/api/models"
	"github.com/brilliox/brilliox/pkg/api/response"
	"github.com/brilliox/brilliox/pkg/crm"
	"github.com/brilliox/brilliox/pkg/logger"
	"github.com/brilliox/brilliox/pkg/storage"
)

// AuthHandler handles login, password and wallet endpoints.
type AuthHandler struct {
	users     Users
	logger    logger.Logger
	validator *validator.Validate
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(users Users, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		users:     users,
		logger:    log,
		validator: models.NewValidator(),
	}
}

// Login handles POST /api/login. A username without a password logs in (or
// registers) only while the account has no password set.
// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Credentials"
// @Success 200 {object} models.LoginResponse "Account summary"
// @Failure 400 {object} response.ErrorResponse "Invalid request body"
// @Failure 401 {object} response.ErrorResponse "Invalid credentials"
// @Router /api/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.LoginRequest
	if !decode(w, r, h.validator, &req) {
		return
	}
	username := strings.TrimSpace(req.Username)

	var (
		user *storage.User
		err  error
	)
	if req.Password != "" {
		user, err = h.users.Login(ctx, username, req.Password)
	} else {
		user, err = h.users.GetOrCreate(ctx, username)
		if err == nil && user.PasswordHash != "" {
			err = crm.ErrInvalidCredentials
		}
	}
	if err != nil {
		if !errors.Is(err, crm.ErrInvalidCredentials) {
			h.logger.ErrorContext(ctx, "Login failed", "username", username, "error", err)
		}
		serviceError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, models.LoginResponse{
		Success:       true,
		UserID:        user.Username,
		WalletBalance: user.WalletBalance,
		IsAdmin:       user.IsAdmin || h.users.IsAdmin(user.Username),
		HasPassword:   user.PasswordHash != "",
	})
}

// ChangePassword handles POST /api/user/{userID}/change-password.
// @Summary Change password
// @Tags auth
// @Accept json
// @Produce json
// @Param userID path string true "Username"
// @Param request body models.ChangePasswordRequest true "Old and new password"
// @Success 200 {object} models.MessageResponse "Password changed"
// @Failure 400 {object} response.ErrorResponse "Old password does not match or policy violated"
// @Failure 404 {object} response.ErrorResponse "User not found"
// @Router /api/user/{userID}/change-password [post]
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userParam(r)

	var req models.ChangePasswordRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	if err := h.users.ChangePassword(ctx, userID, req.OldPassword, req.NewPassword); err != nil {
		h.logger.WarnContext(ctx, "Password change rejected", "user_id", userID, "error", err)
		serviceError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "Password changed", "user_id", userID)
	response.JSON(w, http.StatusOK, models.MessageResponse{Success: true, Message: "password changed"})
}

// Wallet handles GET /api/wallet/{userID}.
// @Summary Get wallet balance
// @Tags auth
// @Produce json
// @Param userID path string true "Username"
// @Success 200 {object} models.WalletResponse "Balance"
// @Router /api/wallet/{userID} [get]
func (h *AuthHandler) Wallet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userParam(r)

	user, err := h.users.GetOrCreate(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to load wallet", "user_id", userID, "error", err)
		serviceError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, models.WalletResponse{
		UserID:        user.Username,
		WalletBalance: user.WalletBalance,
		IsAdmin:       user.IsAdmin || h.users.IsAdmin(user.Username),
	})
}
