package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"

	"github.com/brilliox/brilliox/config"
	"github.com/brilliox/brilliox/pkg/ai"
	"github.com/brilliox/brilliox/pkg/api/models"
	"github.com/brilliox/brilliox/pkg/api/response"
	"github.com/brilliox/brilliox/pkg/crm"
	"github.com/brilliox/brilliox/pkg/i18n"
	"github.com/brilliox/brilliox/pkg/logger"
	"github.com/brilliox/brilliox/pkg/security"
)

const (
	maxChatRunes = 5000
	searchURL    = "https://www.google.com/search?q="
)

// AIHandler serves the billed AI endpoints: chat, lead hunting and ad copy.
type AIHandler struct {
	generator Generator
	users     Users
	billing   config.BillingConfig
	sanitizer *security.Sanitizer
	logger    logger.Logger
	validator *validator.Validate
}

// NewAIHandler creates a new AI handler.
func NewAIHandler(gen Generator, users Users, billing config.BillingConfig, sanitizer *security.Sanitizer, log logger.Logger) *AIHandler {
	if sanitizer == nil {
		sanitizer = security.NewSanitizer(maxChatRunes)
	}
	return &AIHandler{
		generator: gen,
		users:     users,
		billing:   billing,
		sanitizer: sanitizer,
		logger:    log,
		validator: models.NewValidator(),
	}
}

// Chat handles POST /api/chat/{userID}. The reply is always 200 with a
// result body; tokens are deducted only for successful generations.
// @Summary Chat with the assistant
// @Description Generate a reply through the provider fallback chain and charge the chat cost on success
// @Tags ai
// @Accept json
// @Produce json
// @Param userID path string true "Username"
// @Param request body models.ChatRequest true "Chat message"
// @Success 200 {object} models.ChatResponse "Generation result"
// @Failure 400 {object} response.ErrorResponse "Invalid request body or empty message"
// @Router /api/chat/{userID} [post]
func (h *AIHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userParam(r)

	var req models.ChatRequest
	if !decode(w, r, h.validator, &req) {
		return
	}
	message := h.sanitizer.CleanN(req.Message, maxChatRunes)
	if message == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "message is empty", getRequestID(ctx))
		return
	}
	lang := requestLang(r, req.Lang)

	result := h.generator.Generate(ctx, ai.Request{
		Prompt:   message,
		Variant:  ai.VariantDefault,
		UseCache: true,
		Cost:     h.billing.ChatCost,
		Lang:     lang,
	})

	resp := models.ChatResponse{Result: result}
	if result.Success {
		balance := h.charge(ctx, userID, result.TokensUsed)
		resp.RemainingBalance = &balance
	}
	response.JSON(w, http.StatusOK, resp)
}

// Hunt handles POST /api/hunt/{userID}.
// @Summary Build a lead hunt query
// @Description Turn a profession and location into a search query for finding leads
// @Tags ai
// @Accept json
// @Produce json
// @Param userID path string true "Username"
// @Param request body models.HuntRequest true "Hunt parameters"
// @Success 200 {object} models.HuntResponse "Search query"
// @Failure 400 {object} response.ErrorResponse "Invalid request body or validation error"
// @Failure 402 {object} response.ErrorResponse "Insufficient balance"
// @Router /api/hunt/{userID} [post]
func (h *AIHandler) Hunt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userParam(r)

	var req models.HuntRequest
	if !decode(w, r, h.validator, &req) {
		return
	}
	balance, ok := h.requireBalance(w, r, userID, h.billing.HuntCost)
	if !ok {
		return
	}

	query, result := h.generator.HuntQuery(ctx,
		h.sanitizer.Clean(req.Profession),
		h.sanitizer.Clean(req.Location),
		h.sanitizer.Clean(req.Extra),
	)
	if !result.Success || query == "" {
		response.JSON(w, http.StatusOK, models.HuntResponse{
			Success:          false,
			RemainingBalance: balance,
			Error:            i18n.T(requestLang(r, ""), "hunt_failed"),
		})
		return
	}

	response.JSON(w, http.StatusOK, models.HuntResponse{
		Success:          true,
		Query:            query,
		SearchURL:        searchURL + url.QueryEscape(query),
		Provider:         result.Provider,
		TokensUsed:       h.billing.HuntCost,
		RemainingBalance: h.charge(ctx, userID, h.billing.HuntCost),
	})
}

// Ads handles POST /api/ads/{userID}.
// @Summary Write ad copy
// @Description Generate a headline, body and call to action for a product
// @Tags ai
// @Accept json
// @Produce json
// @Param userID path string true "Username"
// @Param request body models.AdRequest true "Product and audience"
// @Success 200 {object} models.AdResponse "Ad copy"
// @Failure 400 {object} response.ErrorResponse "Invalid request body or validation error"
// @Failure 402 {object} response.ErrorResponse "Insufficient balance"
// @Router /api/ads/{userID} [post]
func (h *AIHandler) Ads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userParam(r)

	var req models.AdRequest
	if !decode(w, r, h.validator, &req) {
		return
	}
	balance, ok := h.requireBalance(w, r, userID, h.billing.AdCost)
	if !ok {
		return
	}

	ad := h.generator.AdCopy(ctx,
		h.sanitizer.Clean(req.Product),
		h.sanitizer.Clean(req.Description),
		h.sanitizer.Clean(req.Audience),
		req.Platform,
		requestLang(r, req.Lang),
	)
	resp := models.AdResponse{
		Success:          ad.Result.Success,
		Ad:               ad,
		Provider:         ad.Result.Provider,
		RemainingBalance: balance,
	}
	if ad.Result.Success {
		resp.TokensUsed = h.billing.AdCost
		resp.RemainingBalance = h.charge(ctx, userID, h.billing.AdCost)
	} else {
		resp.Error = ad.Body
	}
	response.JSON(w, http.StatusOK, resp)
}

// requireBalance writes 402 when the user cannot afford cost.
func (h *AIHandler) requireBalance(w http.ResponseWriter, r *http.Request, userID string, cost int) (int, bool) {
	ok, balance, err := h.users.CanAfford(r.Context(), userID, cost)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Balance check failed", "user_id", userID, "error", err)
		serviceError(w, r, err)
		return 0, false
	}
	if !ok {
		serviceError(w, r, crm.ErrInsufficientBalance)
		return balance, false
	}
	return balance, true
}

// charge deducts tokens and returns the balance afterwards. A concurrent
// spend that drains the wallet leaves the balance untouched.
func (h *AIHandler) charge(ctx context.Context, userID string, tokens int) int {
	if tokens <= 0 {
		balance, _ := h.users.Balance(ctx, userID)
		return balance
	}
	balance, err := h.users.Deduct(ctx, userID, tokens)
	if err != nil {
		if !errors.Is(err, crm.ErrInsufficientBalance) {
			h.logger.ErrorContext(ctx, "Token deduction failed", "user_id", userID, "tokens", tokens, "error", err)
		} else {
			h.logger.WarnContext(ctx, "Balance too low to charge", "user_id", userID, "tokens", tokens)
		}
		balance, _ = h.users.Balance(ctx, userID)
	}
	return balance
}
