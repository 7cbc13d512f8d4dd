package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/brilliox/brilliox/pkg/api/models"
	"github.com/brilliox/brilliox/pkg/api/response"
	"github.com/brilliox/brilliox/pkg/events"
	"github.com/brilliox/brilliox/pkg/logger"
	"github.com/brilliox/brilliox/pkg/version"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// SystemHandler exposes the process bus to administrators.
type SystemHandler struct {
	bus       SystemBus
	gen       Generator
	logger    logger.Logger
	validator *validator.Validate
}

// NewSystemHandler creates a new system handler. gen may be nil.
func NewSystemHandler(bus SystemBus, gen Generator, log logger.Logger) *SystemHandler {
	return &SystemHandler{
		bus:       bus,
		gen:       gen,
		logger:    log,
		validator: models.NewValidator(),
	}
}

// Stats handles GET /api/system/stats.
// @Summary Event bus statistics
// @Tags system
// @Security BasicAuth
// @Produce json
// @Success 200 {object} map[string]interface{} "Bus state and provider availability"
// @Failure 401 {object} response.ErrorResponse "Missing or invalid admin credentials"
// @Failure 403 {object} response.ErrorResponse "Not an administrator"
// @Router /api/system/stats [get]
func (h *SystemHandler) Stats(w http.ResponseWriter, r *http.Request) {
	out := map[string]interface{}{
		"bus":     h.bus.Stats(),
		"ready":   h.bus.Ready(),
		"version": version.Info(),
	}
	if h.gen != nil {
		out["ai_providers"] = h.gen.Providers()
	}
	response.JSON(w, http.StatusOK, out)
}

// History handles GET /api/system/history[?limit=].
// @Summary Recent events
// @Tags system
// @Security BasicAuth
// @Produce json
// @Param limit query int false "Number of records" default(50)
// @Success 200 {object} map[string]interface{} "Event records, oldest first"
// @Failure 400 {object} response.ErrorResponse "Invalid limit"
// @Failure 401 {object} response.ErrorResponse "Missing or invalid admin credentials"
// @Router /api/system/history [get]
func (h *SystemHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest,
				"limit must be a positive integer", getRequestID(r.Context()))
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records := h.bus.History(limit)
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"events": records,
		"count":  len(records),
	})
}

// ListRules handles GET /api/system/rules.
// @Summary List rules
// @Tags system
// @Security BasicAuth
// @Produce json
// @Success 200 {object} map[string]interface{} "Rules in evaluation order"
// @Failure 401 {object} response.ErrorResponse "Missing or invalid admin credentials"
// @Router /api/system/rules [get]
func (h *SystemHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules := h.bus.Rules()
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	})
}

// AddRule handles POST /api/system/rules. A missing id is generated.
// @Summary Add a rule
// @Tags system
// @Security BasicAuth
// @Accept json
// @Produce json
// @Param rule body events.Rule true "Rule"
// @Success 201 {object} events.Rule "Rule added"
// @Failure 400 {object} response.ErrorResponse "Invalid rule"
// @Failure 401 {object} response.ErrorResponse "Missing or invalid admin credentials"
// @Failure 409 {object} response.ErrorResponse "Rule id already exists"
// @Router /api/system/rules [post]
func (h *SystemHandler) AddRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var rule events.Rule
	if !decode(w, r, nil, &rule) {
		return
	}
	if rule.ID == "" {
		rule.ID = "rule_" + uuid.NewString()[:8]
	}
	if rule.Name == "" {
		rule.Name = rule.ID
	}

	if err := h.bus.AddRule(ctx, rule); err != nil {
		if errors.Is(err, events.ErrDuplicateRule) {
			serviceError(w, r, err)
			return
		}
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), getRequestID(ctx))
		return
	}

	h.logger.InfoContext(ctx, "Rule added", "rule_id", rule.ID, "action", rule.Action)
	response.JSON(w, http.StatusCreated, rule)
}

// RemoveRule handles DELETE /api/system/rules/{ruleID}.
// @Summary Remove a rule
// @Tags system
// @Security BasicAuth
// @Produce json
// @Param ruleID path string true "Rule ID"
// @Success 200 {object} models.MessageResponse "Rule removed"
// @Failure 401 {object} response.ErrorResponse "Missing or invalid admin credentials"
// @Failure 404 {object} response.ErrorResponse "Rule not found"
// @Router /api/system/rules/{ruleID} [delete]
func (h *SystemHandler) RemoveRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "ruleID")

	if err := h.bus.RemoveRule(ctx, id); err != nil {
		serviceError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "Rule removed", "rule_id", id)
	response.JSON(w, http.StatusOK, models.MessageResponse{Success: true, Message: "rule removed"})
}

// ListPatterns handles GET /api/system/patterns.
// @Summary List learned patterns
// @Tags system
// @Security BasicAuth
// @Produce json
// @Success 200 {object} map[string]interface{} "Patterns"
// @Failure 401 {object} response.ErrorResponse "Missing or invalid admin credentials"
// @Router /api/system/patterns [get]
func (h *SystemHandler) ListPatterns(w http.ResponseWriter, r *http.Request) {
	patterns := h.bus.Patterns()
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"patterns": patterns,
		"count":    len(patterns),
	})
}

// LearnPattern handles POST /api/system/patterns.
// @Summary Record a pattern
// @Tags system
// @Security BasicAuth
// @Accept json
// @Produce json
// @Param pattern body models.PatternRequest true "Pattern"
// @Success 201 {object} models.MessageResponse "Pattern recorded"
// @Failure 400 {object} response.ErrorResponse "Invalid request body"
// @Failure 401 {object} response.ErrorResponse "Missing or invalid admin credentials"
// @Router /api/system/patterns [post]
func (h *SystemHandler) LearnPattern(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.PatternRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	if err := h.bus.LearnPattern(ctx, events.Pattern(req.Pattern)); err != nil {
		h.logger.WarnContext(ctx, "Pattern learned but not announced", "error", err)
	}
	response.JSON(w, http.StatusCreated, models.MessageResponse{Success: true, Message: "pattern recorded"})
}
