package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/brilliox/brilliox/pkg/api/models"
	"github.com/brilliox/brilliox/pkg/api/response"
	"github.com/brilliox/brilliox/pkg/crm"
	"github.com/brilliox/brilliox/pkg/logger"
	"github.com/brilliox/brilliox/pkg/storage"
)

// LeadHandler handles lead pipeline endpoints.
type LeadHandler struct {
	leads     Leads
	users     Users
	scorer    Scorer
	logger    logger.Logger
	validator *validator.Validate
}

// NewLeadHandler creates a new lead handler.
func NewLeadHandler(leads Leads, users Users, scorer Scorer, log logger.Logger) *LeadHandler {
	return &LeadHandler{
		leads:     leads,
		users:     users,
		scorer:    scorer,
		logger:    log,
		validator: models.NewValidator(),
	}
}

// List handles GET /api/leads/{userID}[?status=].
// @Summary List leads
// @Tags leads
// @Produce json
// @Param userID path string true "Owner username"
// @Param status query string false "Filter by status"
// @Success 200 {object} models.LeadListResponse "Leads"
// @Failure 400 {object} response.ErrorResponse "Unknown status"
// @Router /api/leads/{userID} [get]
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userParam(r)
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status != "" && !crm.ValidStatus(status) {
		serviceError(w, r, crm.ErrInvalidStatus)
		return
	}

	leads, err := h.leads.Leads(ctx, userID, status)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to list leads", "user_id", userID, "error", err)
		serviceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, models.LeadListResponse{Leads: nonNilLeads(leads), Count: len(leads)})
}

// Scored handles GET /api/leads/{userID}/scored.
// @Summary List scored leads
// @Description Score every lead of the owner, highest first
// @Tags leads
// @Produce json
// @Param userID path string true "Owner username"
// @Success 200 {object} models.ScoredLeadListResponse "Scored leads"
// @Router /api/leads/{userID}/scored [get]
func (h *LeadHandler) Scored(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userParam(r)

	leads, err := h.leads.Leads(ctx, userID, "")
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to list leads", "user_id", userID, "error", err)
		serviceError(w, r, err)
		return
	}
	scored := h.scorer.ScoreBatch(leads)
	if scored == nil {
		scored = []crm.ScoredLead{}
	}
	response.JSON(w, http.StatusOK, models.ScoredLeadListResponse{Leads: scored, Count: len(scored)})
}

// Insights handles GET /api/leads/{userID}/insights.
// @Summary Pipeline insights
// @Tags leads
// @Produce json
// @Param userID path string true "Owner username"
// @Param lang query string false "Language of the recommendations"
// @Success 200 {object} crm.Insights "Insights"
// @Router /api/leads/{userID}/insights [get]
func (h *LeadHandler) Insights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userParam(r)

	leads, err := h.leads.Leads(ctx, userID, "")
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to list leads", "user_id", userID, "error", err)
		serviceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, h.scorer.Insights(leads, requestLang(r, "")))
}

// Add handles POST /api/leads/{userID}/add.
// @Summary Add a lead
// @Tags leads
// @Accept json
// @Produce json
// @Param userID path string true "Owner username"
// @Param lead body models.AddLeadRequest true "Lead"
// @Success 201 {object} models.AddLeadResponse "Lead created"
// @Failure 400 {object} response.ErrorResponse "Invalid request body or validation error"
// @Router /api/leads/{userID}/add [post]
func (h *LeadHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userParam(r)

	var req models.AddLeadRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	lead, err := h.leads.AddLead(ctx, userID, req.Input())
	if err != nil {
		h.logger.WarnContext(ctx, "Failed to add lead", "user_id", userID, "error", err)
		serviceError(w, r, err)
		return
	}

	response.JSON(w, http.StatusCreated, models.AddLeadResponse{
		Success: true,
		LeadID:  lead.ID,
		Message: "lead added",
	})
}

// Import handles POST /api/leads/{userID}/import.
// @Summary Import leads
// @Description Add a batch of leads; rows without a name and phone are reported, not fatal
// @Tags leads
// @Accept json
// @Produce json
// @Param userID path string true "Owner username"
// @Param request body models.ImportLeadsRequest true "Rows"
// @Success 200 {object} models.ImportLeadsResponse "Import summary"
// @Failure 400 {object} response.ErrorResponse "Invalid request body"
// @Router /api/leads/{userID}/import [post]
func (h *LeadHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userParam(r)

	var req models.ImportLeadsRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	result, err := h.leads.Import(ctx, userID, req.Leads)
	if err != nil {
		h.logger.ErrorContext(ctx, "Lead import failed", "user_id", userID, "error", err)
		serviceError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "Leads imported",
		"user_id", userID,
		"imported", result.Imported,
		"duplicates", result.Duplicates,
		"errors", result.Errors,
	)
	response.JSON(w, http.StatusOK, models.ImportLeadsResponse{
		Success:      true,
		ImportResult: result,
		Message:      fmt.Sprintf("imported %d leads", result.Imported),
	})
}

// Share handles POST /api/leads/{userID}/share.
// @Summary Share a lead
// @Tags leads
// @Accept json
// @Produce json
// @Param userID path string true "Owner username"
// @Param request body models.ShareLeadRequest true "Recipient"
// @Success 200 {object} models.ShareLeadResponse "Share recorded"
// @Failure 400 {object} response.ErrorResponse "Invalid request body or validation error"
// @Failure 403 {object} response.ErrorResponse "Lead belongs to another user"
// @Failure 404 {object} response.ErrorResponse "Lead not found"
// @Router /api/leads/{userID}/share [post]
func (h *LeadHandler) Share(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userParam(r)

	var req models.ShareLeadRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	share, err := h.leads.ShareLead(ctx, userID, req.ShareWith, req.LeadID, req.Status, req.Notes)
	if err != nil {
		h.logger.WarnContext(ctx, "Lead share rejected", "user_id", userID, "lead_id", req.LeadID, "error", err)
		serviceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, models.ShareLeadResponse{Success: true, Share: share})
}

// Update handles PUT /api/leads/{leadID}.
// @Summary Update a lead
// @Tags leads
// @Accept json
// @Produce json
// @Param leadID path string true "Lead ID"
// @Param patch body models.UpdateLeadRequest true "Fields to change"
// @Success 200 {object} storage.Lead "Updated lead"
// @Failure 400 {object} response.ErrorResponse "Invalid request body or validation error"
// @Failure 404 {object} response.ErrorResponse "Lead not found"
// @Router /api/leads/{leadID} [put]
func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	leadID := chi.URLParam(r, "leadID")

	var req models.UpdateLeadRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	lead, err := h.leads.UpdateLead(ctx, leadID, req.Patch())
	if err != nil {
		h.logger.WarnContext(ctx, "Lead update failed", "lead_id", leadID, "error", err)
		serviceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, lead)
}

// Delete handles DELETE /api/leads/{leadID}.
// @Summary Delete a lead
// @Tags leads
// @Produce json
// @Param leadID path string true "Lead ID"
// @Success 200 {object} models.MessageResponse "Lead deleted"
// @Failure 404 {object} response.ErrorResponse "Lead not found"
// @Router /api/leads/{leadID} [delete]
func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	leadID := chi.URLParam(r, "leadID")

	if err := h.leads.DeleteLead(ctx, leadID); err != nil {
		h.logger.WarnContext(ctx, "Lead delete failed", "lead_id", leadID, "error", err)
		serviceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, models.MessageResponse{Success: true, Message: "lead deleted"})
}

// Stats handles GET /api/stats/{userID}.
// @Summary Lead statistics
// @Tags leads
// @Produce json
// @Param userID path string true "Owner username"
// @Success 200 {object} models.StatsResponse "Counts by status and conversion rate"
// @Router /api/stats/{userID} [get]
func (h *LeadHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userParam(r)

	balance, err := h.users.Balance(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to load balance", "user_id", userID, "error", err)
		serviceError(w, r, err)
		return
	}
	stats, err := h.leads.Stats(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to compute stats", "user_id", userID, "error", err)
		serviceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, models.StatsResponse{
		UserID:        userID,
		WalletBalance: balance,
		Leads:         stats,
	})
}

func nonNilLeads(leads []*storage.Lead) []*storage.Lead {
	if leads == nil {
		return []*storage.Lead{}
	}
	return leads
}
