package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/brilliox/brilliox/config"
	"github.com/brilliox/brilliox/pkg/api/models"
	"github.com/brilliox/brilliox/pkg/api/response"
	"github.com/brilliox/brilliox/pkg/crm"
	"github.com/brilliox/brilliox/pkg/logger"
)

// WebhookHandler receives leads pushed by ad platforms.
type WebhookHandler struct {
	leads  Leads
	cfg    config.WebhookConfig
	owner  string
	logger logger.Logger
}

// NewWebhookHandler creates a webhook handler. Leads are assigned to
// cfg.OwnerID, or to admin when it is empty.
func NewWebhookHandler(leads Leads, cfg config.WebhookConfig, admin string, log logger.Logger) *WebhookHandler {
	owner := strings.TrimSpace(cfg.OwnerID)
	if owner == "" {
		owner = admin
	}
	return &WebhookHandler{leads: leads, cfg: cfg, owner: owner, logger: log}
}

// webhookLead accepts the field names used by the common ad platforms.
type webhookLead struct {
	Name         string `json:"name"`
	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	PhoneNumber  string `json:"phone_number"`
	Email        string `json:"email"`
	Source       string `json:"source"`
	Platform     string `json:"platform"`
	Campaign     string `json:"campaign"`
	CampaignName string `json:"campaign_name"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (l webhookLead) input() crm.LeadInput {
	platform := firstNonEmpty(l.Source, l.Platform, "unknown")
	campaign := firstNonEmpty(l.Campaign, l.CampaignName)
	in := crm.LeadInput{
		Name:     firstNonEmpty(l.Name, l.FullName),
		Phone:    firstNonEmpty(l.Phone, l.PhoneNumber),
		Email:    strings.TrimSpace(l.Email),
		Status:   crm.StatusBaitSent,
		Source:   "ads_" + strings.ToLower(platform),
		Campaign: campaign,
	}
	if campaign != "" {
		in.Notes = "Campaign: " + campaign
	}
	return in
}

// Receive handles POST /webhook/lead.
// @Summary Receive an ad-platform lead
// @Description Accepts lead forms from Meta, TikTok and similar platforms; the lead is owned by the administrator
// @Tags webhook
// @Accept json
// @Produce json
// @Success 200 {object} models.WebhookResponse "Lead stored"
// @Failure 400 {object} response.ErrorResponse "Invalid request body or missing name and phone"
// @Router /webhook/lead [post]
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := getRequestID(ctx)

	var payload webhookLead
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&payload); err != nil && err != io.EOF {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", requestID)
		return
	}

	in := payload.input()
	if in.Name == "" && in.Phone == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "name or phone is required", requestID)
		return
	}

	lead, err := h.leads.AddLead(ctx, h.owner, in)
	if err != nil {
		h.logger.ErrorContext(ctx, "Webhook lead rejected", "source", in.Source, "error", err)
		serviceError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "Webhook lead received",
		"lead_id", lead.ID,
		"owner", h.owner,
		"source", in.Source,
	)
	response.JSON(w, http.StatusOK, models.WebhookResponse{
		Success: true,
		LeadID:  lead.ID,
		Message: "lead received",
	})
}

// Verify handles GET /webhook/lead. Platforms send a challenge that must be
// echoed back when the verify token matches.
// @Summary Webhook verification
// @Tags webhook
// @Produce plain
// @Param hub.mode query string false "Subscription mode"
// @Param hub.verify_token query string false "Verify token"
// @Param hub.challenge query string false "Challenge to echo"
// @Success 200 {string} string "Challenge"
// @Failure 403 {object} response.ErrorResponse "Verification failed"
// @Router /webhook/lead [get]
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := firstNonEmpty(q.Get("hub.mode"), q.Get("mode"))
	token := firstNonEmpty(q.Get("hub.verify_token"), q.Get("hub_verify_token"))
	challenge := firstNonEmpty(q.Get("hub.challenge"), q.Get("hub_challenge"))

	if mode == "" && token == "" && challenge == "" {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	if h.cfg.VerifyToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.VerifyToken)) != 1 {
		h.logger.WarnContext(r.Context(), "Webhook verification failed", "mode", mode)
		response.Error(w, http.StatusForbidden, response.ErrCodeForbidden, "verification failed", getRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, challenge)
}
