// Package models defines API request/response data structures.
package models

import (
	"github.com/brilliox/brilliox/pkg/ai"
	"github.com/brilliox/brilliox/pkg/crm"
	"github.com/brilliox/brilliox/pkg/storage"
)

// LoginRequest logs in or registers a user. Accounts without a password
// may log in by username alone.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	Password string `json:"password,omitempty" validate:"omitempty,max=128"`
}

// LoginResponse is returned by POST /api/login.
type LoginResponse struct {
	Success       bool   `json:"success"`
	UserID        string `json:"user_id"`
	WalletBalance int    `json:"wallet_balance"`
	IsAdmin       bool   `json:"is_admin"`
	HasPassword   bool   `json:"has_password"`
}

// ChangePasswordRequest replaces a user's password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"max=128"`
	NewPassword string `json:"new_password" validate:"required,min=4,max=128"`
}

// WalletResponse reports a user's token balance.
type WalletResponse struct {
	UserID        string `json:"user_id"`
	WalletBalance int    `json:"wallet_balance"`
	IsAdmin       bool   `json:"is_admin"`
}

// MessageResponse is a generic success acknowledgement.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ChatRequest is one chat turn.
type ChatRequest struct {
	Message string `json:"message" validate:"required"`
	Lang    string `json:"lang,omitempty" validate:"omitempty,max=16"`
}

// ChatResponse is the generation result plus the balance after billing.
type ChatResponse struct {
	ai.Result
	RemainingBalance *int `json:"remaining_balance,omitempty"`
}

// HuntRequest asks for a lead search query.
type HuntRequest struct {
	Profession string `json:"profession" validate:"required,max=200"`
	Location   string `json:"location,omitempty" validate:"max=200"`
	Extra      string `json:"extra,omitempty" validate:"max=500"`
}

// HuntResponse carries the generated search query.
type HuntResponse struct {
	Success          bool   `json:"success"`
	Query            string `json:"query,omitempty"`
	SearchURL        string `json:"search_url,omitempty"`
	Provider         string `json:"provider,omitempty"`
	TokensUsed       int    `json:"tokens_used"`
	RemainingBalance int    `json:"remaining_balance"`
	Error            string `json:"error,omitempty"`
}

// AdRequest asks for ad copy.
type AdRequest struct {
	Product     string `json:"product" validate:"required,max=200"`
	Description string `json:"description,omitempty" validate:"max=2000"`
	Audience    string `json:"audience,omitempty" validate:"max=500"`
	Platform    string `json:"platform,omitempty" validate:"omitempty,oneof=facebook instagram google tiktok snapchat linkedin twitter"`
	Lang        string `json:"lang,omitempty" validate:"omitempty,max=16"`
}

// AdResponse carries the generated ad copy.
type AdResponse struct {
	Success          bool      `json:"success"`
	Ad               ai.AdCopy `json:"ad"`
	Provider         string    `json:"provider,omitempty"`
	TokensUsed       int       `json:"tokens_used"`
	RemainingBalance int       `json:"remaining_balance"`
	Error            string    `json:"error,omitempty"`
}

// AddLeadRequest creates a lead.
type AddLeadRequest struct {
	Name     string `json:"name" validate:"required_without=Phone,max=200"`
	Phone    string `json:"phone" validate:"required_without=Name,max=50"`
	Email    string `json:"email,omitempty" validate:"omitempty,email,max=200"`
	Status   string `json:"status,omitempty" validate:"omitempty,lead_status"`
	Notes    string `json:"notes,omitempty" validate:"max=5000"`
	Source   string `json:"source,omitempty" validate:"max=100"`
	Campaign string `json:"campaign,omitempty" validate:"max=200"`
}

// Input converts the request to a service input.
func (r AddLeadRequest) Input() crm.LeadInput {
	return crm.LeadInput{
		Name:     r.Name,
		Phone:    r.Phone,
		Email:    r.Email,
		Status:   r.Status,
		Notes:    r.Notes,
		Source:   r.Source,
		Campaign: r.Campaign,
	}
}

// AddLeadResponse is returned when a lead is created.
type AddLeadResponse struct {
	Success bool   `json:"success"`
	LeadID  string `json:"lead_id"`
	Message string `json:"message,omitempty"`
}

// UpdateLeadRequest changes selected lead fields.
type UpdateLeadRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Email    *string `json:"email,omitempty" validate:"omitempty,max=200"`
	Status   *string `json:"status,omitempty" validate:"omitempty,lead_status"`
	Notes    *string `json:"notes,omitempty" validate:"omitempty,max=5000"`
	Campaign *string `json:"campaign,omitempty" validate:"omitempty,max=200"`
}

// Patch converts the request to a service patch.
func (r UpdateLeadRequest) Patch() crm.LeadPatch {
	return crm.LeadPatch{
		Name:     r.Name,
		Phone:    r.Phone,
		Email:    r.Email,
		Status:   r.Status,
		Notes:    r.Notes,
		Campaign: r.Campaign,
	}
}

// ImportLeadsRequest bulk-creates leads. Rows are validated by the service
// so one bad row does not reject the batch.
type ImportLeadsRequest struct {
	Leads []crm.LeadInput `json:"leads" validate:"required,min=1,max=1000"`
}

// ImportLeadsResponse reports the import outcome.
type ImportLeadsResponse struct {
	Success bool `json:"success"`
	crm.ImportResult
	Message string `json:"message,omitempty"`
}

// ShareLeadRequest hands a lead to another user.
type ShareLeadRequest struct {
	LeadID    string `json:"lead_id" validate:"required"`
	ShareWith string `json:"share_with" validate:"required,max=64"`
	Status    string `json:"status,omitempty" validate:"max=50"`
	Notes     string `json:"notes,omitempty" validate:"max=2000"`
}

// ShareLeadResponse confirms a share.
type ShareLeadResponse struct {
	Success bool           `json:"success"`
	Share   *storage.Share `json:"share"`
}

// LeadListResponse lists leads.
type LeadListResponse struct {
	Leads []*storage.Lead `json:"leads"`
	Count int             `json:"count"`
}

// ScoredLeadListResponse lists leads with their scoring.
type ScoredLeadListResponse struct {
	Leads []crm.ScoredLead `json:"leads"`
	Count int              `json:"count"`
}

// StatsResponse summarizes a user's account.
type StatsResponse struct {
	UserID        string        `json:"user_id"`
	WalletBalance int           `json:"wallet_balance"`
	Leads         crm.LeadStats `json:"leads"`
}

// WebhookResponse acknowledges an ad-platform lead.
type WebhookResponse struct {
	Success bool   `json:"success"`
	LeadID  string `json:"lead_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// TranslationsResponse returns a message table.
type TranslationsResponse struct {
	Translations map[string]string `json:"translations"`
	Direction    string            `json:"direction"`
	Lang         string            `json:"lang"`
}

// PatternRequest records a learned pattern.
type PatternRequest struct {
	Pattern map[string]any `json:"pattern" validate:"required,min=1"`
}
