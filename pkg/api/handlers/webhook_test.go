package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brilliox/brilliox/pkg/api/models"
	"github.com/brilliox/brilliox/pkg/crm"
)

func TestWebhookHandler_Receive(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/webhook/lead", map[string]string{
		"full_name":     "Youssef",
		"phone_number":  "+971500000000",
		"platform":      "Facebook",
		"campaign_name": "spring",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.WebhookResponse
	decodeBody(t, w, &resp)
	assert.True(t, resp.Success)

	lead, err := env.leads.GetLead(context.Background(), resp.LeadID)
	require.NoError(t, err)
	assert.Equal(t, "admin", lead.OwnerID)
	assert.Equal(t, "Youssef", lead.Name)
	assert.Equal(t, crm.StatusBaitSent, lead.Status)
	assert.Equal(t, "ads_facebook", lead.Source)
	assert.Equal(t, "spring", lead.Campaign)
	assert.Equal(t, "Campaign: spring", lead.Notes)
}

func TestWebhookHandler_ReceiveDefaults(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/webhook/lead", map[string]string{"name": "Nour"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.WebhookResponse
	decodeBody(t, w, &resp)
	lead, err := env.leads.GetLead(context.Background(), resp.LeadID)
	require.NoError(t, err)
	assert.Equal(t, "ads_unknown", lead.Source)
	assert.Empty(t, lead.Notes)
}

func TestWebhookHandler_ReceiveRequiresContact(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/webhook/lead", map[string]string{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/webhook/lead", `[1, 2]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandler_Verify(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		query    string
		wantCode int
		wantBody string
	}{
		{"facebook style", "?hub.mode=subscribe&hub.verify_token=secret&hub.challenge=12345", http.StatusOK, "12345"},
		{"underscore style", "?mode=subscribe&hub_verify_token=secret&hub_challenge=abc", http.StatusOK, "abc"},
		{"wrong token", "?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=1", http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/webhook/lead"+tt.query, nil)
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
				assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
			}
		})
	}

	w := env.do(t, http.MethodGet, "/webhook/lead", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ready"}`, w.Body.String())
}
