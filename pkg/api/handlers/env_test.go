package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/brilliox/brilliox/config"
	"github.com/brilliox/brilliox/pkg/ai"
	"github.com/brilliox/brilliox/pkg/crm"
	"github.com/brilliox/brilliox/pkg/events"
	"github.com/brilliox/brilliox/pkg/logger"
	"github.com/brilliox/brilliox/pkg/storage/memory"
)

var testBilling = config.BillingConfig{
	ChatCost:       10,
	HuntCost:       50,
	AdCost:         30,
	CampaignCost:   100,
	DefaultBalance: 100,
}

type fakeGenerator struct {
	mu       sync.Mutex
	result   ai.Result
	query    string
	ad       ai.AdCopy
	requests []ai.Request
}

func (g *fakeGenerator) Generate(_ context.Context, req ai.Request) ai.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	res := g.result
	if res.Success && !res.Cached && res.TokensUsed == 0 {
		res.TokensUsed = req.Cost
	}
	return res
}

func (g *fakeGenerator) HuntQuery(context.Context, string, string, string) (string, ai.Result) {
	return g.query, g.result
}

func (g *fakeGenerator) AdCopy(_ context.Context, _, _, _, platform, _ string) ai.AdCopy {
	ad := g.ad
	ad.Platform = platform
	ad.Result = g.result
	return ad
}

func (g *fakeGenerator) Providers() map[string]bool {
	return map[string]bool{"groq": true, "openai": false}
}

type testEnv struct {
	users  *crm.UserService
	leads  *crm.LeadService
	bus    *events.Bus
	gen    *fakeGenerator
	router chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	log := logger.NewNop()

	bus, err := events.New(ctx, events.NewMemoryStore(), events.WithLogger(log))
	require.NoError(t, err)
	require.NoError(t, bus.Initialize(ctx))
	t.Cleanup(func() { _ = bus.Close(context.Background()) })

	store := memory.NewMemoryStorage()
	env := &testEnv{
		users: crm.NewUserService(store, bus, crm.UserConfig{
			AdminUsername:  "admin",
			DefaultBalance: testBilling.DefaultBalance,
		}, log),
		leads: crm.NewLeadService(store, bus, nil, log),
		bus:   bus,
		gen:   &fakeGenerator{result: ai.Result{Success: true, Response: "ok", Provider: "groq"}},
	}

	auth := NewAuthHandler(env.users, log)
	aiHandler := NewAIHandler(env.gen, env.users, testBilling, nil, log)
	leadHandler := NewLeadHandler(env.leads, env.users, crm.NewScorer(), log)
	webhook := NewWebhookHandler(env.leads, config.WebhookConfig{VerifyToken: "secret"}, "admin", log)
	system := NewSystemHandler(bus, env.gen, log)
	health := NewHealthHandler("Brilliox", bus, env.gen)

	r := chi.NewRouter()
	r.Get("/", health.Info)
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Post("/webhook/lead", webhook.Receive)
	r.Get("/webhook/lead", webhook.Verify)
	r.Route("/api", func(r chi.Router) {
		r.Get("/translations/{lang}", health.Translations)
		r.Post("/login", auth.Login)
		r.Post("/user/{userID}/change-password", auth.ChangePassword)
		r.Get("/wallet/{userID}", auth.Wallet)
		r.Post("/chat/{userID}", aiHandler.Chat)
		r.Post("/hunt/{userID}", aiHandler.Hunt)
		r.Post("/ads/{userID}", aiHandler.Ads)
		r.Get("/stats/{userID}", leadHandler.Stats)
		r.Route("/leads", func(r chi.Router) {
			r.Get("/{userID}", leadHandler.List)
			r.Put("/{leadID}", leadHandler.Update)
			r.Delete("/{leadID}", leadHandler.Delete)
			r.Get("/{userID}/scored", leadHandler.Scored)
			r.Get("/{userID}/insights", leadHandler.Insights)
			r.Post("/{userID}/add", leadHandler.Add)
			r.Post("/{userID}/import", leadHandler.Import)
			r.Post("/{userID}/share", leadHandler.Share)
		})
		r.Route("/system", func(r chi.Router) {
			r.Get("/stats", system.Stats)
			r.Get("/history", system.History)
			r.Get("/rules", system.ListRules)
			r.Post("/rules", system.AddRule)
			r.Delete("/rules/{ruleID}", system.RemoveRule)
			r.Get("/patterns", system.ListPatterns)
			r.Post("/patterns", system.LearnPattern)
		})
	})
	env.router = r
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (e *testEnv) addLead(t *testing.T, owner, name, phone string) string {
	t.Helper()
	lead, err := e.leads.AddLead(context.Background(), owner, crm.LeadInput{Name: name, Phone: phone})
	require.NoError(t, err)
	return lead.ID
}
