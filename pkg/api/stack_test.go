package api

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brilliox/brilliox/config"
	"github.com/brilliox/brilliox/pkg/ai"
	apievents "github.com/brilliox/brilliox/pkg/api/events"
	"github.com/brilliox/brilliox/pkg/api/handlers"
	"github.com/brilliox/brilliox/pkg/crm"
	"github.com/brilliox/brilliox/pkg/events"
	"github.com/brilliox/brilliox/pkg/logger"
	"github.com/brilliox/brilliox/pkg/storage/memory"
)

// stubProvider answers every prompt with a fixed reply.
type stubProvider struct {
	name  string
	reply string
	fail  bool
	calls atomic.Int64
}

func (p *stubProvider) Name() string    { return p.name }
func (p *stubProvider) Available() bool { return true }

func (p *stubProvider) Complete(_ context.Context, _, userPrompt string) (string, error) {
	p.calls.Add(1)
	if p.fail {
		return "", errors.New("provider down")
	}
	if p.reply != "" {
		return p.reply, nil
	}
	return "reply: " + strings.ToUpper(userPrompt), nil
}

type testStack struct {
	cfg         *config.Config
	handlers    *Handlers
	bus         *events.Bus
	users       *crm.UserService
	provider    *stubProvider
	broadcaster *apievents.Broadcaster
}

const testAdminPassword = "admin-pass"

// basicAuth builds an Authorization header value.
func basicAuth(username, password string) map[string]string {
	return map[string]string{
		"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password)),
	}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.HTTP.RequestTimeout = 5 * time.Second
	cfg.Log.Level = "error"
	return cfg
}

func newTestStack(t testing.TB, cfg *config.Config) *testStack {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	ctx := context.Background()
	log := logger.NewNop()

	bus, err := events.New(ctx, events.NewMemoryStore(), events.WithLogger(log))
	require.NoError(t, err)

	store := memory.NewMemoryStorage()
	scorer := crm.NewScorer()
	users := crm.NewUserService(store, bus, crm.UserConfig{
		AdminUsername:  cfg.Auth.AdminUsername,
		DefaultBalance: cfg.Billing.DefaultBalance,
	}, log)
	require.NoError(t, users.SetPassword(ctx, cfg.Auth.AdminUsername, testAdminPassword))
	leads := crm.NewLeadService(store, bus, nil, log)
	crm.RegisterActions(bus, store, scorer, bus, log)

	verifyAdmin := func(ctx context.Context, username, password string) error {
		_, err := users.Login(ctx, username, password)
		return err
	}

	provider := &stubProvider{name: "stub"}
	gen := ai.NewGenerator([]ai.Provider{provider}, ai.NewMemoryCache(time.Minute), bus, ai.WithLogger(log))

	broadcaster := apievents.NewBroadcaster()
	require.NoError(t, broadcaster.Attach(bus))
	ws := handlers.NewWebSocketHandler(log, handlers.WebSocketConfig{AllowedOrigins: []string{"*"}})

	streamCtx, cancel := context.WithCancel(ctx)
	go ws.Stream(streamCtx, broadcaster)
	require.NoError(t, bus.Initialize(ctx))

	t.Cleanup(func() {
		cancel()
		ws.Close()
		_ = bus.Close(context.Background())
		broadcaster.Close()
	})

	return &testStack{
		cfg: cfg,
		handlers: &Handlers{
			Health:         handlers.NewHealthHandler(cfg.App.Name, bus, gen),
			Auth:           handlers.NewAuthHandler(users, log),
			AI:             handlers.NewAIHandler(gen, users, cfg.Billing, nil, log),
			Leads:          handlers.NewLeadHandler(leads, users, scorer, log),
			Webhook:        handlers.NewWebhookHandler(leads, cfg.Webhook, cfg.Auth.AdminUsername, log),
			System:         handlers.NewSystemHandler(bus, gen, log),
			WebSocket:      ws,
			IsAdmin:        users.IsAdmin,
			VerifyAdmin:    verifyAdmin,
			MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("# metrics\n"))
			}),
		},
		bus:         bus,
		users:       users,
		provider:    provider,
		broadcaster: broadcaster,
	}
}
