package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brilliox/brilliox/config"
	"github.com/brilliox/brilliox/pkg/ai"
	"github.com/brilliox/brilliox/pkg/ai/provider"
	"github.com/brilliox/brilliox/pkg/api"
	apievents "github.com/brilliox/brilliox/pkg/api/events"
	"github.com/brilliox/brilliox/pkg/api/handlers"
	"github.com/brilliox/brilliox/pkg/crm"
	"github.com/brilliox/brilliox/pkg/events"
	"github.com/brilliox/brilliox/pkg/logger"
	"github.com/brilliox/brilliox/pkg/metrics"
	"github.com/brilliox/brilliox/pkg/security"
	"github.com/brilliox/brilliox/pkg/storage"
	"github.com/brilliox/brilliox/pkg/storage/badger"
	"github.com/brilliox/brilliox/pkg/storage/memory"
	"github.com/brilliox/brilliox/pkg/telemetry/tracing"
)

const limiterPruneInterval = time.Minute

// app holds every long-lived component of a running server.
type app struct {
	cfg *config.Config
	log logger.Logger

	metrics     *metrics.Manager
	store       storage.Store
	redis       *redis.Client
	bus         *events.Bus
	users       *crm.UserService
	generator   *ai.Generator
	limiter     *security.RateLimiter
	broadcaster *apievents.Broadcaster
	ws          *handlers.WebSocketHandler
	server      *api.HTTPServer

	shutdownTracing tracing.ShutdownFunc
	cancel          context.CancelFunc
}

// newApp wires storage, the event bus, the generator and the HTTP server.
// Background workers run until close is called. On error every component
// built so far is released.
func newApp(ctx context.Context, cfg *config.Config, log logger.Logger) (_ *app, err error) {
	bgCtx, cancel := context.WithCancel(ctx)
	a := &app{cfg: cfg, log: log, cancel: cancel}
	defer func() {
		if err != nil {
			_ = a.close(context.Background())
		}
	}()

	a.shutdownTracing, err = tracing.Init(ctx, cfg.Tracing, tracing.Service{
		Name:        cfg.App.Name,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	a.metrics = metrics.NewManager(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Port:    cfg.Metrics.Port,
		Path:    cfg.Metrics.Path,
	})

	if a.store, err = openStorage(cfg.Storage, log); err != nil {
		return nil, err
	}

	if usesRedis(cfg) {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err = a.redis.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Address, err)
		}
		log.Info("Connected to Redis", "address", cfg.Redis.Address)
	}

	var stateStore events.StateStore
	if cfg.Events.StateBackend == "redis" {
		stateStore = events.NewRedisStore(a.redis, cfg.Events.StateKey)
	} else {
		stateStore = events.NewFileStore(cfg.Events.StateFile)
	}
	a.bus, err = events.New(ctx, stateStore,
		events.WithLogger(log.With("component", "events")),
		events.WithObserver(a.metrics),
		events.WithVersion(cfg.App.Version),
		events.WithLimits(cfg.Events.HistoryLimit, cfg.Events.PatternLimit),
		events.WithAsyncWorkers(cfg.Events.AsyncWorkers, cfg.Events.AsyncQueueSize),
	)
	if err != nil {
		return nil, fmt.Errorf("create event bus: %w", err)
	}

	sanitizer := security.NewSanitizer(cfg.Security.MaxInputLength)
	scorer := crm.NewScorer()
	a.users = crm.NewUserService(a.store, a.bus, crm.UserConfig{
		AdminUsername:  cfg.Auth.AdminUsername,
		DefaultBalance: cfg.Billing.DefaultBalance,
	}, log)
	leads := crm.NewLeadService(a.store, a.bus, sanitizer, log)
	crm.RegisterActions(a.bus, a.store, scorer, a.bus, log)

	var cache ai.Cache
	if cfg.AI.CacheBackend == "redis" {
		cache = ai.NewRedisCache(a.redis, cfg.AI.CachePrefix, cfg.AI.CacheTTL, log)
	} else {
		cache = ai.NewMemoryCache(cfg.AI.CacheTTL)
	}
	a.generator = ai.NewGenerator(provider.FromConfig(cfg.AI), cache, a.bus,
		ai.WithLogger(log.With("component", "ai")),
		ai.WithObserver(a.metrics),
		ai.WithProviderTimeout(cfg.AI.ProviderTimeout),
		ai.WithFallbackLanguage(cfg.AI.FallbackLanguage),
	)

	a.broadcaster = apievents.NewBroadcaster()
	if err = a.broadcaster.Attach(a.bus); err != nil {
		return nil, fmt.Errorf("attach broadcaster: %w", err)
	}
	a.ws = handlers.NewWebSocketHandler(log, handlers.WebSocketConfig{
		AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
	})
	go a.ws.Stream(bgCtx, a.broadcaster)

	if cfg.Auth.AdminPassword != "" {
		if err = a.users.SetPassword(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
			return nil, fmt.Errorf("seed admin account: %w", err)
		}
		log.Info("Seeded admin account", "username", cfg.Auth.AdminUsername)
	}

	if err = a.bus.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize event bus: %w", err)
	}

	apiHandlers := &api.Handlers{
		Health:      handlers.NewHealthHandler(cfg.App.Name, a.bus, a.generator),
		Auth:        handlers.NewAuthHandler(a.users, log),
		AI:          handlers.NewAIHandler(a.generator, a.users, cfg.Billing, sanitizer, log),
		Leads:       handlers.NewLeadHandler(leads, a.users, scorer, log),
		Webhook:     handlers.NewWebhookHandler(leads, cfg.Webhook, cfg.Auth.AdminUsername, log),
		System:      handlers.NewSystemHandler(a.bus, a.generator, log),
		WebSocket:   a.ws,
		IsAdmin:     a.users.IsAdmin,
		VerifyAdmin: a.verifyAdmin,
	}
	if cfg.Security.RateLimit.Enabled {
		rl := cfg.Security.RateLimit
		a.limiter = security.NewRateLimiter(rl.Requests, rl.Window, rl.BlockDuration)
		apiHandlers.RateLimiter = a.limiter
		go a.limiter.Run(bgCtx, limiterPruneInterval)
	}
	if a.metrics.Enabled() {
		apiHandlers.Metrics = a.metrics
		if cfg.Metrics.Port == cfg.Server.Port {
			apiHandlers.MetricsHandler = a.metrics.Handler()
		} else {
			go func() {
				log.Info("Starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
				if err := a.metrics.StartServer(bgCtx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
					log.Error("Metrics server error", "error", err)
				}
			}()
		}
	}

	a.server = api.NewHTTPServer(cfg, log, apiHandlers)
	return a, nil
}

func openStorage(cfg config.StorageConfig, log logger.Logger) (storage.Store, error) {
	switch cfg.Type {
	case "badger":
		store, err := badger.NewBadgerStorage(&badger.Config{
			Path:       cfg.Badger.Path,
			SyncWrites: cfg.Badger.SyncWrites,
		})
		if err != nil {
			return nil, fmt.Errorf("open badger storage: %w", err)
		}
		log.Info("Initialized Badger storage", "path", cfg.Badger.Path)
		return store, nil
	case "memory":
		log.Info("Initialized memory storage")
		return memory.NewMemoryStorage(), nil
	default:
		log.Warn("Unknown storage type, using memory storage", "type", cfg.Type)
		return memory.NewMemoryStorage(), nil
	}
}

func usesRedis(cfg *config.Config) bool {
	return cfg.Events.StateBackend == "redis" || cfg.AI.CacheBackend == "redis"
}

// verifyAdmin checks Basic credentials on the admin routes against the
// stored password hash.
func (a *app) verifyAdmin(ctx context.Context, username, password string) error {
	_, err := a.users.Login(ctx, username, password)
	return err
}

// applyHotReload pushes the reloadable settings of next into the running app.
func (a *app) applyHotReload(next *config.Config) {
	prev := config.ExtractHotReloadable(a.cfg)
	cur := config.ExtractHotReloadable(next)
	if !prev.Changed(cur) {
		return
	}
	if prev.LogLevel != cur.LogLevel {
		a.log.SetLevel(logger.ParseLevel(cur.LogLevel))
	}
	if a.limiter != nil {
		a.limiter.Reconfigure(cur.RateRequests, cur.RateWindow, cur.BlockDuration)
	}
	a.cfg.Log.Level = cur.LogLevel
	a.cfg.Security.RateLimit.Requests = cur.RateRequests
	a.cfg.Security.RateLimit.Window = cur.RateWindow
	a.cfg.Security.RateLimit.BlockDuration = cur.BlockDuration
	a.log.Info("Applied configuration reload",
		"log_level", cur.LogLevel,
		"rate_requests", cur.RateRequests,
		"rate_window", cur.RateWindow,
	)
}

// close stops components in reverse dependency order. The HTTP server is
// expected to be shut down by the caller first.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.bus != nil {
		if err := a.bus.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}
	a.cancel()
	if a.broadcaster != nil {
		a.broadcaster.Close()
	}
	if a.ws != nil {
		a.ws.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
	}
	return errors.Join(errs...)
}
