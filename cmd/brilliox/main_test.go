package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brilliox/brilliox/config"
	"github.com/brilliox/brilliox/pkg/logger"
)

func testAppConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.App.Name = "brilliox-test"
	cfg.Server.Host = "127.0.0.1"
	cfg.Metrics.Port = cfg.Server.Port
	cfg.Events.StateFile = filepath.Join(t.TempDir(), "system_data.json")
	cfg.Auth.AdminPassword = "s3cret-pass"
	cfg.Log.Level = "error"
	return cfg
}

func startTestApp(t *testing.T, cfg *config.Config) (*app, *httptest.Server) {
	t.Helper()
	a, err := newApp(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)

	srv := httptest.NewServer(a.server.Handler())
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, a.close(ctx))
	})
	return a, srv
}

func TestNewApp_ServesAPI(t *testing.T) {
	cfg := testAppConfig(t)
	a, srv := startTestApp(t, cfg)
	assert.True(t, a.bus.Ready())

	for _, path := range []string{"/health", "/ready", "/", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	body := strings.NewReader(`{"username":"admin","password":"s3cret-pass"}`)
	resp, err := http.Post(srv.URL+"/api/login", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var login map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	assert.Equal(t, true, login["is_admin"])
}

func TestNewApp_AdminRoutesCheckSeededPassword(t *testing.T) {
	cfg := testAppConfig(t)
	_, srv := startTestApp(t, cfg)

	get := func(user, pass string, header map[string]string) int {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/system/stats", nil)
		require.NoError(t, err)
		if user != "" {
			req.SetBasicAuth(user, pass)
		}
		for k, v := range header {
			req.Header.Set(k, v)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, get("", "", map[string]string{"X-Admin-User": "admin"}))
	assert.Equal(t, http.StatusUnauthorized, get("admin", "not-it", nil))
	assert.Equal(t, http.StatusOK, get("admin", "s3cret-pass", nil))
}

func TestNewApp_PersistsBusState(t *testing.T) {
	cfg := testAppConfig(t)
	_, srv := startTestApp(t, cfg)

	resp, err := http.Post(srv.URL+"/webhook/lead", "application/json",
		strings.NewReader(`{"full_name":"Sara","phone_number":"+966500000000","platform":"Meta"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := os.ReadFile(cfg.Events.StateFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "total_events")
}

func TestNewApp_RateLimit(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.Security.RateLimit.Enabled = true
	cfg.Security.RateLimit.Requests = 2
	cfg.Security.RateLimit.Window = time.Minute
	cfg.Security.RateLimit.BlockDuration = 0
	a, srv := startTestApp(t, cfg)
	require.NotNil(t, a.limiter)

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Get(srv.URL + "/api/wallet/alice")
		require.NoError(t, err)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, statuses)

	next := *cfg
	next.Security.RateLimit.Requests = 100
	a.applyHotReload(&next)
	assert.Equal(t, 100, a.cfg.Security.RateLimit.Requests)
}

func TestNewApp_HotReloadLogLevel(t *testing.T) {
	cfg := testAppConfig(t)
	log := logger.New(&logger.Config{Level: logger.ErrorLevel, Format: "json", Writer: io.Discard})
	a, err := newApp(context.Background(), cfg, log)
	require.NoError(t, err)
	defer a.close(context.Background())

	next := *cfg
	next.Log.Level = "debug"
	a.applyHotReload(&next)
	assert.Equal(t, logger.DebugLevel, log.GetLevel())
	assert.Equal(t, "debug", a.cfg.Log.Level)
}

func TestNewApp_RedisUnavailable(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.AI.CacheBackend = "redis"
	cfg.Redis.Address = "127.0.0.1:1"

	a, err := newApp(context.Background(), cfg, logger.NewNop())
	assert.Error(t, err)
	assert.Nil(t, a)
	assert.Contains(t, err.Error(), "connect redis")
}

func TestOpenStorage_Badger(t *testing.T) {
	store, err := openStorage(config.StorageConfig{
		Type:   "badger",
		Badger: config.BadgerConfig{Path: t.TempDir()},
	}, logger.NewNop())
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestBuildOverrides(t *testing.T) {
	origAppName := *appName
	origServerPort := *serverPort
	origLogLevel := *logLevel
	origDebugMode := *debugMode
	defer func() {
		*appName = origAppName
		*serverPort = origServerPort
		*logLevel = origLogLevel
		*debugMode = origDebugMode
	}()

	*appName = ""
	*serverPort = 0
	*logLevel = ""
	*debugMode = false
	assert.Empty(t, buildOverrides())

	*appName = "test-app"
	*serverPort = 9090
	*logLevel = "debug"
	*debugMode = true

	overrides := buildOverrides()
	assert.Len(t, overrides, 4)
	assert.Equal(t, "test-app", overrides["app.name"])
	assert.Equal(t, 9090, overrides["server.port"])
	assert.Equal(t, "debug", overrides["log.level"])
	assert.Equal(t, true, overrides["app.debug"])
}

func TestNewLogger_DebugOverride(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Log.Output = "stderr"
	assert.Equal(t, logger.ParseLevel(cfg.Log.Level), newLogger(cfg, false).GetLevel())
	assert.Equal(t, logger.DebugLevel, newLogger(cfg, true).GetLevel())
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = oldStdout
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestPrintVersion(t *testing.T) {
	output := captureStdout(t, printVersion)
	assert.Contains(t, output, "brilliox")
}

func TestPrintHelp(t *testing.T) {
	output := captureStdout(t, printHelp)
	for _, expected := range []string{"Brilliox", "Usage:", "Options:", "Examples:"} {
		assert.Contains(t, output, expected)
	}
}
