// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brilliox/brilliox/pkg/api/models"
	"github.com/brilliox/brilliox/pkg/api/response"
	"github.com/brilliox/brilliox/pkg/i18n"
	"github.com/brilliox/brilliox/pkg/version"
)

// HealthHandler handles health check and service info endpoints.
type HealthHandler struct {
	name    string
	bus     SystemBus
	gen     Generator
	started time.Time
}

// NewHealthHandler creates a new health handler. gen may be nil.
func NewHealthHandler(name string, bus SystemBus, gen Generator) *HealthHandler {
	return &HealthHandler{
		name:    name,
		bus:     bus,
		gen:     gen,
		started: time.Now(),
	}
}

// Health handles the /health endpoint (liveness probe).
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(h.started).Truncate(time.Second).String(),
	})
}

// Ready handles the /ready endpoint (readiness probe).
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.bus != nil && h.bus.Ready() {
		response.JSON(w, http.StatusOK, map[string]bool{
			"ready": true,
		})
	} else {
		response.JSON(w, http.StatusServiceUnavailable, map[string]bool{
			"ready": false,
		})
	}
}

// Info handles GET /.
func (h *HealthHandler) Info(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":      h.name,
		"status":    "running",
		"version":   version.Info(),
		"languages": i18n.Languages(),
	}
	if h.gen != nil {
		info["ai_providers"] = h.gen.Providers()
	}
	response.JSON(w, http.StatusOK, info)
}

// Translations handles GET /api/translations/{lang}. Unsupported languages
// fall back to the default table.
func (h *HealthHandler) Translations(w http.ResponseWriter, r *http.Request) {
	lang := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "lang")))
	if !i18n.Supported(lang) {
		lang = i18n.Default
	}
	response.JSON(w, http.StatusOK, models.TranslationsResponse{
		Translations: i18n.All(lang),
		Direction:    i18n.Direction(lang),
		Lang:         lang,
	})
}
