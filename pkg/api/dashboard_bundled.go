//go:build !embed_ui

package api

import (
	"embed"
	"io/fs"
)

//go:embed dashboard
var bundledDashboardFS embed.FS

// bundledDashboard returns the minimal single-page dashboard shipped with the
// server. Build with -tags embed_ui to ship the full frontend from web/dist.
func bundledDashboard() (fs.FS, error) {
	return fs.Sub(bundledDashboardFS, "dashboard")
}
