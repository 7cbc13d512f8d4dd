//go:build embed_ui

package api

import (
	"embed"
	"io/fs"
)

//go:embed web/dist/**
var embeddedDashboardFS embed.FS

func bundledDashboard() (fs.FS, error) {
	return fs.Sub(embeddedDashboardFS, "web/dist")
}
