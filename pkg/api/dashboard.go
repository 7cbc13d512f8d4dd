package api

import (
	"bytes"
	"compress/gzip"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/brilliox/brilliox/pkg/logger"
)

// DashboardPrefix is where the web dashboard is mounted.
const DashboardPrefix = "/app"

var dashboardHashedAsset = regexp.MustCompile(`\.[a-fA-F0-9]{6,}\.`)

// newDashboard serves the dashboard from dir when set, otherwise from the
// assets compiled into the binary.
func newDashboard(dir string, log logger.Logger) http.Handler {
	var assets fs.FS
	if dir != "" {
		assets = os.DirFS(dir)
	} else {
		var err error
		if assets, err = bundledDashboard(); err != nil {
			log.Error("Dashboard assets unavailable", "error", err)
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "dashboard assets are unavailable", http.StatusInternalServerError)
			})
		}
	}
	return http.StripPrefix(DashboardPrefix, newDashboardHandler(assets, log))
}

func newDashboardHandler(assets fs.FS, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		filePath, ok := resolveDashboardPath(assets, r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}

		content, modTime, err := readDashboardFile(assets, filePath)
		if err != nil {
			http.NotFound(w, r)
			return
		}

		contentType := mime.TypeByExtension(path.Ext(filePath))
		if contentType == "" {
			contentType = http.DetectContentType(content)
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		setDashboardCacheControl(w, filePath)

		if shouldGzip(r, filePath, len(content)) {
			w.Header().Set("Content-Encoding", "gzip")
			w.Header().Add("Vary", "Accept-Encoding")
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusOK)
				return
			}

			gz := gzip.NewWriter(w)
			defer func() {
				if err := gz.Close(); err != nil && log != nil {
					log.Warn("Failed to close gzip writer", "error", err)
				}
			}()
			if _, err := gz.Write(content); err != nil && log != nil {
				log.Warn("Failed to write dashboard asset", "path", filePath, "error", err)
			}
			return
		}

		http.ServeContent(w, r, filePath, modTime, bytes.NewReader(content))
	})
}

// resolveDashboardPath maps a request path onto an asset. Paths without an
// extension are client-side routes and get index.html. Hidden files are
// never served.
func resolveDashboardPath(assets fs.FS, requestPath string) (string, bool) {
	cleanPath := path.Clean("/" + strings.TrimSpace(requestPath))
	if cleanPath == "/" {
		return "index.html", dashboardFileExists(assets, "index.html")
	}

	candidate := strings.TrimPrefix(cleanPath, "/")
	for _, segment := range strings.Split(candidate, "/") {
		if strings.HasPrefix(segment, ".") {
			return "", false
		}
	}
	if dashboardFileExists(assets, candidate) {
		return candidate, true
	}
	if path.Ext(candidate) != "" {
		return "", false
	}
	return "index.html", dashboardFileExists(assets, "index.html")
}

func dashboardFileExists(assets fs.FS, filePath string) bool {
	info, err := fs.Stat(assets, filePath)
	return err == nil && !info.IsDir()
}

func readDashboardFile(assets fs.FS, filePath string) ([]byte, time.Time, error) {
	content, err := fs.ReadFile(assets, filePath)
	if err != nil {
		return nil, time.Time{}, err
	}

	info, err := fs.Stat(assets, filePath)
	if err != nil {
		return nil, time.Time{}, err
	}

	return content, info.ModTime(), nil
}

func setDashboardCacheControl(w http.ResponseWriter, filePath string) {
	base := path.Base(filePath)
	switch {
	case base == "index.html":
		w.Header().Set("Cache-Control", "no-cache")
	case dashboardHashedAsset.MatchString(base):
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	default:
		w.Header().Set("Cache-Control", "public, max-age=300")
	}
}

func shouldGzip(r *http.Request, filePath string, size int) bool {
	if size < 1024 {
		return false
	}
	if !strings.Contains(strings.ToLower(r.Header.Get("Accept-Encoding")), "gzip") {
		return false
	}

	switch strings.ToLower(path.Ext(filePath)) {
	case ".html", ".css", ".js", ".mjs", ".json", ".svg":
		return true
	default:
		return false
	}
}
