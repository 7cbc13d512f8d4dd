package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/brilliox/brilliox/pkg/logger"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads the config file when it changes and hands the new Config
// to every registered callback. The parent directory is watched so editors
// that save by renaming a temp file over the original are still seen.
type Watcher struct {
	fs       *fsnotify.Watcher
	loader   *Loader
	path     string
	debounce time.Duration
	log      logger.Logger

	mu        sync.Mutex
	callbacks []func(*Config)
	running   bool

	// reloadMu keeps callbacks from two reloads from interleaving.
	reloadMu sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the file must be quiet before a reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the logger used for reload failures.
func WithWatcherLogger(l logger.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// NewWatcher prepares a watcher for path. Nothing is watched until Watch.
func NewWatcher(path string, loader *Loader, opts ...WatcherOption) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("config path is required for watching")
	}
	if loader == nil {
		loader = NewLoader()
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fs:       fs,
		loader:   loader,
		path:     filepath.Clean(path),
		debounce: defaultDebounce,
		log:      logger.Global(),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// ConfigPath returns the watched file.
func (w *Watcher) ConfigPath() string { return w.path }

// OnChange registers a callback. Callbacks run one after another in
// registration order; a panicking callback is logged and skipped.
func (w *Watcher) OnChange(cb func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Watch blocks until ctx is cancelled or Stop is called.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher is already running")
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	if _, err := os.Stat(w.path); err != nil {
		return fmt.Errorf("watch config file: %w", err)
	}
	if err := w.fs.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch config dir %s: %w", filepath.Dir(w.path), err)
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(w.debounce, w.reloadConfig)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reloadConfig() {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	cfg, err := w.loader.Load(w.path, nil)
	if err != nil {
		w.log.Error("Config reload rejected, keeping current settings", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	callbacks := append(([]func(*Config))(nil), w.callbacks...)
	w.mu.Unlock()

	for _, cb := range callbacks {
		w.runCallback(cb, cfg)
	}
}

func (w *Watcher) runCallback(cb func(*Config), cfg *Config) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Config reload callback panicked", "panic", r)
		}
	}()
	cb(cfg)
}

// Stop releases the fsnotify handle. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		err = w.fs.Close()
	})
	return err
}

// HotReloadableConfig contains the values applied without a restart.
type HotReloadableConfig struct {
	LogLevel      string
	RateRequests  int
	RateWindow    time.Duration
	BlockDuration time.Duration
}

// ExtractHotReloadable extracts hot-reloadable values from Config.
func ExtractHotReloadable(cfg *Config) HotReloadableConfig {
	return HotReloadableConfig{
		LogLevel:      cfg.Log.Level,
		RateRequests:  cfg.Security.RateLimit.Requests,
		RateWindow:    cfg.Security.RateLimit.Window,
		BlockDuration: cfg.Security.RateLimit.BlockDuration,
	}
}

// Changed reports whether any hot-reloadable value differs.
func (h HotReloadableConfig) Changed(other HotReloadableConfig) bool {
	return h != other
}
