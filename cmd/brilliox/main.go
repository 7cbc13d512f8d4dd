package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brilliox/brilliox/config"
	"github.com/brilliox/brilliox/pkg/logger"
	"github.com/brilliox/brilliox/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")

	// CLI overrides
	appName    = flag.String("app-name", "", "Override app name")
	serverPort = flag.Int("port", 0, "Override server port")
	logLevel   = flag.String("log-level", "", "Override log level")
	debugMode  = flag.Bool("debug", false, "Enable debug mode")
)

func main() {
	flag.Parse()

	if *helpFlag {
		printHelp()
		os.Exit(0)
	}

	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath, buildOverrides())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg, *debugMode)
	logger.SetGlobal(log)

	if err := run(cfg, log, *configPath); err != nil {
		log.Error("Brilliox exited with error", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config, debug bool) logger.Logger {
	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug || debug {
		logCfg.Level = logger.DebugLevel
	}
	return logger.New(logCfg)
}

func run(cfg *config.Config, log logger.Logger, cfgPath string) error {
	log.Info("Starting Brilliox",
		"version", version.Version,
		"buildTime", version.BuildTime,
		"gitCommit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)
	log.Debug("Configuration loaded", "config", cfg.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}

	if cfgPath != "" {
		watcher, err := config.NewWatcher(cfgPath, nil, config.WithWatcherLogger(log))
		if err != nil {
			log.Warn("Config hot reload disabled", "error", err)
		} else {
			watcher.OnChange(a.applyHotReload)
			go func() {
				if err := watcher.Watch(ctx); err != nil {
					log.Warn("Config watcher stopped", "error", err)
				}
			}()
			defer watcher.Stop()
		}
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", a.server.Addr())
		if err := a.server.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	log.Info("Brilliox is running",
		"http_port", cfg.Server.Port,
		"metrics_port", cfg.Metrics.Port,
		"providers", a.generator.Providers(),
	)

	var runErr error
	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig)
	case runErr = <-serverErrChan:
		log.Error("HTTP server error", "error", runErr)
	}

	shutdownTimeout := cfg.Server.HTTP.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	log.Info("Shutting down HTTP server")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", "error", err)
	}

	log.Info("Stopping event bus and backends")
	if err := a.close(shutdownCtx); err != nil {
		log.Error("Error during shutdown", "error", err)
	}

	log.Info("Brilliox stopped gracefully")
	return runErr
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})

	if *appName != "" {
		overrides["app.name"] = *appName
	}
	if *serverPort != 0 {
		overrides["server.port"] = *serverPort
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	if *debugMode {
		overrides["app.debug"] = true
	}

	return overrides
}

func printVersion() {
	fmt.Println(version.String())
}

func printHelp() {
	fmt.Printf("Brilliox - AI-assisted CRM backend\n\n")
	fmt.Printf("Usage: brilliox [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  brilliox                                  # Run with default config\n")
	fmt.Printf("  brilliox -config config.yaml              # Use specific config file\n")
	fmt.Printf("  brilliox -port 9090 -log-level debug      # Override specific options\n")
	fmt.Printf("  brilliox -version                         # Print version info\n")
}
