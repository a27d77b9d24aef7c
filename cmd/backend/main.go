package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	audioimpl "github.com/foxseedlab/kikitori/external/audio"
	configloader "github.com/foxseedlab/kikitori/external/config"
	"github.com/foxseedlab/kikitori/external/httpapi"
	recognizerimpl "github.com/foxseedlab/kikitori/external/recognizer"
	summarizerimpl "github.com/foxseedlab/kikitori/external/summarizer"
	webhookimpl "github.com/foxseedlab/kikitori/external/webhook"
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/session"
	"github.com/samber/do/v2"
)

const shutdownTimeout = 15 * time.Second

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded",
		"env", cfg.Env,
		"engine", cfg.RecognitionEngine,
		"audio_source", cfg.AudioSource,
		"locale", cfg.RecognitionLocale)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching http server")
	runServer(injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	if cfg.IsDevelopment() {
		handler := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
			Level:           charmlog.DebugLevel,
			ReportTimestamp: true,
		})
		slog.SetDefault(slog.New(handler))
		return
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	audioimpl.RegisterDI(injector)
	recognizerimpl.RegisterDI(injector)
	summarizerimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	session.RegisterDI(injector)
	httpapi.RegisterDI(injector)

	return injector
}

func runServer(injector do.Injector) {
	server, err := do.Invoke[*httpapi.Server](injector)
	if err != nil {
		slog.Error("failed to resolve http server", "error", err)
		os.Exit(1)
	}

	done := make(chan struct{})
	go func() {
		if err := server.ListenAndServe(); err != nil {
			slog.Error("http server failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-done:
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if report := injector.ShutdownWithContext(ctx); report != nil && !report.Succeed {
		slog.Error("shutdown finished with errors", "error", report.Error())
	}
}
