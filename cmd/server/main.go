package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/storyreader/internal/config"
	"github.com/onnwee/storyreader/internal/errorreporting"
	"github.com/onnwee/storyreader/internal/logger"
	"github.com/onnwee/storyreader/internal/secrets"
	"github.com/onnwee/storyreader/internal/server"
	"github.com/onnwee/storyreader/internal/tracing"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (falling back to system env)")
	}

	// Load configuration
	cfg := config.Load()

	// Initialize structured logging
	logger.Init(cfg.LogLevel)
	logger.Info("Initializing gateway", "version", cfg.SentryRelease, "log_level", cfg.LogLevel, "story_api", cfg.APIBaseURL)

	if strings.EqualFold(os.Getenv("ENV"), "production") {
		if err := secrets.ValidateEnv("STORY_API_BASE_URL"); err != nil {
			logger.Error("Refusing to start with default story service address", "error", err)
			os.Exit(1)
		}
		if err := secrets.ValidateRequired(map[string]string{"ADMIN_API_TOKEN": cfg.AdminAPIToken}); err != nil {
			logger.Warn("Admin endpoints are disabled", "error", err)
		}
	}

	// Initialize error reporting
	if err := errorreporting.Init(errorreporting.OptionsFromConfig(cfg)); err != nil {
		logger.Warn("Failed to initialize error reporting", "error", err)
	} else if errorreporting.Enabled() {
		logger.Info("Error reporting initialized", "environment", cfg.SentryEnvironment)
		defer func() {
			logger.Info("Flushing error reports...")
			errorreporting.Flush(2 * time.Second)
		}()
	}

	// Initialize tracing
	shutdownTracing, err := tracing.Init(tracing.SettingsFromConfig("storyreader-gateway", cfg))
	if err != nil {
		logger.Warn("Failed to initialize tracing", "error", err)
	} else {
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("Failed to shutdown tracer", "error", err)
			}
		}()
	}

	svc, err := server.NewLibrary(cfg)
	if err != nil {
		logger.Error("Failed to build reading room", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.New(cfg, svc).Run(ctx); err != nil {
		logger.Error("Gateway stopped with error", "error", err)
		errorreporting.CaptureError(err)
		return
	}
	logger.Info("Gateway stopped")
}
