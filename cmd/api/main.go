package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/formpilot/formpilot/internal/api"
	"github.com/formpilot/formpilot/internal/capture"
	"github.com/formpilot/formpilot/internal/config"
	"github.com/formpilot/formpilot/internal/observability"
	"github.com/formpilot/formpilot/internal/provider"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(string(cfg.Env), cfg.GetLogLevel())
	defer logger.Sync()

	logger.Info("Starting FormPilot API",
		zap.String("version", cfg.App.Version),
		zap.String("environment", string(cfg.Env)),
	)

	metrics := observability.NewMetrics(cfg.App.Name)

	// Construct the answer provider (optional; inline answers work without it)
	var orchestrator *capture.Orchestrator
	if cfg.Provider.Enabled() {
		client, err := provider.NewClient(provider.Config{
			APIKey:       cfg.Provider.APIKey,
			Model:        cfg.Provider.Model,
			MaxTokens:    cfg.Provider.MaxTokens,
			Timeout:      cfg.Provider.Timeout,
			RateLimitRPM: cfg.Provider.RateLimitRPM,
			MaxRetries:   cfg.Provider.MaxRetries,
		}, logger, metrics)
		if err != nil {
			logger.Fatal("Failed to create answer provider", zap.Error(err))
		}
		orchestrator = capture.New(client, capture.Config{
			AutoSubmit:    cfg.Capture.AutoSubmit,
			PageTextLimit: cfg.Capture.PageTextLimit,
			LogSize:       cfg.Capture.ExchangeLog,
			LogMaxAge:     cfg.Capture.ExchangeLogAge,
		}, logger, metrics)
		logger.Info("Answer provider configured", zap.String("model", cfg.Provider.Model))
	} else {
		logger.Warn("No answer provider configured, only inline answers accepted")
	}

	// Create router
	router := api.NewRouter(api.RouterConfig{
		Orchestrator: orchestrator,
		Metrics:      metrics,
		Logger:       logger,
		EnableCORS:   cfg.Security.CORSEnabled,
		CORSOrigins:  cfg.Security.CORSAllowedOrigins,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API server listening", zap.String("addr", cfg.Server.Addr()))
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatal("Server error", zap.Error(err))

	case sig := <-shutdown:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Create shutdown context with timeout
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed, forcing close", zap.Error(err))
			server.Close()
		}

		logger.Info("Server stopped gracefully")
	}
}

// initLogger creates a configured zap logger
func initLogger(env, level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := config.Build()
	if err != nil {
		// Fall back to basic logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
