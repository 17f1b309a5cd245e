// Command sampletrack-server starts the SampleTrack authentication server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jdvries/sampletrack/internal/audit"
	"github.com/jdvries/sampletrack/internal/config"
	"github.com/jdvries/sampletrack/internal/limiter"
	"github.com/jdvries/sampletrack/internal/migrate"
	"github.com/jdvries/sampletrack/internal/repository/postgres"
	httpserver "github.com/jdvries/sampletrack/internal/server/http"
	"github.com/jdvries/sampletrack/internal/service"
	"github.com/jdvries/sampletrack/internal/session"
	"github.com/jdvries/sampletrack/migrations"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, and starts the HTTP server.
func main() {
	var logger *zap.Logger

	cfg, err := config.Load()
	if err != nil {
		// Config failed before the logger exists; zap.NewProduction cannot
		// fail with default options.
		logger, _ = zap.NewProduction()
		logger.Fatal("config", zap.Error(err))
	}

	if cfg.Env == "production" {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.HTTPAddr),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DatabaseURL, migrations.FS); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	// DB pool
	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect to postgres", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	accountRepo := postgres.NewAccountRepo(db)
	auditRepo := postgres.NewAuditRepo(db)

	trail := audit.NewWriter(auditRepo, logger)
	lim := limiter.NewMemory(limiter.DefaultWindow, limiter.DefaultMaxAttempts)

	tokens, err := session.NewManager([]byte(cfg.SessionSecret), cfg.TokenTTL())
	if err != nil {
		logger.Fatal("session manager", zap.Error(err))
	}

	// Services
	authSvc := service.NewAuthService(accountRepo, lim, trail, tokens)
	accountSvc := service.NewAccountService(accountRepo, trail)

	srv := httpserver.New(authSvc, accountSvc, trail, tokens, tokens.TTL(), cfg.CookieSecure, logger)

	hs := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- hs.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
