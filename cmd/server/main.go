package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/psm/internal/config"
	"github.com/JonMunkholm/psm/internal/core"
	"github.com/JonMunkholm/psm/internal/logging"
	"github.com/JonMunkholm/psm/internal/matcher"
	"github.com/JonMunkholm/psm/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded", "config", cfg.String())

	client := matcher.NewClient(
		matcher.WithBaseURL(cfg.Matcher.URL),
		matcher.WithTimeout(cfg.Matcher.Timeout),
		matcher.WithRateLimit(cfg.Matcher.RateLimit, cfg.Matcher.RateBurst),
		matcher.WithUserAgent(cfg.Matcher.UserAgent),
	)

	service := core.NewService(client, core.Options{
		MaxFileSize:   cfg.Upload.MaxFileSize,
		MatchTimeout:  cfg.Matcher.Timeout,
		MaxConcurrent: cfg.Matcher.MaxConcurrent,
		MaxWait:       cfg.Matcher.MaxWait,
		SessionTTL:    cfg.Session.TTL,
		MaxSessions:   cfg.Session.MaxSessions,
	})

	server := web.NewServer(service, cfg)

	// Background jobs stop when the process is signalled
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go service.StartSessionSweeper(ctx, cfg.Session.SweepInterval)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Server.Addr(), "matcher", client.BaseURL())
		errCh <- server.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
	}

	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	// Let in-flight matcher calls finish so their sessions record a result
	status := service.LimiterStatus()
	if status.Active > 0 {
		slog.Info("waiting for matches to complete", "active", status.Active)
		if err := service.WaitForMatches(shutdownCtx); err != nil {
			slog.Warn("matches did not complete in time", "error", err)
		} else {
			slog.Info("all matches completed")
		}
	}

	slog.Info("server stopped")
}
