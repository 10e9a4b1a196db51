// Package app wires the campaign service, scheduler, rate limiter, and
// HTTP API together and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mailfold/mailfold/internal/api"
	"github.com/mailfold/mailfold/internal/campaign"
	"github.com/mailfold/mailfold/internal/config"
	"github.com/mailfold/mailfold/internal/db"
	"github.com/mailfold/mailfold/internal/mailer"
	"github.com/mailfold/mailfold/internal/metrics"
	"github.com/mailfold/mailfold/internal/pipeline"
	"github.com/mailfold/mailfold/internal/ratelimit"
	"github.com/mailfold/mailfold/internal/render"
	"github.com/mailfold/mailfold/internal/repository"
	"github.com/mailfold/mailfold/internal/scheduler"
)

// App is the main application
type App struct {
	config      *config.Config
	db          *db.DB
	rateLimitDB *bolt.DB
	campaigns   *campaign.Service
	scheduler   *scheduler.Scheduler
	apiServer   *api.Server
	rateLimiter *ratelimit.Limiter
	logger      *slog.Logger
}

// New creates the application with all components wired.
func New(cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg.Logging)

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	m := metrics.New()

	var rateLimiter *ratelimit.Limiter
	var rateLimitDB *bolt.DB
	if cfg.RateLimit.Enabled {
		rateLimitDB, err = bolt.Open(cfg.Database.RateLimitPath, 0600, &bolt.Options{Timeout: time.Second})
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to open rate limit database: %w", err)
		}
		rateLimiter, err = ratelimit.New(rateLimitDB, cfg.RateLimit)
		if err != nil {
			rateLimitDB.Close()
			database.Close()
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		logger.Info("rate limiting enabled",
			"requests_per_minute", cfg.RateLimit.RequestsPerMinute,
			"requests_per_hour", cfg.RateLimit.RequestsPerHour,
		)
	}

	campaignRepo := repository.NewCampaignRepository(database.DB)
	contactRepo := repository.NewContactRepository(database.DB)
	templateRepo := repository.NewTemplateRepository(database.DB)

	transport := mailer.NewSMTP(cfg.SMTP, cfg.Sender, logger.With("component", "mailer"))
	p := pipeline.New(render.New(), transport, cfg.Sender, m, logger)

	campaigns := campaign.NewService(campaignRepo, contactRepo, templateRepo, p, m, logger)
	sched := scheduler.New(campaignRepo, campaigns, cfg.Scheduler.PollInterval, m, logger)

	apiServer := api.NewServer(
		campaigns, contactRepo, templateRepo, campaignRepo, p,
		rateLimiter, m, &cfg.Server, logger,
	)

	return &App{
		config:      cfg,
		db:          database,
		rateLimitDB: rateLimitDB,
		campaigns:   campaigns,
		scheduler:   sched,
		apiServer:   apiServer,
		rateLimiter: rateLimiter,
		logger:      logger,
	}, nil
}

// Run starts all components and blocks until a shutdown signal arrives or
// the HTTP server fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting mailfold",
		"api_addr", a.config.Server.ListenAddr,
		"database", a.config.Database.Path,
		"smtp_relay", a.config.SMTP.Addr(),
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a.scheduler.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := a.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.logger.Error("server error", "error", err)
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown stops components in dependency order: no new requests, no new
// scheduler fires, then drain in-flight campaign runs before closing the
// stores.
func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("failed to shut down api server", "error", err)
	}

	a.scheduler.Stop()
	a.campaigns.Close()

	if a.rateLimiter != nil {
		if err := a.rateLimiter.Stop(); err != nil {
			a.logger.Error("failed to persist rate limit counters", "error", err)
		}
	}
	if a.rateLimitDB != nil {
		a.rateLimitDB.Close()
	}

	if err := a.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
