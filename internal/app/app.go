package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/yungbote/galaxychat-backend/internal/data/db"
	"github.com/yungbote/galaxychat-backend/internal/http"
	"github.com/yungbote/galaxychat-backend/internal/observability"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
	"github.com/yungbote/galaxychat-backend/internal/platform/tasks"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Server   *http.Server
	Repos    Repos
	Services Services
	Clients  Clients
	Metrics  *observability.Metrics
	Tasks    *tasks.Registry

	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.Otel.Enabled,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
		Endpoint:    cfg.Otel.Endpoint,
		Headers:     observability.ParseHeaders(cfg.Otel.Headers),
		Insecure:    cfg.Otel.Insecure,
		SampleRatio: cfg.Otel.SampleRatio,
	})
	fail := func(err error) (*App, error) {
		_ = otelShutdown(context.Background())
		log.Sync()
		return nil, err
	}

	theDB, err := db.Open(log, cfg.DBDriver, cfg.SQLitePath)
	if err != nil {
		return fail(fmt.Errorf("init database: %w", err))
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		return fail(err)
	}

	metrics := observability.NewMetrics(cfg.MetricsEnabled)
	registry := tasks.NewRegistry(log)
	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(ctx, log, cfg, reposet, clients, metrics, registry)
	if err != nil {
		clients.Close()
		return fail(err)
	}
	handlerset, err := wireHandlers(log, theDB, serviceset)
	if err != nil {
		clients.Close()
		return fail(err)
	}
	middleware := wireMiddleware(log, cfg, serviceset)
	server := wireServer(log, cfg, metrics, handlerset, middleware)

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Server:       server,
		Repos:        reposet,
		Services:     serviceset,
		Clients:      clients,
		Metrics:      metrics,
		Tasks:        registry,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves until ctx is cancelled, then lets in-flight persistence and title tasks
// finish within the shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	a.Log.Info("Server listening", "addr", a.Cfg.HTTPAddr)
	serveErr := a.Server.Run(ctx, a.Cfg.ShutdownTimeout)
	if serveErr != nil {
		a.Log.Error("Server stopped with error", "error", serveErr)
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
	defer cancel()
	drainErr := a.Tasks.Drain(drainCtx)
	return errors.Join(serveErr, drainErr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
