// Package expogate is the public API for embedding the expogate tool gateway.
//
// Consumers import this package to run the gateway inside a larger process
// without forking it:
//
//	app, err := expogate.New(
//		expogate.WithDatabaseURL(dsn),
//		expogate.WithLogger(logger),
//	)
//	if err != nil { ... }
//	return app.Run(ctx)
//
// The import graph enforces a strict no-cycle rule: expogate (root) imports
// internal/*, but internal/* never imports expogate (root).
package expogate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/expokossodo/expogate/internal/auth"
	"github.com/expokossodo/expogate/internal/cache"
	"github.com/expokossodo/expogate/internal/config"
	"github.com/expokossodo/expogate/internal/gateway"
	"github.com/expokossodo/expogate/internal/kpi"
	"github.com/expokossodo/expogate/internal/mcp"
	"github.com/expokossodo/expogate/internal/ratelimit"
	"github.com/expokossodo/expogate/internal/server"
	"github.com/expokossodo/expogate/internal/storage"
	"github.com/expokossodo/expogate/internal/telemetry"
	"github.com/expokossodo/expogate/migrations"
)

// App is the gateway server lifecycle. Construct with New(), run with Run().
// App has no public fields — use New() options to configure it.
type App struct {
	cfg          config.Config
	db           *storage.DB
	cacheStore   cache.Store
	limiter      *ratelimit.Limiter
	srv          *server.Server
	otelShutdown func(context.Context) error
	logger       *slog.Logger
	version      string
}

// New initialises the gateway. It connects to the database, runs migrations,
// wires all subsystems, and returns a ready-to-run App. It does NOT start
// any goroutines or accept HTTP connections — call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.redisURL != "" {
		cfg.RedisURL = o.redisURL
	}
	if o.rateWindow != 0 {
		cfg.ReadLimit = o.readLimit
		cfg.WriteLimit = o.writeLimit
		cfg.RateWindow = o.rateWindow
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("expogate starting", "version", version, "port", cfg.Port)

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	db, err := storage.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("storage: %w", err)
	}

	if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("migrations: %w", err)
	}

	var cacheStore cache.Store
	switch {
	case o.cacheStore != nil:
		cacheStore = o.cacheStore
	case cfg.RedisURL != "":
		rs, err := cache.NewRedisStore(context.Background(), cfg.RedisURL)
		if err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("redis: %w", err)
		}
		cacheStore = rs
	default:
		cacheStore = cache.NewMemoryStore()
	}

	authMgr, err := auth.NewManager(cfg.JWTSecret, cfg.JWTExpiration)
	if err != nil {
		_ = cacheStore.Close()
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("auth: %w", err)
	}

	limiter := ratelimit.New()

	gw := gateway.New(
		db,
		limiter,
		cache.NewGateway(cacheStore, logger),
		kpi.NewEngine(db, logger),
		ratelimit.Rule{Limit: cfg.ReadLimit, Window: cfg.RateWindow},
		ratelimit.Rule{Limit: cfg.WriteLimit, Window: cfg.RateWindow},
		logger,
	)

	mcpSrv := mcp.New(gw, version, logger)

	srv := server.New(server.Config{
		Gateway:             gw,
		AuthMgr:             authMgr,
		DB:                  db,
		Logger:              logger,
		MCPServer:           mcpSrv.MCPServer(),
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	return &App{
		cfg:          cfg,
		db:           db,
		cacheStore:   cacheStore,
		limiter:      limiter,
		srv:          srv,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Handler returns the fully wired HTTP handler for mounting the gateway
// inside an existing server. Callers using Handler own the listener
// lifecycle and should still call Shutdown to release resources.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

// Run starts the HTTP server and blocks until ctx is cancelled or a fatal
// server error occurs. On return, Shutdown is called automatically —
// callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown drains in-flight HTTP requests, then releases the limiter,
// cache backend, database pool, and OTEL provider.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("expogate shutting down")

	httpCtx, httpCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}
	httpCancel()

	_ = a.limiter.Close()
	_ = a.cacheStore.Close()
	_ = a.otelShutdown(context.Background())
	a.db.Close()

	a.logger.Info("expogate stopped")
	return nil
}
