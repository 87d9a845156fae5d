package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
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

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("EXPOGATE_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("expogate starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry. No-op when no endpoint is configured.
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Connect to the registration database and bring the schema up to date.
	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	// Cache backend: Redis when configured, in-process memory otherwise.
	var cacheStore cache.Store
	if cfg.RedisURL != "" {
		rs, err := cache.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		cacheStore = rs
		logger.Info("cache: redis", "url", cfg.RedisURL)
	} else {
		cacheStore = cache.NewMemoryStore()
		logger.Info("cache: memory (in-process)")
	}
	defer func() { _ = cacheStore.Close() }()

	// Credential manager shared with the token minter.
	authMgr, err := auth.NewManager(cfg.JWTSecret, cfg.JWTExpiration)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	// Per-(principal, tool) sliding-window limiter.
	limiter := ratelimit.New()
	defer func() { _ = limiter.Close() }()

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

	// HTTP server with the MCP transport mounted at /mcp.
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

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("expogate shutting down")

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("expogate stopped")
	return nil
}
