package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rathunderbird-creator/romdoul1-sub000/internal/cache"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/config"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/httpapi"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/logging"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/service"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/store"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/store/memory"
	pgstore "github.com/rathunderbird-creator/romdoul1-sub000/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	if err := validateSecurityConfig(cfg); err != nil {
		return fmt.Errorf("invalid security configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)
	defer func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logger.Warn("close resource", zap.Error(err))
			}
		}
	}()

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(startupCtx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback: %w", err)
		}
		closers = append(closers, pg.Close)
		if err := pg.Migrate(startupCtx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		repo = pg
		logger.Info("repository ready", zap.String("backend", "postgres"))
	} else {
		repo = memory.NewSeeded(logger)
		logger.Info("repository ready", zap.String("backend", "memory"))
	}

	var indexCache cache.OrderIndexCache = cache.NoopOrderIndexCache{}
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisOrderIndexCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(startupCtx); err != nil {
			logger.Warn("redis unavailable, display index is not cached", zap.Error(err))
			_ = redisCache.Close()
		} else {
			indexCache = redisCache
			closers = append(closers, redisCache.Close)
			logger.Info("cache ready", zap.String("backend", "redis"))
		}
	}

	svc := service.New(repo, service.Options{
		Logger:           logger,
		IndexCache:       indexCache,
		IndexTTL:         time.Duration(cfg.OrderIndexTTLSeconds) * time.Second,
		DeleteBatchSize:  cfg.DeleteBatchSize,
		PageSize:         cfg.PageSize,
		StrictStockGuard: cfg.StrictStockGuard,
	})
	auth := httpapi.NewAuthManager(startupCtx, cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo, logger)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("order service listening", zap.String("addr", cfg.Address()), zap.Bool("strict_stock_guard", cfg.StrictStockGuard))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("server stopped")
		return nil
	})
	return g.Wait()
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.DeleteBatchSize > store.MaxDeleteBatch {
		return fmt.Errorf("DELETE_BATCH_SIZE must not exceed %d", store.MaxDeleteBatch)
	}
	return nil
}
