package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"blood-connect/backend/config"
	"blood-connect/backend/internal/api/handler"
	"blood-connect/backend/internal/api/router"
	"blood-connect/backend/internal/model"
	"blood-connect/backend/internal/repository"
	"blood-connect/backend/internal/service"
	"blood-connect/backend/pkg/database"
	"blood-connect/backend/pkg/events"
	"blood-connect/backend/pkg/jwt"
	applogger "blood-connect/backend/pkg/logger"
	"blood-connect/backend/pkg/metrics"
	"blood-connect/backend/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	// 1. config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// 2. logger
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting",
		zap.Int("port", cfg.Server.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. database + schema
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db, cfg.Database.Driver, logger, model.Tables()...); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}

	// 4. Redis (optional: degrade when unreachable)
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("redis unavailable, token revocation and rate limiting disabled", zap.Error(err))
			rdb = nil
		}
	}

	// 5. auth, metrics, events
	jwtMgr := jwt.NewManager(&cfg.Auth)
	m := metrics.NewWithRuntime()
	publisher := events.New(&cfg.Events, logger)

	// 6. Repository -> Service -> Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, publisher, m, logger)
	h := handler.NewHandler(svc)

	// 7. index reconciliation
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	if cfg.Engine.ReconcileOnStart {
		if _, err := svc.BloodRequest.ReconcileIndices(bgCtx); err != nil {
			logger.Error("startup index reconciliation failed", zap.Error(err))
		}
	}
	if cfg.Engine.ReconcileInterval > 0 {
		go runReconciler(bgCtx, svc.BloodRequest, cfg.Engine.ReconcileInterval, logger)
	}

	// 8. HTTP server
	engine := router.Setup(cfg, h, jwtMgr, rdb, m, db, logger)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// 9. graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutting down", zap.String("signal", sig.String()))
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	if err := publisher.Close(); err != nil {
		logger.Warn("event publisher close failed", zap.Error(err))
	}

	if sqlDB, _ := db.DB(); sqlDB != nil {
		sqlDB.Close()
	}

	if rdb != nil {
		rdb.Close()
	}

	logger.Info("stopped")
}

// runReconciler repairs index drift every interval until ctx ends.
func runReconciler(ctx context.Context, svc service.BloodRequestService, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.ReconcileIndices(ctx); err != nil && ctx.Err() == nil {
				logger.Error("periodic index reconciliation failed", zap.Error(err))
			}
		}
	}
}
