package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nulzo/ollama-bridge/cmd"
	"github.com/nulzo/ollama-bridge/internal/config"
	"github.com/nulzo/ollama-bridge/internal/gateway"
	"github.com/nulzo/ollama-bridge/internal/keypool"
	"github.com/nulzo/ollama-bridge/internal/platform/logger"
	"github.com/nulzo/ollama-bridge/internal/platform/otel"
	"github.com/nulzo/ollama-bridge/internal/server"
	"github.com/nulzo/ollama-bridge/internal/store/cache"
	"go.uber.org/zap"
)

func main() {
	logger.Initialize(logger.DefaultConfig())
	defer logger.Sync()
	log := logger.Get()

	go cmd.CheckForUpdates()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	shutdownTracer, err := otel.InitTracer("ollama-bridge", log, os.Stdout)
	if err != nil {
		log.Fatal("failed to initialize tracing", zap.Error(err))
	}

	pool, err := keypool.New(cfg.Upstream.KeyPool())
	if err != nil {
		log.Fatal("no upstream api key configured",
			zap.Error(&gateway.Error{Kind: gateway.KindConfiguration, Err: err}))
	}

	client := gateway.NewClient(gateway.ClientConfig{
		BaseURL:        cfg.Upstream.BaseURL,
		MaxAttempts:    cfg.Upstream.MaxAttempts,
		BaseDelay:      cfg.Upstream.BaseDelay,
		RotationPause:  cfg.Upstream.RotationPause,
		RequestTimeout: cfg.Upstream.RequestTimeout,
	}, pool, log)

	var cacheService cache.CacheService
	if cfg.Redis.Enabled {
		cacheService, err = cache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("redis unavailable, model list cache disabled", zap.Error(err))
			cacheService = nil
		}
	}

	service := gateway.NewService(client, cacheService, cfg.Upstream.ModelCacheTTL, log)
	srv := server.New(cfg, log, service)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: srv.Handler(),
	}

	go func() {
		log.Info("starting ollama-bridge",
			zap.String("port", cfg.Server.Port),
			zap.String("upstream", cfg.Upstream.BaseURL),
			zap.Int("keys", pool.Len()))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	_ = shutdownTracer(ctx)
}
