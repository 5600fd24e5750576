package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"wechat-relay/internal/api"
	"wechat-relay/internal/config"
	"wechat-relay/internal/logging"
	"wechat-relay/internal/redis"
	"wechat-relay/internal/storage"
	"wechat-relay/internal/store"
	"wechat-relay/internal/wechat"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_relay", "service", "wechat-relay", "http_addr", cfg.HTTPAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Message archive: Postgres when DB_DSN is set, local SQLite otherwise.
	var archive store.Archive
	if cfg.DBDSN != "" {
		pg, err := store.NewPostgresArchive(ctx, cfg.DBDSN, logger)
		if err != nil {
			logger.Error("db_connect_failed", "error", err)
			os.Exit(1)
		}
		archive = pg
		logger.Info("archive_backend", "backend", "postgres")
	} else {
		sq, err := store.NewSQLiteArchive(cfg.DataPath, logger)
		if err != nil {
			logger.Error("sqlite_open_failed", "error", err, "path", cfg.DataPath)
			os.Exit(1)
		}
		archive = sq
		logger.Info("archive_backend", "backend", "sqlite", "path", cfg.DataPath)
	}

	// Optional response cache.
	var cache *redis.Client
	if cfg.RedisDSN != "" {
		cache, err = redis.New(cfg.RedisDSN)
		if err != nil {
			logger.Error("redis_connect_failed", "error", err)
			os.Exit(1)
		}
		defer cache.Close()
		logger.Info("redis_connected")
	}

	// Media archive: real bucket when R2 is configured, simulator otherwise.
	var media storage.MediaStore
	if cfg.R2Bucket != "" {
		s3c, err := storage.NewS3Client(storage.S3Config{
			Endpoint:  cfg.R2Endpoint,
			Bucket:    cfg.R2Bucket,
			PublicURL: cfg.R2PublicURL,
			Region:    cfg.R2Region,
		})
		if err != nil {
			logger.Error("s3_init_failed", "error", err)
			os.Exit(1)
		}
		media = s3c
		logger.Info("media_store", "backend", "s3", "bucket", cfg.R2Bucket)
	} else {
		media = storage.NewSimulator(cfg.R2Bucket, cfg.R2Endpoint)
		logger.Info("media_store", "backend", "simulator")
	}

	httpc := wechat.NewHTTPClient()
	tokens := wechat.NewTokenCache(logger, cfg.AppID, cfg.AppSecret, cfg.APIBase, httpc, nil)
	pusher := wechat.NewClient(logger, cfg.APIBase, tokens, httpc)

	gin.SetMode(gin.ReleaseMode)
	srv := api.NewServer(logger, archive, cache, media, pusher, cfg)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_listen_failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("relay_started", "addr", cfg.HTTPAddr)

	// graceful shutdown
	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	} else {
		logger.Info("http_server_stopped")
	}

	if err := archive.Close(); err != nil {
		logger.Warn("archive_close_error", "error", err)
	}

	logger.Info("relay_stopped")
}
