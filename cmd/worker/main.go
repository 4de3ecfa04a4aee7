package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/upnqr/internal/config"
	"github.com/dharsanguruparan/upnqr/internal/database"
	"github.com/dharsanguruparan/upnqr/internal/logging"
	"github.com/dharsanguruparan/upnqr/internal/metrics"
	"github.com/dharsanguruparan/upnqr/internal/processing"
	"github.com/dharsanguruparan/upnqr/internal/repository"
	"github.com/dharsanguruparan/upnqr/internal/s3storage"
	"github.com/dharsanguruparan/upnqr/internal/worker"
)

func main() {
	configPath := kingpin.Flag("config", "Path to the application config file").Short('c').Default("config.yml").String()
	kingpin.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if err := cfg.Validate(config.RoleWorker); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Logger, cfg.Application+"-worker")
	if err != nil {
		log.Fatalf("Error building logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("cannot connect database", zap.Error(err))
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal("cannot ensure schema", zap.Error(err))
	}
	repo := repository.NewInvoiceRepository(pool)

	store, err := s3storage.New(cfg.S3)
	if err != nil {
		logger.Fatal("cannot init storage", zap.Error(err))
	}
	if err := store.EnsureBuckets(ctx); err != nil {
		logger.Fatal("cannot ensure buckets", zap.Error(err))
	}

	processor, closeCache, err := processing.FromConfig(ctx, cfg, cfg.Worker.Concurrency, metrics.New(), logger)
	if err != nil {
		logger.Fatal("cannot build invoice pipeline", zap.Error(err))
	}
	defer func() {
		_ = closeCache()
	}()

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Logger:      logger.Sugar(),
	})
	handler := worker.NewHandler(repo, store, processor, logger)

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	logger.Info("worker started", zap.Int("concurrency", cfg.Worker.Concurrency))
	if err := server.Run(handler.Mux()); err != nil {
		logger.Fatal("worker stopped", zap.Error(err))
	}
}
