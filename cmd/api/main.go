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

	"github.com/dharsanguruparan/upnqr/internal/api"
	"github.com/dharsanguruparan/upnqr/internal/botcheck"
	"github.com/dharsanguruparan/upnqr/internal/config"
	"github.com/dharsanguruparan/upnqr/internal/database"
	"github.com/dharsanguruparan/upnqr/internal/logging"
	"github.com/dharsanguruparan/upnqr/internal/metrics"
	"github.com/dharsanguruparan/upnqr/internal/repository"
	"github.com/dharsanguruparan/upnqr/internal/s3storage"
)

func main() {
	configPath := kingpin.Flag("config", "Path to the application config file").Short('c').Default("config.yml").String()
	kingpin.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if err := cfg.Validate(config.RoleAPI); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Logger, cfg.Application+"-api")
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

	store, err := s3storage.New(cfg.S3)
	if err != nil {
		logger.Fatal("cannot init storage", zap.Error(err))
	}
	if err := store.EnsureBuckets(ctx); err != nil {
		logger.Fatal("cannot ensure buckets", zap.Error(err))
	}

	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	var verifier botcheck.Verifier = botcheck.Disabled{}
	if cfg.Botcheck.Enabled {
		verifier = botcheck.NewBotpoison(cfg.Botcheck.SecretKey, cfg.Botcheck.VerifyURL, cfg.Botcheck.Timeout)
	} else {
		logger.Warn("bot check disabled")
	}

	srv := api.New(api.Options{
		Address:        cfg.API.Address,
		MaxFileBytes:   cfg.Server.MaxFileBytes,
		PresignTTL:     cfg.API.PresignTTL,
		MaxRetry:       cfg.Worker.MaxRetry,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		Verifier:       verifier,
		Invoices:       repository.NewInvoiceRepository(pool),
		Objects:        store,
		Queue:          client,
		Metrics:        metrics.New(),
		Logger:         logger,
	})
	if err := srv.Run(ctx); err != nil {
		logger.Fatal("api stopped", zap.Error(err))
	}
}
