// Command server runs the synchronous upload front end: upload a PDF
// invoice, get a UPN QR code back on the result page.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/upnqr/internal/botcheck"
	"github.com/dharsanguruparan/upnqr/internal/config"
	"github.com/dharsanguruparan/upnqr/internal/logging"
	"github.com/dharsanguruparan/upnqr/internal/metrics"
	"github.com/dharsanguruparan/upnqr/internal/processing"
	"github.com/dharsanguruparan/upnqr/internal/server"
	"github.com/dharsanguruparan/upnqr/internal/signing"
	"github.com/dharsanguruparan/upnqr/internal/storage"
)

func main() {
	configPath := kingpin.Flag("config", "Path to the application config file").Short('c').Default("config.yml").String()
	kingpin.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if err := cfg.Validate(config.RoleServer); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Logger, cfg.Application+"-server")
	if err != nil {
		log.Fatalf("Error building logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	processor, closeCache, err := processing.FromConfig(ctx, cfg, cfg.Server.ProcessingPool, m, logger)
	if err != nil {
		logger.Fatal("cannot build invoice pipeline", zap.Error(err))
	}
	defer func() {
		_ = closeCache()
	}()

	var verifier botcheck.Verifier = botcheck.Disabled{}
	publicKey := ""
	if cfg.Botcheck.Enabled {
		verifier = botcheck.NewBotpoison(cfg.Botcheck.SecretKey, cfg.Botcheck.VerifyURL, cfg.Botcheck.Timeout)
		publicKey = cfg.Botcheck.PublicKey
	} else {
		logger.Warn("bot check disabled")
	}
	if cfg.Server.SigningSecret == "" {
		logger.Warn("no signing secret configured, download links will not survive a restart")
	}

	srv, err := server.New(server.Options{
		Config:    cfg.Server,
		PublicKey: publicKey,
		Processor: processor,
		Store:     storage.NewMemoryStore(cfg.Server.ResultCapacity),
		Signer:    signing.NewSigner(cfg.Server.Secret()),
		Verifier:  verifier,
		Metrics:   m,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("cannot create server", zap.Error(err))
	}
	if err := srv.Serve(ctx); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
