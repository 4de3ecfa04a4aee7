package processing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/upnqr/internal/cache"
	"github.com/dharsanguruparan/upnqr/internal/config"
	"github.com/dharsanguruparan/upnqr/internal/extraction"
	"github.com/dharsanguruparan/upnqr/internal/metrics"
	"github.com/dharsanguruparan/upnqr/internal/qr"
	"github.com/dharsanguruparan/upnqr/internal/upn"
)

// CoreOptions returns Options carrying the payload builder and symbol
// encoder described by cfg. That is all Render needs.
func CoreOptions(cfg *config.Config) (Options, error) {
	policy, err := cfg.UPN.Policy()
	if err != nil {
		return Options{}, err
	}
	spec, err := cfg.QR.SymbolSpec()
	if err != nil {
		return Options{}, err
	}
	encoder, err := qr.NewEncoder(spec)
	if err != nil {
		return Options{}, err
	}
	return Options{Builder: upn.NewBuilder(policy), Encoder: encoder}, nil
}

// FromConfig builds a Processor with the OpenAI extractor and, when enabled,
// the Redis record cache. The returned func closes the cache connection.
func FromConfig(ctx context.Context, cfg *config.Config, workers int, m *metrics.Metrics, logger *zap.Logger) (*Processor, func() error, error) {
	opts, err := CoreOptions(cfg)
	if err != nil {
		return nil, nil, err
	}
	extractor, err := extraction.NewOpenAIExtractor(extraction.OpenAIConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
		Timeout: cfg.OpenAI.Timeout,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init extractor: %w", err)
	}

	closeFn := func() error { return nil }
	opts.Cache = cache.Nop{}
	if cfg.Redis.Enabled {
		rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		opts.Cache = cache.NewRedis(rdb, cfg.Redis.CacheTTL, logger)
		closeFn = rdb.Close
	}

	opts.Extractor = extractor
	opts.Metrics = m
	opts.Logger = logger
	opts.Workers = workers
	return New(opts), closeFn, nil
}
