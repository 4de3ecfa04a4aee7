// Package processing runs an uploaded invoice through text extraction,
// record extraction, payload building and symbol encoding.
package processing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/upnqr/internal/cache"
	"github.com/dharsanguruparan/upnqr/internal/extraction"
	"github.com/dharsanguruparan/upnqr/internal/metrics"
	pdfutil "github.com/dharsanguruparan/upnqr/internal/pdf"
	"github.com/dharsanguruparan/upnqr/internal/qr"
	"github.com/dharsanguruparan/upnqr/internal/upn"
)

// ErrUnreadablePDF marks documents the PDF reader could not parse.
var ErrUnreadablePDF = errors.New("unreadable pdf")

// IsDataError reports failures caused by the invoice itself. Retrying them
// cannot succeed.
func IsDataError(err error) bool {
	return upn.IsDataError(err) ||
		errors.Is(err, qr.ErrPayloadTooLarge) ||
		errors.Is(err, qr.ErrUnencodable) ||
		errors.Is(err, pdfutil.ErrNoText)
}

// Options wires a Processor. Builder, Encoder and Extractor are required for
// ProcessPDF; the rest have working defaults.
type Options struct {
	Builder   *upn.Builder
	Encoder   *qr.Encoder
	Extractor extraction.Extractor
	Cache     cache.RecordCache
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	// Workers bounds how many documents are processed at once.
	Workers int
	// ReadText defaults to pdfutil.ExtractText.
	ReadText func([]byte) (string, error)
}

// Processor is safe for concurrent use.
type Processor struct {
	builder   *upn.Builder
	encoder   *qr.Encoder
	extractor extraction.Extractor
	cache     cache.RecordCache
	metrics   *metrics.Metrics
	logger    *zap.Logger
	readText  func([]byte) (string, error)
	slots     chan struct{}
}

// Rendered is the output of the deterministic core.
type Rendered struct {
	Payload *upn.Payload
	PNG     []byte
}

// Outcome is everything learned about one document.
type Outcome struct {
	Text   string
	Record *upn.Record
	Cached bool
	*Rendered
}

func New(opts Options) *Processor {
	if opts.Builder == nil {
		opts.Builder = upn.NewBuilder(upn.DateStrict)
	}
	if opts.Encoder == nil {
		opts.Encoder, _ = qr.NewEncoder(qr.DefaultSpec())
	}
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ReadText == nil {
		opts.ReadText = pdfutil.ExtractText
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Processor{
		builder:   opts.Builder,
		encoder:   opts.Encoder,
		extractor: opts.Extractor,
		cache:     opts.Cache,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		readText:  opts.ReadText,
		slots:     make(chan struct{}, opts.Workers),
	}
}

// SymbolSize returns the pixel width of rendered symbols.
func (p *Processor) SymbolSize() int {
	return p.encoder.Dimensions()
}

// Render builds the payload for rec and draws its symbol.
func (p *Processor) Render(rec upn.Record) (*Rendered, error) {
	start := time.Now()
	payload, err := p.builder.Build(rec)
	p.metrics.Stage(metrics.StageBuild, err)
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}
	png, err := p.encoder.PNG(payload.String())
	p.metrics.Stage(metrics.StageEncode, err)
	if err != nil {
		return nil, fmt.Errorf("encode symbol: %w", err)
	}
	p.metrics.ObserveRender(time.Since(start))
	return &Rendered{Payload: payload, PNG: png}, nil
}

// ProcessPDF runs the full pipeline for one document. When only the final
// Render step fails, the returned Outcome still carries the text and record
// alongside the error.
func (p *Processor) ProcessPDF(ctx context.Context, document []byte, fileName string) (*Outcome, error) {
	if p.extractor == nil {
		return nil, fmt.Errorf("processing: no extractor configured")
	}
	select {
	case p.slots <- struct{}{}:
		defer func() { <-p.slots }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	log := p.logger.With(zap.String("file", fileName), zap.Int("bytes", len(document)))

	text, err := p.readText(document)
	p.metrics.Stage(metrics.StageExtractText, err)
	if err != nil {
		if errors.Is(err, pdfutil.ErrNoText) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrUnreadablePDF, err)
	}

	out := &Outcome{Text: text}
	key := cache.Key(document)
	rec, hit, err := p.cache.Get(ctx, key)
	if err != nil {
		log.Warn("record cache lookup failed", zap.Error(err))
	}
	p.metrics.CacheLookup(hit)
	if hit {
		out.Cached = true
	} else {
		rec, err = p.extractor.Extract(ctx, text)
		p.metrics.Stage(metrics.StageExtract, err)
		if err != nil {
			return out, err
		}
		if err := p.cache.Set(ctx, key, rec); err != nil {
			log.Warn("record cache store failed", zap.Error(err))
		}
	}
	out.Record = rec

	rendered, err := p.Render(*rec)
	if err != nil {
		log.Info("invoice data rejected", zap.Error(err))
		return out, err
	}
	out.Rendered = rendered
	log.Info("invoice processed",
		zap.Bool("cached", out.Cached),
		zap.Int("checksum", rendered.Payload.Checksum()),
		zap.Int("tolerated", len(rendered.Payload.Tolerated)))
	return out, nil
}
