// Package server is the synchronous upload front end: a PDF invoice goes in
// and a result page with its UPN QR code comes out.
package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/upnqr/internal/botcheck"
	"github.com/dharsanguruparan/upnqr/internal/config"
	"github.com/dharsanguruparan/upnqr/internal/metrics"
	"github.com/dharsanguruparan/upnqr/internal/middleware"
	"github.com/dharsanguruparan/upnqr/internal/processing"
	"github.com/dharsanguruparan/upnqr/internal/signing"
	"github.com/dharsanguruparan/upnqr/internal/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

// botpoisonField carries the challenge solution posted by the browser script.
const botpoisonField = "_botpoison"

// Options wires a Server. Processor, Store and Signer are required.
type Options struct {
	Config config.Server
	// PublicKey enables the Botpoison browser script on the upload form.
	PublicKey string
	Processor *processing.Processor
	Store     *storage.MemoryStore
	Signer    *signing.Signer
	Verifier  botcheck.Verifier
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	Now       func() time.Time
}

// Server hosts the upload form, the result pages and signed QR downloads.
type Server struct {
	cfg       config.Server
	publicKey string
	processor *processing.Processor
	store     *storage.MemoryStore
	signer    *signing.Signer
	verifier  botcheck.Verifier
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
	limiter   *middleware.RateLimiter
	pages     *template.Template
}

func New(opts Options) (*Server, error) {
	if opts.Processor == nil || opts.Store == nil || opts.Signer == nil {
		return nil, errors.New("server: processor, store and signer are required")
	}
	if opts.Verifier == nil {
		opts.Verifier = botcheck.Disabled{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if len(opts.Config.AllowedOrigins) == 0 {
		opts.Config.AllowedOrigins = []string{"*"}
	}
	pages, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:       opts.Config,
		publicKey: opts.PublicKey,
		processor: opts.Processor,
		store:     opts.Store,
		signer:    opts.Signer,
		verifier:  opts.Verifier,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		now:       opts.Now,
		limiter:   middleware.NewRateLimiter(opts.Config.RateLimit, opts.Config.RateBurst),
		pages:     pages,
	}, nil
}

// Serve launches the HTTP server until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
	s.logger.Info("listening", zap.String("address", s.cfg.Address))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the routes wrapped in CORS, request logging and, for
// uploads, rate limiting.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.Handle("/upload", s.limiter.Limit(http.HandlerFunc(s.handleUpload), http.MethodPost))
	mux.HandleFunc("/download", s.handleDownload)
	// The /results/ prefix covers /results/{id} and /results/{id}/signed-url.
	mux.HandleFunc("/results/", s.handleResultRoute)

	logged := middleware.Logging(s.logger, s.metrics, routeLabel, mux)
	return middleware.CORS(s.cfg.AllowedOrigins, logged)
}

// routeLabel keeps the request metric's route label bounded.
func routeLabel(r *http.Request) string {
	switch p := r.URL.Path; {
	case p == "/", p == "/upload", p == "/download", p == "/healthz", p == "/metrics":
		return p
	case strings.HasPrefix(p, "/results/") && strings.HasSuffix(p, "/signed-url"):
		return "/results/{id}/signed-url"
	case strings.HasPrefix(p, "/results/"):
		return "/results/{id}"
	default:
		return "other"
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type indexPage struct {
	PublicKey string
	MaxSize   string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.render(w, http.StatusOK, "index.html", indexPage{
		PublicKey: s.publicKey,
		MaxSize:   humanize.IBytes(uint64(s.cfg.MaxFileBytes)),
	})
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.pages.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("render page failed", zap.String("page", name), zap.Error(err))
	}
}
