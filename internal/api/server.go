// Package api accepts invoices for background processing and reports their
// state.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/upnqr/internal/botcheck"
	"github.com/dharsanguruparan/upnqr/internal/metrics"
	"github.com/dharsanguruparan/upnqr/internal/middleware"
	"github.com/dharsanguruparan/upnqr/internal/queue"
	"github.com/dharsanguruparan/upnqr/internal/repository"
	"github.com/dharsanguruparan/upnqr/internal/s3storage"
	"github.com/dharsanguruparan/upnqr/internal/upload"
	"github.com/dharsanguruparan/upnqr/internal/upn"
)

// Invoices is the part of the invoice repository the API uses.
type Invoices interface {
	Create(ctx context.Context, inv *repository.Invoice) error
	Get(ctx context.Context, id string) (*repository.Invoice, error)
	MarkFailed(ctx context.Context, id, msg string, rec *upn.Record) error
}

// Objects is the part of the object store the API uses.
type Objects interface {
	UploadRaw(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	PresignQRURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
}

// BotpoisonField carries the challenge solution posted with an upload.
const BotpoisonField = "_botpoison"

type Options struct {
	Address        string
	MaxFileBytes   int64
	PresignTTL     time.Duration
	MaxRetry       int
	AllowedOrigins []string
	// RateLimit and RateBurst bound uploads per client IP. A zero
	// RateLimit leaves uploads unlimited.
	RateLimit float64
	RateBurst int
	Verifier  botcheck.Verifier
	Invoices  Invoices
	Objects   Objects
	Queue     queue.Enqueuer
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Server exposes HTTP endpoints for uploads and invoice visibility.
type Server struct {
	opts    Options
	limiter *middleware.RateLimiter
}

func New(opts Options) *Server {
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.Verifier == nil {
		opts.Verifier = botcheck.Disabled{}
	}
	s := &Server{opts: opts}
	if opts.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(opts.RateLimit, opts.RateBurst)
	}
	return s
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.opts.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	s.opts.Logger.Info("api listening", zap.String("address", s.opts.Address))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.opts.Metrics.Handler())
	var invoices http.Handler = http.HandlerFunc(s.handleInvoices)
	if s.limiter != nil {
		invoices = s.limiter.Limit(invoices, http.MethodPost)
	}
	mux.Handle("/invoices", invoices)
	mux.HandleFunc("/invoices/", s.handleInvoiceRoute)
	logged := middleware.Logging(s.opts.Logger, s.opts.Metrics, routeLabel, mux)
	return middleware.CORS(s.opts.AllowedOrigins, logged)
}

func routeLabel(r *http.Request) string {
	p := r.URL.Path
	if !strings.HasPrefix(p, "/invoices/") {
		switch p {
		case "/healthz", "/metrics", "/invoices":
			return p
		}
		return "other"
	}
	parts := strings.Split(strings.TrimPrefix(p, "/invoices/"), "/")
	switch {
	case len(parts) == 1:
		return "/invoices/{id}"
	case len(parts) == 2 && (parts[1] == "payload" || parts[1] == "qr"):
		return "/invoices/{id}/" + parts[1]
	}
	return "other"
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInvoices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleUpload(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleInvoiceRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/invoices/")
	parts := strings.Split(path, "/")
	if parts[0] == "" || len(parts) > 2 {
		http.NotFound(w, r)
		return
	}
	inv, ok := s.lookup(w, r, parts[0])
	if !ok {
		return
	}
	if len(parts) == 1 {
		respondJSON(w, http.StatusOK, inv)
		return
	}
	switch parts[1] {
	case "payload":
		s.handlePayload(w, inv)
	case "qr":
		s.handleQR(w, r, inv)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request, id string) (*repository.Invoice, bool) {
	inv, err := s.opts.Invoices.Get(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		http.Error(w, "invoice not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		s.opts.Logger.Error("load invoice", zap.String("invoice", id), zap.Error(err))
		http.Error(w, "failed to load invoice", http.StatusInternalServerError)
		return nil, false
	}
	return inv, true
}

// notReady answers for invoices without a rendered QR code yet.
func notReady(w http.ResponseWriter, inv *repository.Invoice) {
	if inv.Status == repository.StatusFailed {
		msg := "invoice processing failed"
		if inv.ErrorMessage != nil {
			msg += ": " + *inv.ErrorMessage
		}
		http.Error(w, msg, http.StatusUnprocessableEntity)
		return
	}
	http.Error(w, "invoice not processed yet", http.StatusAccepted)
}

func (s *Server) handlePayload(w http.ResponseWriter, inv *repository.Invoice) {
	if inv.Status != repository.StatusCompleted || inv.Payload == "" {
		notReady(w, inv)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, inv.Payload)
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request, inv *repository.Invoice) {
	if inv.Status != repository.StatusCompleted || inv.QRKey == nil {
		notReady(w, inv)
		return
	}
	url, err := s.opts.Objects.PresignQRURL(r.Context(), *inv.QRKey, s.opts.PresignTTL)
	if err != nil {
		s.opts.Logger.Error("presign qr", zap.String("invoice", inv.ID), zap.Error(err))
		http.Error(w, "failed to generate url", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"url":       url,
		"expiresIn": int64(s.opts.PresignTTL.Seconds()),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	up, err := upload.Read(w, r, s.opts.MaxFileBytes)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, upload.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		http.Error(w, err.Error(), status)
		return
	}
	if err := s.opts.Verifier.Verify(ctx, up.Fields[BotpoisonField]); err != nil {
		s.opts.Logger.Info("upload rejected by bot check",
			zap.String("remote", middleware.ClientIP(r)), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusTeapot), http.StatusTeapot)
		return
	}
	id := uuid.NewString()
	objectKey := s3storage.RawKey(id, up.FileName)
	log := s.opts.Logger.With(zap.String("invoice", id))

	if err := s.opts.Objects.UploadRaw(ctx, objectKey, bytes.NewReader(up.Data), up.Size(), up.ContentType); err != nil {
		log.Error("upload to storage failed", zap.Error(err))
		http.Error(w, "failed to store file", http.StatusInternalServerError)
		return
	}
	inv := &repository.Invoice{ID: id, FileName: up.FileName, ObjectKey: objectKey}
	if err := s.opts.Invoices.Create(ctx, inv); err != nil {
		log.Error("create invoice failed", zap.Error(err))
		http.Error(w, "failed to store metadata", http.StatusInternalServerError)
		return
	}
	payload := queue.ProcessPayload{InvoiceID: id, ObjectKey: objectKey, FileName: up.FileName}
	if err := queue.EnqueueProcess(ctx, s.opts.Queue, payload, s.opts.MaxRetry); err != nil {
		log.Error("enqueue failed", zap.Error(err))
		if markErr := s.opts.Invoices.MarkFailed(ctx, id, "could not queue invoice", nil); markErr != nil {
			log.Error("mark failed", zap.Error(markErr))
		}
		http.Error(w, "failed to queue job", http.StatusInternalServerError)
		return
	}
	log.Info("invoice queued", zap.String("file", up.FileName), zap.Int64("bytes", up.Size()))
	respondJSON(w, http.StatusAccepted, map[string]string{
		"id":     id,
		"status": string(repository.StatusQueued),
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
