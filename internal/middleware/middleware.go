// Package middleware holds the HTTP wrappers shared by the upload front end
// and the invoice API.
package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dharsanguruparan/upnqr/internal/metrics"
)

// CORS allows GET and POST from origins; "*" allows any origin.
func CORS(origins []string, next http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}).Handler(next)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logging logs every request and counts it under route(r).
func Logging(logger *zap.Logger, m *metrics.Metrics, route func(*http.Request) string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.Request(route(r), rec.status)
		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
			zap.String("remote", ClientIP(r)))
	})
}

// ClientIP returns the host part of r.RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimiter hands out one token bucket per client IP. Buckets idle for
// longer than idleTTL are dropped.
type RateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	clients map[string]*client
	now     func() time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		clients: make(map[string]*client),
		now:     time.Now,
	}
}

// Allow reports whether key may make a request now.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for k, c := range l.clients {
		if now.Sub(c.lastSeen) > l.idleTTL {
			delete(l.clients, k)
		}
	}
	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// Limit rejects requests over the client's budget with 429. Only methods in
// methods are limited; an empty list limits all.
func (l *RateLimiter) Limit(next http.Handler, methods ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(methods) == 0 || contains(methods, r.Method) {
			if !l.Allow(ClientIP(r)) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
