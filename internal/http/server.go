// Package http serves the inflation query API as JSON over a plain net/http
// mux.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"inflacion/internal/cache"
	"inflacion/internal/core"
)

// InflationReader is the query surface the handlers need.
// *services.InflationService satisfies it.
type InflationReader interface {
	Records(ctx context.Context, q core.Query) ([]core.CpiRecord, error)
	Convert(ctx context.Context, amount float64, fromYear, fromMonth, toYear, toMonth int) (core.Conversion, error)
	Summary(ctx context.Context) (core.Summary, error)
	RangeInflation(ctx context.Context, fromYear, fromMonth, toYear, toMonth int) (core.RangeResult, error)
	AnnualByYear(ctx context.Context, startYear, endYear int) ([]core.AnnualRate, error)
	Count(ctx context.Context) (int64, error)
}

type Server struct {
	http.Server
	reader         InflationReader
	rateLimiter    *rateLimiter
	allowedOrigins map[string]bool

	// respCache holds serialized responses for the read endpoints; entries
	// expire by TTL, so a live update shows up within one cache window.
	respCache *cache.LRUCache[[]byte]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, reader InflationReader, allowedOrigins []string, cacheTTL time.Duration) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		reader:           reader,
		rateLimiter:      newRateLimiter(120),
		allowedOrigins:   make(map[string]bool, len(allowedOrigins)),
		respCache:        newLRUResponseCache(cacheTTL),
		stopCacheCleanup: make(chan struct{}),
	}
	for _, origin := range allowedOrigins {
		s.allowedOrigins[origin] = true
	}

	go s.startCacheCleanup()

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/inflation/data", s.withMiddleware(s.cached(s.handleData)))
	mux.HandleFunc("/inflation/current", s.withMiddleware(s.cached(s.handleCurrent)))
	mux.HandleFunc("/inflation/convert", s.withMiddleware(s.handleConvert))
	mux.HandleFunc("/inflation/range", s.withMiddleware(s.handleRange))
	mux.HandleFunc("/inflation/annual", s.withMiddleware(s.cached(s.handleAnnual)))

	return s
}

func newLRUResponseCache(ttl time.Duration) *cache.LRUCache[[]byte] {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return cache.NewLRUCache[[]byte](200, ttl)
}

// startCacheCleanup runs periodic cleanup for the response cache.
func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := s.respCache.CleanExpired(); cleaned > 0 {
				slog.Debug("Response cache cleanup completed", "entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		close(s.stopCacheCleanup)
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withMiddleware adds security headers, CORS, rate limiting and request
// logging to a handler.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		s.applyCORS(w, r)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET, OPTIONS")
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	if len(s.allowedOrigins) == 0 || s.allowedOrigins[origin] {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Vary", "Origin")
	}
}

// cached serves a handler's body from the response cache keyed by the full
// request URI.
func (s *Server) cached(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.RequestURI()
		if body, ok := s.respCache.Get(key); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "hit")
			_, _ = w.Write(body)
			return
		}

		rec := &recordingWriter{responseWriter: responseWriter{ResponseWriter: w, statusCode: http.StatusOK}}
		next(rec, r)
		if rec.statusCode == http.StatusOK {
			s.respCache.Set(key, rec.body)
		}
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// recordingWriter additionally retains the body for caching.
type recordingWriter struct {
	responseWriter
	body []byte
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	rw.body = append(rw.body, b...)
	return rw.responseWriter.Write(b)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
