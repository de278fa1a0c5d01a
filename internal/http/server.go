// Package http exposes the receipt tool's JSON API and the embedded
// review UI.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"ricevute/internal/auth"
	"ricevute/internal/cache"
	"ricevute/internal/ocr"
	"ricevute/internal/services"
	"ricevute/internal/sheets/batch"
	"ricevute/internal/storage"
	"ricevute/internal/structure"
	appweb "ricevute/web"
)

// Options carries the server's collaborators and tuning.
type Options struct {
	Auth           *auth.Manager
	Extractor      ocr.TextExtractor
	Structurer     structure.Structurer
	Receipts       *services.ReceiptService
	Writer         *batch.Writer
	SpreadsheetID  string
	MaxUploadBytes int64
}

type Server struct {
	http.Server

	auth           *auth.Manager
	extractor      ocr.TextExtractor
	structurer     structure.Structurer
	receipts       *services.ReceiptService
	writer         *batch.Writer
	spreadsheetID  string
	maxUploadBytes int64

	rateLimiter  *rateLimiter
	historyCache *cache.LRUCache[[]storage.StoredReceipt]
	cacheManager *cache.Manager
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, opts Options) *Server {
	mux := http.NewServeMux()

	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 * 1024 * 1024
	}

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		auth:           opts.Auth,
		extractor:      opts.Extractor,
		structurer:     opts.Structurer,
		receipts:       opts.Receipts,
		writer:         opts.Writer,
		spreadsheetID:  opts.SpreadsheetID,
		maxUploadBytes: opts.MaxUploadBytes,
		rateLimiter:    newRateLimiter(60),
		historyCache:   cache.NewLRUCache[[]storage.StoredReceipt](100, 5*time.Minute),
		cacheManager:   cache.NewManager(),
	}

	s.cacheManager.Register(s.historyCache)
	s.cacheManager.StartCleanup(time.Minute)

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.FileServer(http.FS(sub))
		mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/api/auth/login", s.withMiddleware(s.handleLogin))
	mux.HandleFunc("/api/ocr/process", s.withMiddleware(s.requireAuth(s.handleOCRProcess)))
	mux.HandleFunc("/api/ai/structure", s.withMiddleware(s.requireAuth(s.handleStructure)))
	mux.HandleFunc("/api/sheets/write", s.withMiddleware(s.requireAuth(s.handleWrite)))
	mux.HandleFunc("/api/sheets/batch-write", s.withMiddleware(s.requireAuth(s.handleBatchWrite)))
	mux.HandleFunc("/api/sheets/history", s.withMiddleware(s.requireAuth(s.handleHistory)))

	return s
}

// Shutdown stops the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		if s.cacheManager != nil {
			s.cacheManager.Stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

// withMiddleware adds request IDs, logging, security headers, and rate
// limiting for mutating requests.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := clientIPFromRequest(r)

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		setSecurityHeaders(w)

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

// requireAuth rejects requests without a valid bearer token.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.Verify(bearerToken(r))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if claims.Role != "admin" {
			writeError(w, http.StatusForbidden, "insufficient role")
			return
		}
		next(w, r)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
