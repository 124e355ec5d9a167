// Package web exposes the operator API over HTTP.
package web

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
	"github.com/vadiminshakov/dexsnipe/internal/services/executor"
	"github.com/vadiminshakov/dexsnipe/internal/storage/journal"
	"github.com/vadiminshakov/dexsnipe/internal/storage/settings"
)

// Controller the bot surface the API drives.
type Controller interface {
	Candidates() domain.CandidateList
	TriggerScan()
	Ladders() map[string]domain.Ladder
	Arm(mint string) (domain.Ladder, error)
	Disarm(mint string) (domain.Ladder, error)
	EditLadder(mint, levelsCSV, partsCSV string) (domain.Ladder, error)
	Buy(ctx context.Context, mint string) domain.TradeResult
	Sell(ctx context.Context, mint string, pct *decimal.Decimal) domain.TradeResult
	Trades(after uint64) ([]journal.Entry, error)
	Health() domain.Health
	ExportSettings() settings.Document
	ImportSettings(r io.Reader) error
}

// StatusSource the status line and its history.
type StatusSource interface {
	Current() executor.StatusEvent
	EventsAfter(index uint64) []executor.StatusEvent
	Changed() <-chan struct{}
}

// Server serves the operator API.
type Server struct {
	Addr   string
	logger *zap.Logger
	bot    Controller
	status StatusSource

	heartbeat time.Duration
}

// NewServer creates a new web server instance.
func NewServer(logger *zap.Logger, addr string, bot Controller, status StatusSource) *Server {
	return &Server{
		Addr:      addr,
		logger:    logger.With(zap.String("component", "web")),
		bot:       bot,
		status:    status,
		heartbeat: 20 * time.Second,
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /candidates", s.handleCandidates)
	mux.HandleFunc("POST /scan", s.handleScan)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /status/stream", s.handleStatusStream)
	mux.HandleFunc("GET /ladders", s.handleLadders)
	mux.HandleFunc("POST /ladders/{mint}/arm", s.handleArm)
	mux.HandleFunc("POST /ladders/{mint}/disarm", s.handleDisarm)
	mux.HandleFunc("POST /ladders/{mint}/edit", s.handleEdit)
	mux.HandleFunc("POST /trade/buy", s.handleBuy)
	mux.HandleFunc("POST /trade/sell", s.handleSell)
	mux.HandleFunc("GET /trades", s.handleTrades)
	mux.HandleFunc("GET /settings", s.handleExportSettings)
	mux.HandleFunc("PUT /settings", s.handleImportSettings)
	return compress(mux)
}

func (s *Server) newHTTPServer(handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              s.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := s.newHTTPServer(s.Handler())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("operator API listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "operator API")
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic ACME certificates.
// It also starts an HTTP server on port 80 to answer HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if len(domains) == 0 {
		return errors.New("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := s.newHTTPServer(s.Handler())
	httpsSrv.TLSConfig = tlsConfig

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("acme server shutdown", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("https server shutdown", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("acme server", zap.Error(err))
		}
	}()

	s.logger.Info("operator API listening with TLS", zap.String("addr", s.Addr), zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "operator API")
	}
	return nil
}

// compress gzips JSON responses for clients that accept it. Streams are left alone.
func compress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/stream") || !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")

		gz := gzip.NewWriter(w)
		defer gz.Close()

		next.ServeHTTP(&gzipResponseWriter{ResponseWriter: w, writer: gz}, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	writer *gzip.Writer
}

func (w *gzipResponseWriter) WriteHeader(statusCode int) {
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	return w.writer.Write(b)
}
