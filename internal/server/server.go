// Package server exposes the HTTP API and the embedded browser UI.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/amiaddur/wavepipe/internal/download"
	"github.com/amiaddur/wavepipe/internal/model"
	"github.com/amiaddur/wavepipe/internal/web"
)

// Server defaults
const (
	DefaultAddr            = ":3000"
	DefaultShutdownTimeout = 10 * time.Second
	ReadHeaderTimeout      = 10 * time.Second
	VersionTimeout         = 5 * time.Second
)

// MetadataFetcher answers /api/info
type MetadataFetcher interface {
	Fetch(ctx context.Context, url string) (*model.MediaInfo, error)
}

// VersionProber reports the installed ffmpeg
type VersionProber interface {
	FFmpegVersion(ctx context.Context) (string, error)
}

// Options configures a Server
type Options struct {
	Addr            string
	ShutdownTimeout time.Duration
	RateLimit       float64
	RateBurst       int

	// TrustProxy takes the client address from X-Forwarded-For or
	// X-Real-IP instead of the connection
	TrustProxy bool
}

// Server wires the handlers
type Server struct {
	downloads download.Downloader
	metadata  MetadataFetcher
	runner    download.Runner
	prober    VersionProber
	opts      Options
	logger    zerolog.Logger
	limiter   *clientLimiter
	startedAt time.Time
	router    chi.Router
}

// New creates a server. runner and prober are only used by the health
// endpoint and may be nil.
func New(downloads download.Downloader, metadata MetadataFetcher, runner download.Runner, prober VersionProber, opts Options, logger zerolog.Logger) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}

	s := &Server{
		downloads: downloads,
		metadata:  metadata,
		runner:    runner,
		prober:    prober,
		opts:      opts,
		logger:    logger,
		limiter:   newClientLimiter(opts.RateLimit, opts.RateBurst),
		startedAt: time.Now(),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(accessLog(s.logger))
	r.Use(recoverer(s.logger))

	r.Route("/api", func(r chi.Router) {
		r.Use(cors)
		r.Use(s.limiter.middleware)
		r.Get("/info", s.handleInfo)
		r.Get("/download", s.handleDownload)
		r.Get("/downloads", s.handleDownloads)
		r.Get("/health", s.handleHealth)
	})

	r.Get("/robots.txt", handleRobots)
	r.Get("/manifest.webmanifest", handleManifest)
	r.Handle("/*", http.FileServer(http.FS(web.FS())))

	return r
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done, then drains in-flight requests
// for up to the shutdown timeout
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Dur("timeout", s.opts.ShutdownTimeout).Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
