// Package server exposes resolution passes and their markers over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rate-map/internal/marker"
	"github.com/sells-group/rate-map/internal/model"
	"github.com/sells-group/rate-map/internal/pipeline"
)

// RecordSource supplies the records for a new pass.
type RecordSource interface {
	FetchRecords(ctx context.Context) ([]model.Record, error)
}

// PassRunner starts resolution passes.
type PassRunner interface {
	Run(ctx context.Context, records []model.Record) *pipeline.Pass
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins sets the CORS allowed origins.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// session is one pass plus the marker set its stream drains into.
type session struct {
	pass     *pipeline.Pass
	set      *marker.Set
	drained  chan struct{} // closed once the stream is fully drained
	replaced chan struct{} // closed when a newer pass takes over
}

// Server owns at most one current pass. Starting a new pass detaches the
// previous one.
type Server struct {
	source  RecordSource
	runner  PassRunner
	origins []string

	mu      sync.Mutex
	base    context.Context
	current *session
}

// New creates a Server.
func New(source RecordSource, runner PassRunner, opts ...Option) *Server {
	s := &Server{
		source:  source,
		runner:  runner,
		origins: []string{"*"},
		base:    context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/passes", s.handleStartPass)
	r.Get("/passes/current", s.handleCurrentPass)
	r.Get("/markers", s.handleMarkers)
	r.Get("/markers.geojson", s.handleMarkersGeoJSON)
	r.Get("/markers/stream", s.handleMarkersStream)
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
// Passes started through the server are bound to ctx.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()
	defer s.Close()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return eris.Wrap(srv.Shutdown(shutdownCtx), "server: shutdown")
	case err := <-errCh:
		return eris.Wrap(err, "server: listen")
	}
}

// Close detaches the current pass.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.pass.Detach()
		close(s.current.replaced)
		s.current = nil
	}
}

// startPass runs records and makes the new pass current.
func (s *Server) startPass(records []model.Record) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev := s.current; prev != nil {
		prev.pass.Detach()
		close(prev.replaced)
		zap.L().Debug("server: detached previous pass", zap.String("pass_id", prev.pass.ID))
	}

	sess := &session{
		pass:     s.runner.Run(s.base, records),
		set:      marker.NewSet(),
		drained:  make(chan struct{}),
		replaced: make(chan struct{}),
	}
	go func() {
		defer close(sess.drained)
		sess.set.Drain(s.base, sess.pass.Markers())
	}()

	s.current = sess
	return sess
}

func (s *Server) session() *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// requestLogger logs each request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
