// Package api exposes document resolution over HTTP.
//
// The server wraps an engine.Runner and an optional run archive behind a
// small JSON API:
//
//	POST /v1/resolve          resolve a document
//	GET  /v1/runs             list archived runs
//	GET  /v1/runs/{id}        fetch one archived run
//	GET  /v1/runs/{id}/render render an archived run (dot, svg, plan)
//	GET  /healthz             liveness probe
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kholzweiler/planfreeze/pkg/engine"
	"github.com/kholzweiler/planfreeze/pkg/store"
)

// readHeaderTimeout bounds slow-header attacks on the listener.
const readHeaderTimeout = 10 * time.Second

// Options configures the API server.
type Options struct {
	// Addr is the listen address, for example ":8080".
	Addr string

	// Runner executes resolutions. Required.
	Runner *engine.Runner

	// Store archives completed runs. Nil disables the /v1/runs endpoints.
	Store store.Store

	// Logger receives request and resolution logs. Nil discards.
	Logger *log.Logger

	// MaxBodyBytes caps request body size. Zero means 16 MiB.
	MaxBodyBytes int64
}

// defaultMaxBodyBytes caps resolve payloads at 16 MiB.
const defaultMaxBodyBytes = 16 << 20

// Server is the HTTP front end over a resolution runner.
type Server struct {
	opts   Options
	router chi.Router
	http   *http.Server
}

// NewServer builds a server with its routes registered but not listening.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	s := &Server{opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(opts.Logger))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/resolve", s.handleResolve)
		if opts.Store != nil {
			r.Get("/runs", s.handleListRuns)
			r.Get("/runs/{id}", s.handleGetRun)
			r.Get("/runs/{id}/render", s.handleRenderRun)
		}
	})

	s.router = r
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler returns the server's router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks serving requests until the listener fails or the
// server is shut down.
func (s *Server) ListenAndServe() error {
	s.opts.Logger.Info("api server listening", "addr", s.opts.Addr)
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// ctxKey is the type for context keys used in this package.
type ctxKey int

// loggerKey carries the request-scoped logger.
const loggerKey ctxKey = 0

// withLogger returns a new context with the given logger attached.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx, falling back to a discard
// logger so handlers never nil-check.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return discardLogger()
}

// requestLogger attaches a request-scoped logger to the context and logs each
// request at debug level with method, path, status, and duration.
func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLogger := logger.With("request_id", middleware.GetReqID(r.Context()))
			r = r.WithContext(withLogger(r.Context(), reqLogger))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			reqLogger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start))
		})
	}
}
