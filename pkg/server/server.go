// Package server exposes the render pipeline over HTTP.
//
// Routes:
//
//	GET  /healthz           liveness and build info
//	POST /render?frame=N    scene in the body, PNG out
//	POST /graph?frame=N     scene in the body, task graph out (format=dot|svg|png)
//	GET  /history           recent renders (limit=N)
//	GET  /history/{id}      one render record
//
// Scenes are posted either as raw TOML or, with Content-Type
// application/json, as [pipeline.Options] whose "scene" field holds the
// TOML. Image paths in posted scenes resolve against Config.BaseDir.
package server

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/boxrender/pkg/history"
	"github.com/matzehuels/boxrender/pkg/observability"
	"github.com/matzehuels/boxrender/pkg/pipeline"
)

// Defaults for Config.
const (
	DefaultMaxBody = 1 << 20
	DefaultTimeout = 60 * time.Second
)

// Config configures a Server.
type Config struct {
	Runner  *pipeline.Runner
	History history.Store
	Logger  *log.Logger

	// BaseDir resolves relative image paths in posted scenes.
	BaseDir string
	// Workers is the scheduler pool size per request. Zero uses GOMAXPROCS.
	Workers int
	// MaxBody limits the request body in bytes.
	MaxBody int64
	// Timeout bounds a single render or graph request.
	Timeout time.Duration
}

// Server is the HTTP render API.
type Server struct {
	cfg    Config
	router chi.Router
}

// New builds the router. A nil Runner renders without a cache; a nil
// History keeps no records.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	if cfg.Runner == nil {
		cfg.Runner = pipeline.NewRunner(nil, nil, cfg.Logger)
	}
	if cfg.History == nil {
		cfg.History = history.NewNullStore()
	}
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = DefaultMaxBody
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	s := &Server{cfg: cfg}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.health)
	r.Post("/render", s.render)
	r.Post("/graph", s.graph)
	r.Get("/history", s.listHistory)
	r.Get("/history/{id}", s.getHistory)

	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.cfg.Logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// observe reports every request to the HTTP hooks and the debug log.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		observability.HTTP().OnRequest(ctx, r.Method, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		dur := time.Since(start)
		observability.HTTP().OnResponse(ctx, r.Method, r.URL.Path, status, dur)
		s.cfg.Logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", dur,
			"request_id", middleware.GetReqID(ctx))
	})
}
