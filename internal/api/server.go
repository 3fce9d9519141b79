// Package api serves one rename session over HTTP.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Nomadcxx/jellyrename/internal/database"
	"github.com/Nomadcxx/jellyrename/internal/logging"
	"github.com/Nomadcxx/jellyrename/internal/scanner"
	"github.com/Nomadcxx/jellyrename/internal/session"
)

// HistoryLister is the read side of the batch history.
type HistoryLister interface {
	RecentBatches(ctx context.Context, limit int) ([]database.Batch, error)
}

// Server implements the API. Every handler holds mu while it touches the
// session.
type Server struct {
	mu      sync.Mutex
	sess    *session.Session
	history HistoryLister
	scan    scanner.Options
	token   string
	origins []string
	metrics *Metrics
	logger  *logging.Logger
	// batchLock is held on top of mu while a plan is built, executed or
	// undone.
	batchLock sync.Locker
}

type Option func(*Server)

func WithHistory(h HistoryLister) Option {
	return func(s *Server) {
		s.history = h
	}
}

// WithToken requires "Authorization: Bearer <token>" on every API route.
func WithToken(token string) Option {
	return func(s *Server) {
		s.token = token
	}
}

func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithScanOptions controls how directories posted to /files are expanded.
func WithScanOptions(opts scanner.Options) Option {
	return func(s *Server) {
		s.scan = opts
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithBatchLock serializes planning, execution and undo with other
// processes sharing the same files and history.
func WithBatchLock(l sync.Locker) Option {
	return func(s *Server) {
		s.batchLock = l
	}
}

// NewServer creates a new API server
func NewServer(sess *session.Session, opts ...Option) *Server {
	s := &Server{
		sess:    sess,
		scan:    scanner.Options{Recursive: true},
		logger:  logging.Nop(),
		metrics: NewMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lockBatch takes the batch lock, if any, and returns its release.
func (s *Server) lockBatch() func() {
	if s.batchLock == nil {
		return func() {}
	}
	s.batchLock.Lock()
	return s.batchLock.Unlock
}

// Locker returns the lock guarding the session, for other writers such as
// the directory watcher.
func (s *Server) Locker() sync.Locker {
	return &s.mu
}

func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler returns the HTTP handler with CORS, metrics and the API routes
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.origins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", s.metrics.Handler())

	r.Mount("/api/v1", s.apiRouter())
	return r
}

func (s *Server) apiRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.SetHeader("Content-Type", "application/json"))
	r.Use(s.authMiddleware)
	r.Use(s.metrics.middleware)

	r.Post("/files", s.AddFiles)
	r.Get("/entries", s.GetEntries)
	r.Delete("/entries/{id}", s.RemoveEntry)
	r.Post("/resolve", s.Resolve)
	r.Post("/choose", s.Choose)
	r.Get("/plan", s.GetPlan)
	r.Post("/plan", s.BuildPlan)
	r.Post("/execute", s.Execute)
	r.Post("/undo", s.Undo)
	r.Delete("/batch", s.ResetBatch)
	r.Get("/history", s.GetHistory)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("api", "request",
			logging.F("method", r.Method),
			logging.F("path", r.URL.Path),
			logging.F("status", ww.Status()),
			logging.F("duration", time.Since(start)),
			logging.F("request_id", middleware.GetReqID(r.Context())))
	})
}
