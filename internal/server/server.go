// Package server exposes the directory pipeline over an HTTP JSON API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/cache"
	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/domain/directory"
	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/ports"
)

// DirectoryService is the orchestrator surface the API serves.
type DirectoryService interface {
	Execute(ctx context.Context, req directory.FilterRequest) (*directory.PagedResult, error)
	Details(ctx context.Context, slug string) (*directory.ScoredPlugin, error)
}

// CacheAdmin exposes the cache maintenance operations.
type CacheAdmin interface {
	Stats(ctx context.Context) (cache.Stats, error)
	Clear(ctx context.Context, scope string) (int, error)
	Cleanup(ctx context.Context, limit int) (int, error)
}

// LimitInfo supplies rate-limit response headers. *ratelimit.Limiter
// satisfies it.
type LimitInfo interface {
	Limit() int
	Reset() time.Time
}

// Dependencies carries everything the API needs. Limiter and Logger are
// optional; without them responses omit rate headers and requests go
// unlogged.
type Dependencies struct {
	Directory DirectoryService
	Cache     CacheAdmin
	Limiter   LimitInfo
	Logger    ports.Logger
}

// Server routes HTTP requests to the directory orchestrator and cache.
type Server struct {
	directory DirectoryService
	cache     CacheAdmin
	limiter   LimitInfo
	logger    ports.Logger
	now       func() time.Time
	router    chi.Router
}

// Option adjusts a Server during construction.
type Option func(*Server)

// WithClock overrides the time source used for rate-limit headers.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New assembles the router with its middleware chain.
func New(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		directory: deps.Directory,
		cache:     deps.Cache,
		limiter:   deps.Limiter,
		logger:    deps.Logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(s.recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plugins", s.handleListPlugins)
		r.Post("/plugins/filter", s.handleFilterPlugins)
		r.Get("/plugins/{slug}", s.handlePluginDetails)
		r.Get("/cache/stats", s.handleCacheStats)
		r.Post("/cache/clear", s.handleCacheClear)
		r.Post("/cache/cleanup", s.handleCacheCleanup)
	})
	s.router = r
	return s
}

// Handler returns the assembled HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
