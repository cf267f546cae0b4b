// Package directory orchestrates plugin searches: it pulls records from the
// catalog, applies installation and recency filters, attaches quality scores,
// and returns sorted, paginated result pages. Assembled pages and per-plugin
// scores are cached so identical queries skip both the catalog round trip and
// the scoring pass.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/cache"
	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/domain/catalog"
	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/domain/scoring"
)

// ActionFilter is the rate-limit action charged for each filter query.
const ActionFilter = "filter"

// anonymousClient stands in when a request carries no client identity.
const anonymousClient = "anonymous"

// Cache is the slice of the tiered cache the orchestrator depends on.
// *cache.TieredCache satisfies it.
type Cache interface {
	GetJSON(ctx context.Context, scope, key string, v any) (bool, error)
	SetJSON(ctx context.Context, scope, key string, v any, ttl time.Duration) error
	GetMany(ctx context.Context, scope string, keys []string) (map[string][]byte, error)
}

// RateLimiter admits or rejects a request for an identity and action.
type RateLimiter interface {
	Allow(ctx context.Context, ident, action string) (bool, error)
}

// ServiceConfig tunes the orchestrator's cache lifetimes and catalog fetch
// size.
type ServiceConfig struct {
	// MetadataTTL bounds cached plugin detail records.
	MetadataTTL time.Duration
	// ScoresTTL bounds cached per-plugin scoring results.
	ScoresTTL time.Duration
	// SearchTTL bounds cached assembled result pages.
	SearchTTL time.Duration
	// FetchWindow is how many catalog records one search pulls before local
	// filtering. Local filters need headroom beyond the page size, and the
	// catalog API caps per_page at 250.
	FetchWindow int
}

// DefaultServiceConfig returns the orchestrator defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MetadataTTL: 24 * time.Hour,
		ScoresTTL:   6 * time.Hour,
		SearchTTL:   time.Hour,
		FetchWindow: 250,
	}
}

// Service coordinates catalog access, filtering, scoring and caching for
// directory queries.
type Service struct {
	catalog catalog.Directory
	store   Cache
	engine  *scoring.Engine
	limiter RateLimiter
	config  ServiceConfig
	now     func() time.Time
}

// ServiceOption adjusts a Service during construction.
type ServiceOption func(*Service)

// WithServiceConfig replaces the default cache lifetimes and fetch window.
func WithServiceConfig(cfg ServiceConfig) ServiceOption {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithRateLimiter installs a request limiter. Without one every request is
// admitted.
func WithRateLimiter(limiter RateLimiter) ServiceOption {
	return func(s *Service) {
		s.limiter = limiter
	}
}

// WithClock overrides the time source used by timeframe filtering.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService wires a directory orchestrator.
func NewService(dir catalog.Directory, store Cache, engine *scoring.Engine, opts ...ServiceOption) *Service {
	s := &Service{
		catalog: dir,
		store:   store,
		engine:  engine,
		config:  DefaultServiceConfig(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.config.FetchWindow < 1 {
		s.config.FetchWindow = DefaultServiceConfig().FetchWindow
	}
	return s
}

// Execute runs the filter pipeline: admit the client, serve a cached page if
// one exists, otherwise fetch from the catalog, filter, score, sort, paginate
// and cache the assembled page. A cancelled context aborts before any cache
// write.
func (s *Service) Execute(ctx context.Context, req FilterRequest) (*PagedResult, error) {
	req = req.Normalize()

	if s.limiter != nil {
		ident := req.ClientID
		if ident == "" {
			ident = anonymousClient
		}
		allowed, err := s.limiter.Allow(ctx, ident, ActionFilter)
		if err != nil {
			return nil, cacheErr(err)
		}
		if !allowed {
			return nil, fmt.Errorf("%w: client %q", ErrRateLimited, ident)
		}
	}

	key := req.CacheKey()
	var cached PagedResult
	found, err := s.store.GetJSON(ctx, cache.ScopeSearch, key, &cached)
	if err != nil {
		return nil, cacheErr(err)
	}
	if found {
		return &cached, nil
	}

	metas, _, err := s.catalog.Search(ctx, req.SearchTerm, 1, s.config.FetchWindow, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalog, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	filtered := make([]catalog.PluginMetadata, 0, len(metas))
	for _, meta := range metas {
		if !req.InstallRange.Matches(meta.ActiveInstalls) {
			continue
		}
		if !req.UpdateTimeframe.Matches(meta.LastUpdated, now) {
			continue
		}
		filtered = append(filtered, meta)
	}

	scored, err := s.scorePlugins(ctx, filtered)
	if err != nil {
		return nil, err
	}

	kept := make([]ScoredPlugin, 0, len(scored))
	for _, plugin := range scored {
		if plugin.UsabilityRating < req.MinUsabilityRating {
			continue
		}
		if plugin.HealthScore < req.MinHealthScore {
			continue
		}
		kept = append(kept, plugin)
	}

	sortPlugins(kept, req.SortBy, req.SortDirection)
	result := paginate(kept, req)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.store.SetJSON(ctx, cache.ScopeSearch, key, result, s.config.SearchTTL); err != nil {
		return nil, cacheErr(err)
	}
	return result, nil
}

// Details returns one plugin with scores attached, serving repeat lookups
// from the metadata cache.
func (s *Service) Details(ctx context.Context, slug string) (*ScoredPlugin, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("%w: slug must not be empty", ErrValidation)
	}

	var meta catalog.PluginMetadata
	found, err := s.store.GetJSON(ctx, cache.ScopeMeta, slug, &meta)
	if err != nil {
		return nil, cacheErr(err)
	}
	if !found {
		meta, err = s.catalog.Details(ctx, slug)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
			}
			return nil, fmt.Errorf("%w: %v", ErrCatalog, err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.store.SetJSON(ctx, cache.ScopeMeta, slug, meta, s.config.MetadataTTL); err != nil {
			return nil, cacheErr(err)
		}
	}

	scored, err := s.scorePlugins(ctx, []catalog.PluginMetadata{meta})
	if err != nil {
		return nil, err
	}
	return &scored[0], nil
}

// scorePlugins attaches scores to each plugin, serving repeats from the
// scores cache. All cache lookups for a batch ride one GetMany call; only
// misses reach the engine and are written back individually.
func (s *Service) scorePlugins(ctx context.Context, metas []catalog.PluginMetadata) ([]ScoredPlugin, error) {
	scored := make([]ScoredPlugin, 0, len(metas))
	if len(metas) == 0 {
		return scored, nil
	}

	keys := make([]string, len(metas))
	for i, meta := range metas {
		keys[i] = meta.Slug
	}
	hits, err := s.store.GetMany(ctx, cache.ScopeScores, keys)
	if err != nil {
		return nil, cacheErr(err)
	}

	for _, meta := range metas {
		if payload, ok := hits[meta.Slug]; ok {
			var result scoring.Result
			if err := json.Unmarshal(payload, &result); err == nil {
				scored = append(scored, newScoredPlugin(meta, result))
				continue
			}
			// Undecodable entries fall through to recomputation.
		}

		result := s.engine.Score(meta)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.store.SetJSON(ctx, cache.ScopeScores, meta.Slug, result, s.config.ScoresTTL); err != nil {
			return nil, cacheErr(err)
		}
		scored = append(scored, newScoredPlugin(meta, result))
	}
	return scored, nil
}

// paginate slices one page out of the filtered set. Pages past the end come
// back empty rather than erroring.
func paginate(plugins []ScoredPlugin, req FilterRequest) *PagedResult {
	total := len(plugins)
	totalPages := 0
	if total > 0 {
		totalPages = (total + req.PerPage - 1) / req.PerPage
	}

	start := (req.Page - 1) * req.PerPage
	if start > total {
		start = total
	}
	end := start + req.PerPage
	if end > total {
		end = total
	}

	page := make([]ScoredPlugin, end-start)
	copy(page, plugins[start:end])

	return &PagedResult{
		Plugins: page,
		Pagination: Pagination{
			CurrentPage:  req.Page,
			TotalPages:   totalPages,
			TotalResults: total,
			PerPage:      req.PerPage,
		},
		FiltersApplied: req,
	}
}

// cacheErr classifies a cache failure, letting context cancellation pass
// through untouched.
func cacheErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrCache, err)
}
