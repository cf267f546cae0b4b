package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/cache"
	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/domain/catalog"
	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/domain/directory"
)

type stubDirectory struct {
	result  *directory.PagedResult
	plugin  *directory.ScoredPlugin
	execErr error
	detErr  error
	panics  bool

	gotReq  directory.FilterRequest
	gotSlug string
}

func (s *stubDirectory) Execute(_ context.Context, req directory.FilterRequest) (*directory.PagedResult, error) {
	if s.panics {
		panic("stub exploded")
	}
	s.gotReq = req
	if s.execErr != nil {
		return nil, s.execErr
	}
	return s.result, nil
}

func (s *stubDirectory) Details(_ context.Context, slug string) (*directory.ScoredPlugin, error) {
	s.gotSlug = slug
	if s.detErr != nil {
		return nil, s.detErr
	}
	return s.plugin, nil
}

type stubCache struct {
	stats    cache.Stats
	statsErr error
	clearN   int
	cleanN   int

	gotScope string
	gotLimit int
}

func (s *stubCache) Stats(_ context.Context) (cache.Stats, error) {
	return s.stats, s.statsErr
}

func (s *stubCache) Clear(_ context.Context, scope string) (int, error) {
	s.gotScope = scope
	return s.clearN, nil
}

func (s *stubCache) Cleanup(_ context.Context, limit int) (int, error) {
	s.gotLimit = limit
	return s.cleanN, nil
}

type stubLimiter struct {
	limit int
	reset time.Time
}

func (s stubLimiter) Limit() int       { return s.limit }
func (s stubLimiter) Reset() time.Time { return s.reset }

func samplePage() *directory.PagedResult {
	return &directory.PagedResult{
		Plugins: []directory.ScoredPlugin{{
			PluginMetadata:  catalog.PluginMetadata{Slug: "cart-lite", Name: "Cart Lite"},
			UsabilityRating: 4.1,
			HealthScore:     78,
			HealthColor:     "light-green",
		}},
		Pagination:     directory.Pagination{CurrentPage: 1, TotalPages: 1, TotalResults: 1, PerPage: 24},
		FiltersApplied: directory.FilterRequest{}.Normalize(),
	}
}

func newTestServer(dir *stubDirectory, store *stubCache, opts ...Option) *Server {
	return New(Dependencies{Directory: dir, Cache: store}, opts...)
}

func doRequest(t *testing.T, s *Server, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_ListPlugins_QueryParams(t *testing.T) {
	t.Parallel()
	dir := &stubDirectory{result: samplePage()}
	s := newTestServer(dir, &stubCache{})

	rec := doRequest(t, s, http.MethodGet,
		"/api/v1/plugins?search_term=seo&installation_range=over-1m&update_timeframe=6months"+
			"&usability_rating=3.5&health_score=70&sort_by=health_score&sort_direction=asc&page=2&per_page=10",
		"", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	assert.Equal(t, "seo", dir.gotReq.SearchTerm)
	assert.Equal(t, directory.InstallRangeOver1M, dir.gotReq.InstallRange)
	assert.Equal(t, directory.Timeframe6Months, dir.gotReq.UpdateTimeframe)
	assert.Equal(t, 3.5, dir.gotReq.MinUsabilityRating)
	assert.Equal(t, 70, dir.gotReq.MinHealthScore)
	assert.Equal(t, directory.SortHealth, dir.gotReq.SortBy)
	assert.Equal(t, directory.SortAsc, dir.gotReq.SortDirection)
	assert.Equal(t, 2, dir.gotReq.Page)
	assert.Equal(t, 10, dir.gotReq.PerPage)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "plugins")
	assert.Contains(t, body, "pagination")
	assert.Contains(t, body, "filters_applied")
}

func TestServer_FilterPlugins_Body(t *testing.T) {
	t.Parallel()

	t.Run("decodes the request shape", func(t *testing.T) {
		t.Parallel()
		dir := &stubDirectory{result: samplePage()}
		s := newTestServer(dir, &stubCache{})

		rec := doRequest(t, s, http.MethodPost, "/api/v1/plugins/filter",
			`{"search_term":"shop","installation_range":"100k-1m","health_score":60,"per_page":12}`, nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "shop", dir.gotReq.SearchTerm)
		assert.Equal(t, directory.InstallRange100KTo1M, dir.gotReq.InstallRange)
		assert.Equal(t, 60, dir.gotReq.MinHealthScore)
		assert.Equal(t, 12, dir.gotReq.PerPage)
	})

	t.Run("identity comes from the socket", func(t *testing.T) {
		t.Parallel()
		dir := &stubDirectory{result: samplePage()}
		s := newTestServer(dir, &stubCache{})

		doRequest(t, s, http.MethodPost, "/api/v1/plugins/filter", `{}`, nil)
		assert.Equal(t, "192.0.2.1", dir.gotReq.ClientID)
	})

	t.Run("forwarded header wins", func(t *testing.T) {
		t.Parallel()
		dir := &stubDirectory{result: samplePage()}
		s := newTestServer(dir, &stubCache{})

		h := http.Header{}
		h.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		doRequest(t, s, http.MethodPost, "/api/v1/plugins/filter", `{}`, h)
		assert.Equal(t, "203.0.113.9", dir.gotReq.ClientID)
	})

	t.Run("malformed body is a validation error", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(&stubDirectory{}, &stubCache{})

		rec := doRequest(t, s, http.MethodPost, "/api/v1/plugins/filter", `{{{`, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var body errorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.False(t, body.Success)
		assert.Equal(t, codeValidation, body.Code)
	})
}

func TestServer_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", fmt.Errorf("%w: bad slug", directory.ErrValidation), http.StatusBadRequest, codeValidation},
		{"rate limited", fmt.Errorf("%w: client x", directory.ErrRateLimited), http.StatusTooManyRequests, codeRateLimited},
		{"catalog", fmt.Errorf("%w: upstream 500", directory.ErrCatalog), http.StatusBadGateway, codeCatalog},
		{"cache", fmt.Errorf("%w: bolt closed", directory.ErrCache), http.StatusInternalServerError, codeCache},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, codeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer(&stubDirectory{execErr: tt.err}, &stubCache{})

			rec := doRequest(t, s, http.MethodGet, "/api/v1/plugins", "", nil)
			require.Equal(t, tt.wantStatus, rec.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotEmpty(t, body.Message)
			assert.NotContains(t, body.Message, "bolt", "internals must not leak")
		})
	}
}

func TestServer_RateLimitHeaders(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 30, 0, time.UTC)
	limiter := stubLimiter{limit: 30, reset: now.Add(30 * time.Second)}
	s := New(Dependencies{
		Directory: &stubDirectory{execErr: directory.ErrRateLimited},
		Cache:     &stubCache{},
		Limiter:   limiter,
	}, WithClock(func() time.Time { return now }))

	rec := doRequest(t, s, http.MethodGet, "/api/v1/plugins", "", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "30", rec.Header().Get("X-RateLimit-Limit"))
}

func TestServer_PluginDetails(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		dir := &stubDirectory{plugin: &samplePage().Plugins[0]}
		s := newTestServer(dir, &stubCache{})

		rec := doRequest(t, s, http.MethodGet, "/api/v1/plugins/cart-lite", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "cart-lite", dir.gotSlug)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "cart-lite", body["slug"])
		assert.Equal(t, 4.1, body["usability_rating"])
		assert.Equal(t, "light-green", body["health_color"])
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		dir := &stubDirectory{detErr: fmt.Errorf("%w: nope", directory.ErrNotFound)}
		s := newTestServer(dir, &stubCache{})

		rec := doRequest(t, s, http.MethodGet, "/api/v1/plugins/nope", "", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)

		var body errorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, codeNotFound, body.Code)
	})
}

func TestServer_CacheEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("stats", func(t *testing.T) {
		t.Parallel()
		store := &stubCache{stats: cache.Stats{
			Entries:    3,
			TotalBytes: 512,
			PerScope:   map[string]cache.ScopeStats{"search": {Entries: 3, Bytes: 512}},
		}}
		s := newTestServer(&stubDirectory{}, store)

		rec := doRequest(t, s, http.MethodGet, "/api/v1/cache/stats", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var got cache.Stats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, store.stats, got)
	})

	t.Run("clear named scope", func(t *testing.T) {
		t.Parallel()
		store := &stubCache{clearN: 7}
		s := newTestServer(&stubDirectory{}, store)

		rec := doRequest(t, s, http.MethodPost, "/api/v1/cache/clear", `{"scope":"search"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "search", store.gotScope)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["success"])
		assert.Equal(t, float64(7), body["removed"])
	})

	t.Run("clear defaults to all scopes", func(t *testing.T) {
		t.Parallel()
		store := &stubCache{}
		s := newTestServer(&stubDirectory{}, store)

		rec := doRequest(t, s, http.MethodPost, "/api/v1/cache/clear", `{}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, cache.ScopeAll, store.gotScope)
	})

	t.Run("clear rejects unknown scope", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(&stubDirectory{}, &stubCache{})

		rec := doRequest(t, s, http.MethodPost, "/api/v1/cache/clear", `{"scope":"bogus"}`, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("cleanup applies the default limit", func(t *testing.T) {
		t.Parallel()
		store := &stubCache{cleanN: 12}
		s := newTestServer(&stubDirectory{}, store)

		rec := doRequest(t, s, http.MethodPost, "/api/v1/cache/cleanup", `{}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, defaultCleanupLimit, store.gotLimit)
	})

	t.Run("cleanup honors an explicit limit", func(t *testing.T) {
		t.Parallel()
		store := &stubCache{}
		s := newTestServer(&stubDirectory{}, store)

		doRequest(t, s, http.MethodPost, "/api/v1/cache/cleanup", `{"limit":3}`, nil)
		assert.Equal(t, 3, store.gotLimit)
	})
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()
	s := newTestServer(&stubDirectory{}, &stubCache{})

	rec := doRequest(t, s, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_RequestID(t *testing.T) {
	t.Parallel()
	s := newTestServer(&stubDirectory{result: samplePage()}, &stubCache{})

	t.Run("generated when absent", func(t *testing.T) {
		t.Parallel()
		rec := doRequest(t, s, http.MethodGet, "/healthz", "", nil)
		assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	})

	t.Run("caller value is kept", func(t *testing.T) {
		t.Parallel()
		h := http.Header{}
		h.Set(RequestIDHeader, "abc-123")
		rec := doRequest(t, s, http.MethodGet, "/healthz", "", h)
		assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	})
}

func TestServer_PanicRecovery(t *testing.T) {
	t.Parallel()
	s := newTestServer(&stubDirectory{panics: true}, &stubCache{})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/plugins", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, codeInternal, body.Code)
}
