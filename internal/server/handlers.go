package server

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/cache"
	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/domain/directory"
)

// defaultCleanupLimit bounds a cleanup pass when the request names none.
const defaultCleanupLimit = 500

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	req := filterRequestFromQuery(r.URL.Query())
	req.ClientID = clientIdentity(r)

	result, err := s.directory.Execute(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFilterPlugins(w http.ResponseWriter, r *http.Request) {
	var req directory.FilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "request body must be valid JSON")
		return
	}
	req.ClientID = clientIdentity(r)

	result, err := s.directory.Execute(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePluginDetails(w http.ResponseWriter, r *http.Request) {
	plugin, err := s.directory.Details(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plugin)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cache.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeCache, "cache is unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Scope string `json:"scope"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "request body must be valid JSON")
		return
	}
	if body.Scope == "" {
		body.Scope = cache.ScopeAll
	}
	if !cache.ValidScope(body.Scope) {
		writeError(w, http.StatusBadRequest, codeValidation, "unknown cache scope")
		return
	}

	removed, err := s.cache.Clear(r.Context(), body.Scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeCache, "cache is unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"scope":   body.Scope,
		"removed": removed,
	})
}

func (s *Server) handleCacheCleanup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Limit int `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "request body must be valid JSON")
		return
	}
	if body.Limit < 1 {
		body.Limit = defaultCleanupLimit
	}

	removed, err := s.cache.Cleanup(r.Context(), body.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeCache, "cache is unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"removed": removed,
	})
}

// filterRequestFromQuery builds a FilterRequest from URL query parameters.
// Unparseable numbers read as zero and pick up the Normalize defaults.
func filterRequestFromQuery(q url.Values) directory.FilterRequest {
	req := directory.FilterRequest{
		SearchTerm:      q.Get("search_term"),
		InstallRange:    directory.InstallRange(q.Get("installation_range")),
		UpdateTimeframe: directory.UpdateTimeframe(q.Get("update_timeframe")),
		SortBy:          directory.SortField(q.Get("sort_by")),
		SortDirection:   directory.SortDirection(q.Get("sort_direction")),
	}
	req.MinUsabilityRating, _ = strconv.ParseFloat(q.Get("usability_rating"), 64)
	req.MinHealthScore, _ = strconv.Atoi(q.Get("health_score"))
	req.Page, _ = strconv.Atoi(q.Get("page"))
	req.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	return req
}

// clientIdentity picks the caller identity for rate limiting: the first
// X-Forwarded-For hop when present, the socket address otherwise.
func clientIdentity(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
