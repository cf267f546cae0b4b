package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/domain/directory"
)

// API error codes per the JSON contract.
const (
	codeValidation  = "validation_error"
	codeRateLimited = "rate_limited"
	codeNotFound    = "not_found"
	codeCatalog     = "catalog_error"
	codeCache       = "cache_error"
	codeInternal    = "internal_error"
)

// errorBody is the wire shape of every failed request.
type errorBody struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Success: false, Code: code, Message: message})
}

// respondError maps an orchestrator error onto the wire taxonomy. Messages
// are fixed strings so connection details, paths and stack traces never
// reach a client. Cancelled requests get no response at all.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}

	switch {
	case errors.Is(err, directory.ErrValidation):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, directory.ErrRateLimited):
		s.writeRateLimitHeaders(w)
		writeError(w, http.StatusTooManyRequests, codeRateLimited, "rate limit exceeded, retry later")
	case errors.Is(err, directory.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "plugin not found")
	case errors.Is(err, directory.ErrCatalog):
		writeError(w, http.StatusBadGateway, codeCatalog, "plugin catalog is unavailable")
	case errors.Is(err, directory.ErrCache):
		writeError(w, http.StatusInternalServerError, codeCache, "cache is unavailable")
	default:
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

// writeRateLimitHeaders adds Retry-After and X-RateLimit headers to a 429.
func (s *Server) writeRateLimitHeaders(w http.ResponseWriter) {
	if s.limiter == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.limiter.Limit()))
	w.Header().Set("X-RateLimit-Remaining", "0")

	retry := s.limiter.Reset().Sub(s.now())
	if retry < 0 {
		retry = 0
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
}
