package directory

import "errors"

// Orchestrator error taxonomy. Handlers branch on these with errors.Is to
// pick a response code; messages stay free of connection strings, paths and
// other internals.
var (
	ErrValidation  = errors.New("invalid request")
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrCatalog     = errors.New("catalog failure")
	ErrCache       = errors.New("cache failure")
	ErrNotFound    = errors.New("plugin not found")
)
