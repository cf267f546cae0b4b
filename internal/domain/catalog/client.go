package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client errors. The orchestrator branches on these with errors.Is, so each
// failure class gets its own sentinel.
var (
	ErrConnection  = errors.New("catalog connection failed")
	ErrStatus      = errors.New("catalog returned error status")
	ErrMalformed   = errors.New("catalog returned malformed payload")
	ErrNotFound    = errors.New("plugin not found")
	ErrRateLimited = errors.New("catalog rate limited")
)

// DefaultBaseURL is the public plugin directory API.
const DefaultBaseURL = "https://api.wordpress.org"

// PageInfo describes the catalog-side pagination of a search response.
type PageInfo struct {
	Page         int `json:"page"`
	TotalPages   int `json:"pages"`
	TotalResults int `json:"results"`
}

// Directory is the catalog surface the orchestrator consumes. The HTTP
// client implements it; tests substitute stubs.
type Directory interface {
	// Search queries the catalog for plugins matching term. filters carries
	// catalog-native request parameters (tag, author) and may be nil.
	Search(ctx context.Context, term string, page, perPage int, filters map[string]string) ([]PluginMetadata, PageInfo, error)
	// Details fetches a single plugin's full record by slug.
	Details(ctx context.Context, slug string) (PluginMetadata, error)
}

// ClientConfig configures the catalog HTTP client.
type ClientConfig struct {
	// BaseURL is the API root, without a trailing slash.
	BaseURL string
	// Timeout bounds every catalog request.
	Timeout time.Duration
	// UserAgent is sent on every request.
	UserAgent string
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:   DefaultBaseURL,
		Timeout:   10 * time.Second,
		UserAgent: "wp-plugin-directory-filters/1.0",
	}
}

// Client fetches plugin metadata over HTTP. It is safe for concurrent use.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

// NewClient creates a catalog client.
func NewClient(config ClientConfig) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultClientConfig().Timeout
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// apiResponse is the wire shape of both query_plugins and
// plugin_information responses.
type apiResponse struct {
	Error   string         `json:"error"`
	Info    PageInfo       `json:"info"`
	Plugins []pluginRecord `json:"plugins"`
}

// pluginRecord is one plugin as the API serializes it.
type pluginRecord struct {
	Slug                   string         `json:"slug"`
	Name                   string         `json:"name"`
	Version                string         `json:"version"`
	Author                 string         `json:"author"`
	ShortDescription       string         `json:"short_description"`
	Rating                 float64        `json:"rating"` // 0-100
	NumRatings             int            `json:"num_ratings"`
	ActiveInstalls         int            `json:"active_installs"`
	SupportThreads         int            `json:"support_threads"`
	SupportThreadsResolved int            `json:"support_threads_resolved"`
	LastUpdated            string         `json:"last_updated"`
	Added                  string         `json:"added"`
	Tested                 string         `json:"tested"`
	Requires               string         `json:"requires"`
	Ratings                map[string]int `json:"ratings"`
}

// Search queries the catalog with term and catalog-side pagination.
func (c *Client) Search(ctx context.Context, term string, page, perPage int, filters map[string]string) ([]PluginMetadata, PageInfo, error) {
	params := url.Values{}
	params.Set("action", "query_plugins")
	if term != "" {
		params.Set("request[search]", term)
	}
	params.Set("request[page]", strconv.Itoa(page))
	params.Set("request[per_page]", strconv.Itoa(perPage))
	for key, value := range filters {
		params.Set("request["+key+"]", value)
	}
	for _, field := range requestFields {
		params.Set("request[fields]["+field+"]", "1")
	}

	body, err := c.fetch(ctx, params)
	if err != nil {
		return nil, PageInfo{}, err
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, PageInfo{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if resp.Error != "" {
		return nil, PageInfo{}, fmt.Errorf("%w: %s", ErrMalformed, resp.Error)
	}

	plugins := make([]PluginMetadata, 0, len(resp.Plugins))
	for _, rec := range resp.Plugins {
		meta, err := rec.toMetadata()
		if err != nil {
			// One bad record does not poison the page.
			continue
		}
		plugins = append(plugins, meta)
	}

	return plugins, resp.Info, nil
}

// Details fetches a single plugin record.
func (c *Client) Details(ctx context.Context, slug string) (PluginMetadata, error) {
	if slug == "" {
		return PluginMetadata{}, fmt.Errorf("%w: empty slug", ErrNotFound)
	}

	params := url.Values{}
	params.Set("action", "plugin_information")
	params.Set("request[slug]", slug)
	for _, field := range requestFields {
		params.Set("request[fields]["+field+"]", "1")
	}

	body, err := c.fetch(ctx, params)
	if err != nil {
		return PluginMetadata{}, err
	}

	var rec struct {
		pluginRecord
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &rec); err != nil {
		return PluginMetadata{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if rec.Error != "" {
		return PluginMetadata{}, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}

	meta, err := rec.toMetadata()
	if err != nil {
		return PluginMetadata{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return meta, nil
}

// requestFields are the optional API fields the scoring engine needs.
var requestFields = []string{
	"active_installs",
	"ratings",
	"last_updated",
	"added",
	"tested",
	"requires",
	"support_threads",
	"support_threads_resolved",
	"short_description",
}

// fetch performs one GET against the plugins info endpoint.
func (c *Client) fetch(ctx context.Context, params url.Values) ([]byte, error) {
	endpoint := c.config.BaseURL + "/plugins/info/1.2/?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request", ErrConnection)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to read
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response", ErrConnection)
	}
	return body, nil
}

// toMetadata converts a wire record to the domain model.
func (r pluginRecord) toMetadata() (PluginMetadata, error) {
	lastUpdated, err := parseCatalogTime(r.LastUpdated)
	if err != nil {
		lastUpdated = time.Time{}
	}
	added, err := parseCatalogTime(r.Added)
	if err != nil {
		added = time.Time{}
	}

	distribution := make(map[int]int, len(r.Ratings))
	for star, count := range r.Ratings {
		n, err := strconv.Atoi(star)
		if err != nil {
			continue
		}
		distribution[n] = count
	}

	return NewPluginMetadata(PluginMetadata{
		Slug:                   r.Slug,
		Name:                   r.Name,
		Version:                r.Version,
		Author:                 stripAuthorMarkup(r.Author),
		Description:            r.ShortDescription,
		Rating:                 r.Rating / 20.0, // 0-100 -> 0-5
		NumRatings:             r.NumRatings,
		ActiveInstalls:         r.ActiveInstalls,
		SupportThreadsTotal:    r.SupportThreads,
		SupportThreadsResolved: r.SupportThreadsResolved,
		LastUpdated:            lastUpdated,
		Added:                  added,
		TestedUpTo:             r.Tested,
		RequiresAtLeast:        r.Requires,
		RatingDistribution:     distribution,
	})
}
