// Package catalog provides the plugin metadata model and the HTTP client
// that fetches it from the remote plugin directory API.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Metadata errors.
var (
	ErrInvalidMetadata = errors.New("invalid plugin metadata")
)

// Date layouts used by the remote directory API. last_updated carries a
// time-of-day suffix, added is date-only.
const (
	lastUpdatedLayout     = "2006-01-02 3:04pm MST"
	lastUpdatedLongLayout = "2006-01-02 15:04:05"
	dateOnlyLayout        = "2006-01-02"
)

// PluginMetadata is one plugin's catalog record. It is produced by parsing
// a catalog response and is read-only downstream: the scoring engine and the
// orchestrator never mutate it.
type PluginMetadata struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Author      string `json:"author"`
	Description string `json:"description"`

	// Rating is normalized to the 0-5 scale (the API reports 0-100).
	Rating         float64 `json:"rating"`
	NumRatings     int     `json:"num_ratings"`
	ActiveInstalls int     `json:"active_installs"`

	SupportThreadsTotal    int `json:"support_threads"`
	SupportThreadsResolved int `json:"support_threads_resolved"`

	LastUpdated time.Time `json:"last_updated"`
	Added       time.Time `json:"added"`

	TestedUpTo      string `json:"tested"`
	RequiresAtLeast string `json:"requires"`

	// RatingDistribution maps star value (1..5) to the number of ratings.
	RatingDistribution map[int]int `json:"rating_distribution,omitempty"`
}

// NewPluginMetadata validates and normalizes a freshly parsed record.
// Numeric signals are clamped rather than rejected: the catalog is an
// external feed and a negative counter is noise, not a reason to drop the
// plugin. Only a missing slug invalidates a record.
func NewPluginMetadata(m PluginMetadata) (PluginMetadata, error) {
	m.Slug = strings.TrimSpace(m.Slug)
	if m.Slug == "" {
		return PluginMetadata{}, fmt.Errorf("%w: empty slug", ErrInvalidMetadata)
	}

	if m.Rating < 0 {
		m.Rating = 0
	}
	if m.Rating > 5 {
		m.Rating = 5
	}
	if m.NumRatings < 0 {
		m.NumRatings = 0
	}
	if m.ActiveInstalls < 0 {
		m.ActiveInstalls = 0
	}
	if m.SupportThreadsTotal < 0 {
		m.SupportThreadsTotal = 0
	}
	if m.SupportThreadsResolved < 0 {
		m.SupportThreadsResolved = 0
	}
	if m.SupportThreadsResolved > m.SupportThreadsTotal {
		m.SupportThreadsResolved = m.SupportThreadsTotal
	}
	for star, count := range m.RatingDistribution {
		if star < 1 || star > 5 || count < 0 {
			delete(m.RatingDistribution, star)
		}
	}

	return m, nil
}

// TotalRatingsInDistribution sums the rating distribution counts.
func (m PluginMetadata) TotalRatingsInDistribution() int {
	total := 0
	for _, count := range m.RatingDistribution {
		total += count
	}
	return total
}

// LowRatings returns the combined one- and two-star counts.
func (m PluginMetadata) LowRatings() int {
	return m.RatingDistribution[1] + m.RatingDistribution[2]
}

// DaysSinceUpdate reports whole days between LastUpdated and now.
// Returns -1 when the update time is unknown.
func (m PluginMetadata) DaysSinceUpdate(now time.Time) int {
	if m.LastUpdated.IsZero() {
		return -1
	}
	days := int(now.Sub(m.LastUpdated).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return days
}

// parseCatalogTime parses the directory API's timestamp formats.
// A zero time and nil error means the field was absent.
func parseCatalogTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{lastUpdatedLayout, lastUpdatedLongLayout, dateOnlyLayout} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized catalog timestamp %q", raw)
}

// stripAuthorMarkup removes the anchor markup the API wraps author names in.
func stripAuthorMarkup(raw string) string {
	out := raw
	if start := strings.Index(out, ">"); start >= 0 && strings.HasPrefix(strings.TrimSpace(out), "<a") {
		out = out[start+1:]
		if end := strings.Index(out, "<"); end >= 0 {
			out = out[:end]
		}
	}
	return strings.TrimSpace(out)
}
