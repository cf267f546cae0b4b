package directory

import (
	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/domain/catalog"
	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/domain/scoring"
)

// ScoredPlugin is catalog metadata enriched with computed quality scores.
type ScoredPlugin struct {
	catalog.PluginMetadata

	UsabilityRating float64 `json:"usability_rating"`
	HealthScore     int     `json:"health_score"`
	HealthColor     string  `json:"health_color"`
}

// newScoredPlugin attaches a scoring result to plugin metadata.
func newScoredPlugin(meta catalog.PluginMetadata, result scoring.Result) ScoredPlugin {
	return ScoredPlugin{
		PluginMetadata:  meta,
		UsabilityRating: result.UsabilityRating,
		HealthScore:     result.HealthScore,
		HealthColor:     result.HealthColor,
	}
}

// Pagination describes the position of a page inside the filtered result
// set. TotalResults counts survivors of all filters, not the raw catalog
// matches.
type Pagination struct {
	CurrentPage  int `json:"current_page"`
	TotalPages   int `json:"total_pages"`
	TotalResults int `json:"total_results"`
	PerPage      int `json:"per_page"`
}

// PagedResult is one assembled page of filtered, scored, sorted plugins.
// FiltersApplied echoes the normalized request so clients see the values
// that actually ran.
type PagedResult struct {
	Plugins        []ScoredPlugin `json:"plugins"`
	Pagination     Pagination     `json:"pagination"`
	FiltersApplied FilterRequest  `json:"filters_applied"`
}
