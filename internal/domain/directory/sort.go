package directory

import (
	"sort"
	"strings"
)

// sortPlugins orders plugins in place by the requested field. Relevance
// keeps the catalog's order untouched. The sort is stable, so plugins that
// compare equal keep their relative catalog positions.
func sortPlugins(plugins []ScoredPlugin, field SortField, direction SortDirection) {
	less := lessFunc(field)
	if less == nil {
		return
	}
	if direction == SortAsc {
		sort.SliceStable(plugins, func(i, j int) bool {
			return less(plugins[i], plugins[j])
		})
		return
	}
	sort.SliceStable(plugins, func(i, j int) bool {
		return less(plugins[j], plugins[i])
	})
}

// lessFunc returns the ascending comparator for a sort field, or nil when
// the field imposes no ordering of its own.
func lessFunc(field SortField) func(a, b ScoredPlugin) bool {
	switch field {
	case SortName:
		return func(a, b ScoredPlugin) bool {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	case SortRating:
		return func(a, b ScoredPlugin) bool { return a.Rating < b.Rating }
	case SortInstallations:
		return func(a, b ScoredPlugin) bool { return a.ActiveInstalls < b.ActiveInstalls }
	case SortUpdated:
		return func(a, b ScoredPlugin) bool { return a.LastUpdated.Before(b.LastUpdated) }
	case SortUsability:
		return func(a, b ScoredPlugin) bool { return a.UsabilityRating < b.UsabilityRating }
	case SortHealth:
		return func(a, b ScoredPlugin) bool { return a.HealthScore < b.HealthScore }
	default:
		return nil
	}
}
