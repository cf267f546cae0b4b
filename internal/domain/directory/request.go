package directory

import (
	"fmt"
	"strings"
)

// InstallRange buckets plugins by active installation count.
type InstallRange string

// Supported installation ranges. Bounds are inclusive at the low end and
// exclusive at the high end; the last bucket is open-ended.
const (
	InstallRangeAll       InstallRange = "all"
	InstallRangeUnder1K   InstallRange = "under-1k"
	InstallRange1KTo10K   InstallRange = "1k-10k"
	InstallRange10KTo100K InstallRange = "10k-100k"
	InstallRange100KTo1M  InstallRange = "100k-1m"
	InstallRangeOver1M    InstallRange = "over-1m"
)

// UpdateTimeframe restricts results to plugins updated within a window.
type UpdateTimeframe string

// Supported update timeframes.
const (
	TimeframeAll     UpdateTimeframe = "all"
	Timeframe1Month  UpdateTimeframe = "1month"
	Timeframe3Months UpdateTimeframe = "3months"
	Timeframe6Months UpdateTimeframe = "6months"
	Timeframe1Year   UpdateTimeframe = "1year"
	Timeframe2Years  UpdateTimeframe = "2years"
)

// SortField selects the ordering of a result page.
type SortField string

// Supported sort fields. SortRelevance preserves catalog order.
const (
	SortRelevance     SortField = "relevance"
	SortName          SortField = "name"
	SortRating        SortField = "rating"
	SortInstallations SortField = "installations"
	SortUpdated       SortField = "updated"
	SortUsability     SortField = "usability_rating"
	SortHealth        SortField = "health_score"
)

// SortDirection orders ascending or descending.
type SortDirection string

// Supported sort directions.
const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Request bounds. Out-of-range values are clamped, not rejected.
const (
	MaxSearchTermLen = 200
	MaxPage          = 1000
	MaxPerPage       = 48
	DefaultPerPage   = 24
)

// FilterRequest carries every knob of a directory query. The zero value is
// not usable directly; Normalize fills defaults and clamps ranges.
type FilterRequest struct {
	SearchTerm         string          `json:"search_term"`
	InstallRange       InstallRange    `json:"installation_range"`
	UpdateTimeframe    UpdateTimeframe `json:"update_timeframe"`
	MinUsabilityRating float64         `json:"usability_rating"`
	MinHealthScore     int             `json:"health_score"`
	SortBy             SortField       `json:"sort_by"`
	SortDirection      SortDirection   `json:"sort_direction"`
	Page               int             `json:"page"`
	PerPage            int             `json:"per_page"`

	// ClientID identifies the caller for rate limiting. It never
	// participates in the cache key and is not serialized.
	ClientID string `json:"-"`
}

// Normalize returns a copy with defaults applied and every field clamped to
// its valid range. Unknown enum values fall back to their defaults so stale
// clients degrade instead of erroring.
func (r FilterRequest) Normalize() FilterRequest {
	r.SearchTerm = truncateRunes(strings.TrimSpace(r.SearchTerm), MaxSearchTermLen)

	switch r.InstallRange {
	case InstallRangeAll, InstallRangeUnder1K, InstallRange1KTo10K,
		InstallRange10KTo100K, InstallRange100KTo1M, InstallRangeOver1M:
	default:
		r.InstallRange = InstallRangeAll
	}

	switch r.UpdateTimeframe {
	case TimeframeAll, Timeframe1Month, Timeframe3Months,
		Timeframe6Months, Timeframe1Year, Timeframe2Years:
	default:
		r.UpdateTimeframe = TimeframeAll
	}

	r.MinUsabilityRating = clampFloat(r.MinUsabilityRating, 0, 5)
	r.MinHealthScore = clampInt(r.MinHealthScore, 0, 100)

	switch r.SortBy {
	case SortRelevance, SortName, SortRating, SortInstallations,
		SortUpdated, SortUsability, SortHealth:
	default:
		r.SortBy = SortRelevance
	}

	switch r.SortDirection {
	case SortAsc, SortDesc:
	default:
		r.SortDirection = SortDesc
	}

	if r.Page < 1 {
		r.Page = 1
	} else if r.Page > MaxPage {
		r.Page = MaxPage
	}

	if r.PerPage < 1 {
		r.PerPage = DefaultPerPage
	} else if r.PerPage > MaxPerPage {
		r.PerPage = MaxPerPage
	}

	return r
}

// CacheKey renders the request as a canonical field-sorted string. Requests
// that differ only in ClientID share a key; any other difference changes it.
func (r FilterRequest) CacheKey() string {
	parts := []string{
		"dir=" + string(r.SortDirection),
		"install=" + string(r.InstallRange),
		fmt.Sprintf("min_health=%d", r.MinHealthScore),
		fmt.Sprintf("min_usability=%.1f", r.MinUsabilityRating),
		fmt.Sprintf("page=%d", r.Page),
		fmt.Sprintf("per_page=%d", r.PerPage),
		"search=" + r.SearchTerm,
		"sort=" + string(r.SortBy),
		"timeframe=" + string(r.UpdateTimeframe),
	}
	return strings.Join(parts, "&")
}

// truncateRunes cuts s to at most n runes without splitting a multi-byte
// character.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
