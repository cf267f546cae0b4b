// Package scoring derives the two directory metrics from raw catalog
// metadata: a usability rating on a 1.0-5.0 scale and a health score on a
// 0-100 scale. Both are weighted composites of per-component sub-scores;
// components without input data are excluded and the remaining weights are
// renormalized, so one missing field never drags a plugin to the floor.
package scoring

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/domain/catalog"
)

// NoSignalHealth is the health score reported when metadata carries no
// scoreable component at all.
const NoSignalHealth = 50

// DefaultPlatformVersion is the WordPress version compatibility is measured
// against when none is configured.
const DefaultPlatformVersion = "6.8"

// Health color names, keyed to the fixed score bands.
const (
	ColorGreen      = "green"
	ColorLightGreen = "light-green"
	ColorOrange     = "orange"
	ColorRed        = "red"
)

// Component names as they appear in breakdowns and weight configuration.
const (
	ComponentUserRating            = "user_rating"
	ComponentRatingCount           = "rating_count"
	ComponentInstallCount          = "install_count"
	ComponentSupportResponsiveness = "support_responsiveness"
	ComponentUpdateFrequency       = "update_frequency"
	ComponentWPCompatibility       = "wp_compatibility"
	ComponentSupportResponse       = "support_response"
	ComponentTimeSinceUpdate       = "time_since_update"
	ComponentReportedIssues        = "reported_issues"
)

// ComponentScore records one component's contribution, for diagnostics only.
type ComponentScore struct {
	Component string  `json:"component"`
	Raw       float64 `json:"raw"`
	Weight    int     `json:"weight"`
	Weighted  float64 `json:"weighted"`
}

// Result bundles both derived metrics for a single plugin.
type Result struct {
	UsabilityRating    float64          `json:"usability_rating"`
	HealthScore        int              `json:"health_score"`
	HealthColor        string           `json:"health_color"`
	UsabilityBreakdown []ComponentScore `json:"usability_breakdown,omitempty"`
	HealthBreakdown    []ComponentScore `json:"health_breakdown,omitempty"`
}

// Engine scores plugin metadata. It is pure: identical metadata, weights,
// platform version and clock reading always produce identical results.
type Engine struct {
	weights  WeightConfig
	platform string
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithPlatformVersion sets the WordPress version compatibility is measured
// against.
func WithPlatformVersion(version string) Option {
	return func(e *Engine) {
		if version != "" {
			e.platform = version
		}
	}
}

// WithClock overrides the time source used for recency components.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates a scoring engine. Weight sets that do not sum to 100
// (within one point of slack) are replaced by the built-in defaults.
func NewEngine(weights WeightConfig, opts ...Option) *Engine {
	e := &Engine{
		weights:  weights.normalized(),
		platform: DefaultPlatformVersion,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// component pairs a raw 0-1 sub-score with its configured weight.
type component struct {
	name   string
	raw    float64
	weight int
}

// Score computes both metrics and the health color in one pass.
func (e *Engine) Score(meta catalog.PluginMetadata) Result {
	usability, usabilityParts := e.ScoreUsability(meta)
	health, healthParts := e.ScoreHealth(meta)
	return Result{
		UsabilityRating:    usability,
		HealthScore:        health,
		HealthColor:        HealthColor(health),
		UsabilityBreakdown: usabilityParts,
		HealthBreakdown:    healthParts,
	}
}

// ScoreUsability computes the 1.0-5.0 usability rating, rounded to one
// decimal, plus the per-component breakdown.
func (e *Engine) ScoreUsability(meta catalog.PluginMetadata) (float64, []ComponentScore) {
	w := e.weights.Usability

	parts := make([]component, 0, 4)
	if meta.Rating > 0 {
		parts = append(parts, component{ComponentUserRating, meta.Rating / 5.0, w.UserRating})
	}
	if meta.NumRatings > 0 {
		parts = append(parts, component{ComponentRatingCount, ratingCountScore(meta.NumRatings), w.RatingCount})
	}
	if meta.ActiveInstalls > 0 {
		parts = append(parts, component{ComponentInstallCount, installCountScore(meta.ActiveInstalls), w.InstallCount})
	}
	parts = append(parts, component{
		ComponentSupportResponsiveness,
		supportRatioScore(meta.SupportThreadsTotal, meta.SupportThreadsResolved),
		w.SupportResponsiveness,
	})

	sum, breakdown, ok := combine(parts)
	if !ok {
		return 1.0, nil
	}
	rating := clampFloat(sum*5.0, 1.0, 5.0)
	return math.Round(rating*10) / 10, breakdown
}

// ScoreHealth computes the 0-100 health score plus the per-component
// breakdown.
func (e *Engine) ScoreHealth(meta catalog.PluginMetadata) (int, []ComponentScore) {
	w := e.weights.Health
	days := meta.DaysSinceUpdate(e.now())

	parts := make([]component, 0, 5)
	if meta.Version != "" {
		parts = append(parts, component{ComponentUpdateFrequency, updateFrequencyScore(meta.Version, days), w.UpdateFrequency})
	}
	if raw, ok := compatibilityScore(meta.TestedUpTo, e.platform); ok {
		parts = append(parts, component{ComponentWPCompatibility, raw, w.WPCompatibility})
	}
	parts = append(parts, component{
		ComponentSupportResponse,
		supportResponseScore(meta.SupportThreadsTotal, meta.SupportThreadsResolved),
		w.SupportResponse,
	})
	if days >= 0 {
		parts = append(parts, component{ComponentTimeSinceUpdate, recencyScore(days), w.TimeSinceUpdate})
	}
	parts = append(parts, component{
		ComponentReportedIssues,
		reportedIssuesScore(meta.LowRatings(), meta.TotalRatingsInDistribution()),
		w.ReportedIssues,
	})

	sum, breakdown, ok := combine(parts)
	if !ok {
		return NoSignalHealth, nil
	}
	return int(math.Round(clampFloat(sum*100.0, 0, 100))), breakdown
}

// HealthColor maps a health score onto its display band.
func HealthColor(score int) string {
	switch {
	case score >= 86:
		return ColorGreen
	case score >= 71:
		return ColorLightGreen
	case score >= 41:
		return ColorOrange
	default:
		return ColorRed
	}
}

// combine renormalizes the present components' weights to sum to 1.0 and
// returns the weighted sum. ok is false when nothing carries weight.
func combine(parts []component) (float64, []ComponentScore, bool) {
	var weightSum int
	for _, p := range parts {
		weightSum += p.weight
	}
	if weightSum <= 0 {
		return 0, nil, false
	}

	breakdown := make([]ComponentScore, 0, len(parts))
	var sum float64
	for _, p := range parts {
		weighted := p.raw * float64(p.weight) / float64(weightSum)
		sum += weighted
		breakdown = append(breakdown, ComponentScore{
			Component: p.name,
			Raw:       p.raw,
			Weight:    p.weight,
			Weighted:  weighted,
		})
	}
	return sum, breakdown, true
}

// ratingCountScore maps a review volume onto 0.3-1.0. More reviews make the
// average rating more trustworthy.
func ratingCountScore(count int) float64 {
	switch {
	case count >= 1000:
		return 1.0
	case count >= 500:
		return 0.9
	case count >= 100:
		return 0.8
	case count >= 50:
		return 0.7
	case count >= 20:
		return 0.6
	case count >= 10:
		return 0.5
	case count >= 5:
		return 0.4
	default:
		return 0.3
	}
}

// installCountScore maps an active-install count onto 0.2-1.0.
func installCountScore(installs int) float64 {
	switch {
	case installs >= 5000000:
		return 1.0
	case installs >= 1000000:
		return 0.95
	case installs >= 500000:
		return 0.9
	case installs >= 100000:
		return 0.8
	case installs >= 50000:
		return 0.7
	case installs >= 10000:
		return 0.6
	case installs >= 5000:
		return 0.5
	case installs >= 1000:
		return 0.4
	case installs >= 100:
		return 0.3
	default:
		return 0.2
	}
}

// supportRatioScore maps the resolved/total thread ratio onto 0.3-1.0.
// No threads at all is neutral: nothing was asked, nothing went unanswered.
func supportRatioScore(total, resolved int) float64 {
	if total <= 0 {
		return 0.5
	}
	ratio := float64(resolved) / float64(total)
	switch {
	case ratio >= 0.9:
		return 1.0
	case ratio >= 0.8:
		return 0.9
	case ratio >= 0.7:
		return 0.8
	case ratio >= 0.6:
		return 0.7
	case ratio >= 0.5:
		return 0.6
	case ratio >= 0.4:
		return 0.5
	case ratio >= 0.3:
		return 0.4
	default:
		return 0.3
	}
}

// supportResponseScore is the health-side variant of the support ratio:
// volume earns a bonus, a large unresolved backlog a penalty.
func supportResponseScore(total, resolved int) float64 {
	if total <= 0 {
		return 0.5
	}
	score := supportRatioScore(total, resolved)
	if total >= 10 {
		score += 0.1
	}
	if total-resolved > 20 {
		score -= 0.1
	}
	return clampFloat(score, 0, 1)
}

// updateFrequencyScore proxies development activity from the version string's
// segment count, discounted by how long ago the last release landed. Unknown
// last-update dates take the stalest multiplier.
func updateFrequencyScore(version string, daysSinceUpdate int) float64 {
	var base float64
	switch segments := len(strings.Split(version, ".")); {
	case segments >= 4:
		base = 1.0
	case segments == 3:
		base = 0.9
	case segments == 2:
		base = 0.7
	default:
		base = 0.5
	}

	multiplier := 0.5
	switch {
	case daysSinceUpdate < 0:
		multiplier = 0.5
	case daysSinceUpdate <= 30:
		multiplier = 1.0
	case daysSinceUpdate <= 90:
		multiplier = 0.9
	case daysSinceUpdate <= 180:
		multiplier = 0.7
	}

	return clampFloat(base*multiplier, 0, 1)
}

// compatibilityScore compares a plugin's tested-up-to version against the
// platform version on major.minor. ok is false when either side cannot be
// parsed, which excludes the component rather than guessing.
func compatibilityScore(testedUpTo, platform string) (float64, bool) {
	tested := normalizeVersion(testedUpTo)
	current := normalizeVersion(platform)
	if !semver.IsValid(tested) || !semver.IsValid(current) {
		return 0, false
	}

	if semver.Compare(tested, current) >= 0 {
		return 1.0, true
	}
	if semver.Major(tested) != semver.Major(current) {
		return 0.4, true
	}

	behind := minorVersion(current) - minorVersion(tested)
	switch {
	case behind <= 1:
		return 0.9, true
	case behind == 2:
		return 0.8, true
	default:
		return 0.6, true
	}
}

// recencyScore maps days since the last update onto 0.2-1.0.
func recencyScore(days int) float64 {
	switch {
	case days <= 30:
		return 1.0
	case days <= 90:
		return 0.8
	case days <= 180:
		return 0.6
	case days <= 365:
		return 0.4
	case days <= 730:
		return 0.3
	default:
		return 0.2
	}
}

// reportedIssuesScore proxies user-reported problems from the share of 1-2
// star reviews. No rating data at all is slightly below neutral.
func reportedIssuesScore(low, total int) float64 {
	if total <= 0 {
		return 0.6
	}
	score := clampFloat(1.0-1.5*float64(low)/float64(total), 0, 1)
	if low > 50 {
		score -= 0.1
	}
	return clampFloat(score, 0, 1)
}

// normalizeVersion coerces catalog version strings into semver form.
func normalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// minorVersion extracts the numeric minor version; the semver package has no
// Minor accessor.
func minorVersion(v string) int {
	parts := strings.Split(strings.TrimPrefix(v, "v"), ".")
	if len(parts) < 2 {
		return 0
	}
	minor := parts[1]
	if idx := strings.IndexAny(minor, "-+"); idx >= 0 {
		minor = minor[:idx]
	}
	n, err := strconv.Atoi(minor)
	if err != nil {
		return 0
	}
	return n
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
