package scoring

// UsabilityWeights assigns integer percentages to the usability components.
// A set is usable when its values sum to 100 give or take one point of
// rounding slack; anything else is replaced by the defaults.
type UsabilityWeights struct {
	UserRating            int `yaml:"user_rating" json:"user_rating"`
	RatingCount           int `yaml:"rating_count" json:"rating_count"`
	InstallCount          int `yaml:"install_count" json:"install_count"`
	SupportResponsiveness int `yaml:"support_responsiveness" json:"support_responsiveness"`
}

// HealthWeights assigns integer percentages to the health components.
type HealthWeights struct {
	UpdateFrequency int `yaml:"update_frequency" json:"update_frequency"`
	WPCompatibility int `yaml:"wp_compatibility" json:"wp_compatibility"`
	SupportResponse int `yaml:"support_response" json:"support_response"`
	TimeSinceUpdate int `yaml:"time_since_update" json:"time_since_update"`
	ReportedIssues  int `yaml:"reported_issues" json:"reported_issues"`
}

// DefaultUsabilityWeights returns the built-in usability weight set.
func DefaultUsabilityWeights() UsabilityWeights {
	return UsabilityWeights{
		UserRating:            40,
		RatingCount:           20,
		InstallCount:          25,
		SupportResponsiveness: 15,
	}
}

// DefaultHealthWeights returns the built-in health weight set.
func DefaultHealthWeights() HealthWeights {
	return HealthWeights{
		UpdateFrequency: 25,
		WPCompatibility: 20,
		SupportResponse: 20,
		TimeSinceUpdate: 20,
		ReportedIssues:  15,
	}
}

// Valid reports whether the weights sum to 100 within rounding slack.
func (w UsabilityWeights) Valid() bool {
	return validSum(w.UserRating + w.RatingCount + w.InstallCount + w.SupportResponsiveness)
}

// Valid reports whether the weights sum to 100 within rounding slack.
func (w HealthWeights) Valid() bool {
	return validSum(w.UpdateFrequency + w.WPCompatibility + w.SupportResponse +
		w.TimeSinceUpdate + w.ReportedIssues)
}

func validSum(sum int) bool {
	return sum >= 99 && sum <= 101
}

// WeightConfig bundles both weight sets as loaded from configuration.
type WeightConfig struct {
	Usability UsabilityWeights `yaml:"usability" json:"usability"`
	Health    HealthWeights    `yaml:"health" json:"health"`
}

// DefaultWeightConfig returns both built-in weight sets.
func DefaultWeightConfig() WeightConfig {
	return WeightConfig{
		Usability: DefaultUsabilityWeights(),
		Health:    DefaultHealthWeights(),
	}
}

// normalized returns the config with invalid sets replaced by defaults.
func (c WeightConfig) normalized() WeightConfig {
	if !c.Usability.Valid() {
		c.Usability = DefaultUsabilityWeights()
	}
	if !c.Health.Valid() {
		c.Health = DefaultHealthWeights()
	}
	return c
}
