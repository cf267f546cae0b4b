package directory

import "time"

// Bounds returns the active-install interval covered by the range as
// [low, high). A high of 0 marks an open-ended bucket. bounded is false for
// InstallRangeAll and unknown values.
func (r InstallRange) Bounds() (low, high int, bounded bool) {
	switch r {
	case InstallRangeUnder1K:
		return 0, 1_000, true
	case InstallRange1KTo10K:
		return 1_000, 10_000, true
	case InstallRange10KTo100K:
		return 10_000, 100_000, true
	case InstallRange100KTo1M:
		return 100_000, 1_000_000, true
	case InstallRangeOver1M:
		return 1_000_000, 0, true
	default:
		return 0, 0, false
	}
}

// Matches reports whether an install count falls inside the range.
func (r InstallRange) Matches(installs int) bool {
	low, high, bounded := r.Bounds()
	if !bounded {
		return true
	}
	if installs < low {
		return false
	}
	return high == 0 || installs < high
}

// Cutoff returns the oldest acceptable update time relative to now. bounded
// is false for TimeframeAll and unknown values.
func (tf UpdateTimeframe) Cutoff(now time.Time) (cutoff time.Time, bounded bool) {
	switch tf {
	case Timeframe1Month:
		return now.AddDate(0, -1, 0), true
	case Timeframe3Months:
		return now.AddDate(0, -3, 0), true
	case Timeframe6Months:
		return now.AddDate(0, -6, 0), true
	case Timeframe1Year:
		return now.AddDate(-1, 0, 0), true
	case Timeframe2Years:
		return now.AddDate(-2, 0, 0), true
	default:
		return time.Time{}, false
	}
}

// Matches reports whether a last-update time clears the timeframe. Plugins
// with an unknown update date fail every bounded timeframe.
func (tf UpdateTimeframe) Matches(lastUpdated, now time.Time) bool {
	cutoff, bounded := tf.Cutoff(now)
	if !bounded {
		return true
	}
	if lastUpdated.IsZero() {
		return false
	}
	return !lastUpdated.Before(cutoff)
}
