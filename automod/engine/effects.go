package engine

var (
	// number of threshold bans automod can issue per channel per day (circuit breaker)
	QuotaThresholdBanDay = 50
)

const (
	// counter of violations, keyed by "<channel>/<fid>"
	counterViolations = "violations"
	// counter of threshold bans, keyed by channel
	counterThresholdBans = "threshold-bans"
	// casts already counted as a violation, keyed by "<channel>/<cast hash>"
	counterCountedCasts = "counted-casts"
)
