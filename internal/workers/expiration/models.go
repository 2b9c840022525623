package expiration

import (
	"time"

	"chanpay-bot/internal/stories/tariffs"
)

// Band is how close a subscription is to its expiry.
type Band string

const (
	BandHealthy          Band = "healthy"
	BandExpiringSoon     Band = "expiring_soon"
	BandExpiringTomorrow Band = "expiring_tomorrow"
	BandExpired          Band = "expired"
)

const (
	tomorrowWindow = 24 * time.Hour
	soonWindow     = 72 * time.Hour
)

// Classify places expiresAt relative to now. A missing expiry counts as expired.
//
//	delta <= 0        expired
//	0 < delta <= 24h  expiring tomorrow
//	24h < delta <= 72h expiring soon
//	otherwise         healthy
func Classify(expiresAt *time.Time, now time.Time) Band {
	if expiresAt == nil {
		return BandExpired
	}

	delta := expiresAt.Sub(now)
	switch {
	case delta <= 0:
		return BandExpired
	case delta <= tomorrowWindow:
		return BandExpiringTomorrow
	case delta <= soonWindow:
		return BandExpiringSoon
	default:
		return BandHealthy
	}
}

// Report summarizes one sweep.
type Report struct {
	RunID       string
	StartedAt   time.Time
	Counts      map[tariffs.Tier]map[Band]int
	Deactivated int
	Failures    int
	Canceled    bool
}

func newReport(runID string, startedAt time.Time) *Report {
	counts := make(map[tariffs.Tier]map[Band]int, len(tariffs.Tiers))
	for _, tier := range tariffs.Tiers {
		counts[tier] = make(map[Band]int, 4)
	}
	return &Report{RunID: runID, StartedAt: startedAt, Counts: counts}
}
