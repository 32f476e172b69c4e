package quota

import (
	"fmt"
	"time"
)

// SubscriptionTier represents the account's vendor subscription level.
type SubscriptionTier string

const (
	// TierFree is an account without Auto-Assist.
	TierFree SubscriptionTier = "FREE"
	// TierAutoAssist is an account with the Auto-Assist subscription.
	TierAutoAssist SubscriptionTier = "AUTO_ASSIST"
)

// Daily request quotas per tier.
const (
	FreeDailyLimit    = 100
	PremiumDailyLimit = 20000
)

// Poll interval presets per tier. The free preset keeps one read cycle per
// hour well inside the free daily quota.
const (
	FreePollInterval    = time.Hour
	PremiumPollInterval = time.Minute
)

// ResetHourUTC is the hour of day at which the vendor resets the counter.
const ResetHourUTC = 12

// TierFor maps the Auto-Assist flag to a tier.
func TierFor(hasAutoAssist bool) SubscriptionTier {
	if hasAutoAssist {
		return TierAutoAssist
	}
	return TierFree
}

// Premium reports whether the tier carries the premium daily quota.
func (t SubscriptionTier) Premium() bool {
	return t == TierAutoAssist
}

// DailyLimit returns the documented daily request quota for the tier.
func (t SubscriptionTier) DailyLimit() int {
	if t.Premium() {
		return PremiumDailyLimit
	}
	return FreeDailyLimit
}

// DisplayName returns a human readable tier name.
func (t SubscriptionTier) DisplayName() string {
	if t.Premium() {
		return "Auto-Assist"
	}
	return "Free"
}

// PollInterval returns the effective poll interval: override when positive,
// otherwise the tier preset.
func PollInterval(override time.Duration, tier SubscriptionTier) time.Duration {
	if override > 0 {
		return override
	}
	if tier.Premium() {
		return PremiumPollInterval
	}
	return FreePollInterval
}

// NextResetTime returns the next reset boundary strictly after now.
func NextResetTime(now time.Time) time.Time {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), ResetHourUTC, 0, 0, 0, time.UTC)
	if now.Before(today) {
		return today
	}
	return today.AddDate(0, 0, 1)
}

// TimeUntilReset calculates the duration until quota reset.
func TimeUntilReset(resetTime time.Time) time.Duration {
	if resetTime.IsZero() {
		return 0
	}
	duration := time.Until(resetTime)
	if duration < 0 {
		return 0
	}
	return duration
}

// FormatResetTime formats the reset time for display.
func FormatResetTime(resetTime time.Time) string {
	if resetTime.IsZero() {
		return "Unknown"
	}

	duration := TimeUntilReset(resetTime)
	if duration <= 0 {
		return "Now"
	}

	if duration < time.Minute {
		return "< 1m"
	}

	if duration < time.Hour {
		minutes := int(duration.Minutes())
		return fmt.Sprintf("%dm", minutes)
	}

	hours := int(duration.Hours())
	minutes := int(duration.Minutes()) % 60

	if minutes == 0 {
		return fmt.Sprintf("%dh", hours)
	}

	return fmt.Sprintf("%dh%dm", hours, minutes)
}
