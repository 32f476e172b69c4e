package models

import (
	"fmt"
	"strings"
	"time"
)

// TerminationType selects how long a manual room override lasts.
type TerminationType string

const (
	TerminationManual        TerminationType = "MANUAL"
	TerminationTimer         TerminationType = "TIMER"
	TerminationNextTimeBlock TerminationType = "NEXT_TIME_BLOCK"
)

// DefaultTimerDuration is used when a timer override has no positive duration.
const DefaultTimerDuration = 30 * time.Minute

// Termination is the policy attached to a manual room override.
type Termination struct {
	Type     TerminationType
	Duration time.Duration
}

// ManualTermination keeps the override until it is cancelled.
func ManualTermination() Termination {
	return Termination{Type: TerminationManual}
}

// TimerTermination keeps the override for d.
func TimerTermination(d time.Duration) Termination {
	if d <= 0 {
		d = DefaultTimerDuration
	}
	return Termination{Type: TerminationTimer, Duration: d}
}

// NextTimeBlockTermination keeps the override until the next schedule block.
func NextTimeBlockTermination() Termination {
	return Termination{Type: TerminationNextTimeBlock}
}

// ParseTermination builds a Termination from its wire name.
func ParseTermination(kind string, d time.Duration) (Termination, error) {
	switch TerminationType(strings.ToUpper(strings.TrimSpace(kind))) {
	case TerminationManual, "":
		return ManualTermination(), nil
	case TerminationTimer:
		return TimerTermination(d), nil
	case TerminationNextTimeBlock, "NEXT_BLOCK":
		return NextTimeBlockTermination(), nil
	default:
		return Termination{}, fmt.Errorf("unknown termination type %q", kind)
	}
}

// PresenceMode is the home presence override.
type PresenceMode string

const (
	PresenceHome PresenceMode = "HOME"
	PresenceAway PresenceMode = "AWAY"
	PresenceAuto PresenceMode = "AUTO"
)

// ParsePresenceMode accepts "home", "away" or "auto" in any case.
func ParsePresenceMode(s string) (PresenceMode, error) {
	switch m := PresenceMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case PresenceHome, PresenceAway, PresenceAuto:
		return m, nil
	default:
		return "", fmt.Errorf("unknown presence mode %q", s)
	}
}

// QuickAction is a home-wide command.
type QuickAction string

const (
	QuickActionBoost  QuickAction = "boost"
	QuickActionAllOff QuickAction = "allOff"
	QuickActionResume QuickAction = "resumeSchedule"
)

// Tariff is an Energy IQ tariff entry.
type Tariff struct {
	StartDate     string  `json:"startDate"`
	EndDate       string  `json:"endDate,omitempty"`
	Unit          string  `json:"unit"`
	TariffInCents float64 `json:"tariffInCents"`
}
