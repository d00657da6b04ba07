// internal/domain/schedule/shared_types.go
package schedule

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a single examination entry.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusCompleted Status = "COMPLETED"
	StatusMissed    Status = "MISSED"
)

// IsTerminal reports whether no further transition may leave s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusMissed
}

// CanTransitionTo reports whether s -> next is an allowed transition.
// Only SCHEDULED entries move, and only to COMPLETED or MISSED.
func (s Status) CanTransitionTo(next Status) bool {
	if s != StatusScheduled {
		return false
	}
	return next == StatusCompleted || next == StatusMissed
}

// RiskTier is the stunting risk classification that drives the follow-up cadence.
type RiskTier string

const (
	RiskHigh   RiskTier = "HIGH"
	RiskMedium RiskTier = "MEDIUM"
	RiskLow    RiskTier = "LOW"
)

// ErrUnknownRiskTier is returned by ParseRiskTier for anything outside the closed set.
var ErrUnknownRiskTier = fmt.Errorf("unknown risk tier")

// ParseRiskTier normalizes case and surrounding whitespace. Values other than
// HIGH, MEDIUM and LOW are rejected instead of falling back to a cadence.
func ParseRiskTier(raw string) (RiskTier, error) {
	tier := RiskTier(strings.ToUpper(strings.TrimSpace(raw)))
	if !tier.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRiskTier, raw)
	}
	return tier, nil
}

func (r RiskTier) Valid() bool {
	switch r {
	case RiskHigh, RiskMedium, RiskLow:
		return true
	default:
		return false
	}
}

const (
	ShortIntervalDays = 14
	LongIntervalDays  = 30
)

// IntervalDays returns the visit cadence for the tier. Callers validate the
// tier first; the second return value is false for tiers outside the set.
func (r RiskTier) IntervalDays() (int, bool) {
	switch r {
	case RiskHigh, RiskMedium:
		return ShortIntervalDays, true
	case RiskLow:
		return LongIntervalDays, true
	default:
		return 0, false
	}
}
