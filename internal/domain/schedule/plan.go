package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// MonitoringHorizonMonths is the age after which no visits are planned.
	MonitoringHorizonMonths = 24
	// MinimumVisitAgeMonths skips the first weeks of life.
	MinimumVisitAgeMonths = 2
)

var ErrBirthAfterStart = fmt.Errorf("birth date is after the schedule start date")

// Plan is the computed, not yet persisted, batch of entries for one subject.
type Plan struct {
	SubjectID        uuid.UUID
	RiskTier         RiskTier
	IntervalDays     int
	StartDate        time.Time
	CurrentAgeMonths int
	// BeyondHorizon is set when the subject is already past the monitoring
	// horizon; Entries is empty and nothing should be written.
	BeyondHorizon bool
	Entries       []*Entry
}

// BuildPlan walks from max(startDate, birthDate) to birthDate+24 months in
// steps of the tier's interval and emits one SCHEDULED entry per step whose
// age is at least two months. Dates are interpreted in startDate's location.
func BuildPlan(subjectID uuid.UUID, birthDate time.Time, tier RiskTier, startDate time.Time) (*Plan, error) {
	interval, ok := tier.IntervalDays()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRiskTier, string(tier))
	}

	loc := startDate.Location()
	start := DateOnly(startDate, loc)
	birth := DateOnly(birthDate, loc)
	if birth.After(start) {
		return nil, ErrBirthAfterStart
	}

	plan := &Plan{
		SubjectID:        subjectID,
		RiskTier:         tier,
		IntervalDays:     interval,
		StartDate:        start,
		CurrentAgeMonths: AgeInMonths(birth, start),
		Entries:          make([]*Entry, 0),
	}
	if plan.CurrentAgeMonths >= MonitoringHorizonMonths {
		plan.BeyondHorizon = true
		return plan, nil
	}

	horizon := birth.AddDate(0, MonitoringHorizonMonths, 0)
	step := start
	if birth.After(step) {
		step = birth
	}
	for ; step.Before(horizon); step = step.AddDate(0, 0, interval) {
		age := AgeInMonths(birth, step)
		if age < MinimumVisitAgeMonths {
			continue
		}
		plan.Entries = append(plan.Entries, &Entry{
			SubjectID:       subjectID,
			TargetAgeMonths: age,
			WindowStart:     step.AddDate(0, 0, -WindowHalfWidthDays),
			WindowEnd:       step.AddDate(0, 0, WindowHalfWidthDays),
			Status:          StatusScheduled,
		})
	}
	return plan, nil
}
