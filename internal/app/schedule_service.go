// internal/app/schedule_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mahesa005/dinacom-steikon-sub000/internal/domain/schedule"
	"github.com/mahesa005/dinacom-steikon-sub000/internal/domain/subject"
	domainTelegram "github.com/mahesa005/dinacom-steikon-sub000/internal/domain/telegram"
)

// Validation errors reported before any mutation.
var (
	ErrInvalidSubjectID     = fmt.Errorf("subject id is required")
	ErrInvalidEntryID       = fmt.Errorf("schedule entry id is required")
	ErrInvalidRiskTier      = fmt.Errorf("risk tier must be HIGH, MEDIUM or LOW")
	ErrBirthDateInFuture    = fmt.Errorf("birth date is after the schedule start date")
	ErrEntryNotScheduled    = fmt.Errorf("schedule entry is no longer SCHEDULED")
	ErrEntrySubjectMismatch = fmt.Errorf("schedule entry does not belong to subject")
	ErrRemindersDisabled    = fmt.Errorf("reminder delivery is not configured")
)

// Transactor runs fn inside a single database transaction carried by ctx.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// GenerateResult describes the outcome of a schedule generation.
type GenerateResult struct {
	SubjectID    uuid.UUID         `json:"subject_id"`
	Generated    bool              `json:"generated"`
	Message      string            `json:"message,omitempty"`
	Inserted     int               `json:"inserted"`
	Deleted      int64             `json:"deleted"`
	IntervalDays int               `json:"interval_days"`
	RiskTier     schedule.RiskTier `json:"risk_tier"`
	StartDate    string            `json:"start_date"`
}

// ReminderSummary counts the outcome of one reminder dispatch run.
type ReminderSummary struct {
	Due     int `json:"due"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ScheduleService owns the examination schedule of every subject.
type ScheduleService struct {
	subjects  subject.Repository
	schedules schedule.Repository
	tx        Transactor
	messenger domainTelegram.Client // nil disables reminders
	logger    *logrus.Entry
	loc       *time.Location
	now       func() time.Time
}

func NewScheduleService(
	subjects subject.Repository,
	schedules schedule.Repository,
	tx Transactor,
	messenger domainTelegram.Client,
	logger *logrus.Entry,
	loc *time.Location,
) *ScheduleService {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ScheduleService{
		subjects:  subjects,
		schedules: schedules,
		tx:        tx,
		messenger: messenger,
		logger:    logger.WithField("component", "schedule_service"),
		loc:       loc,
		now:       time.Now,
	}
}

// Today is the current calendar date in the service time zone.
func (s *ScheduleService) Today() time.Time {
	return schedule.DateOnly(s.now(), s.loc)
}

// Location is the time zone all schedule dates are expressed in.
func (s *ScheduleService) Location() *time.Location {
	return s.loc
}

// GenerateSchedule computes the follow-up windows for a subject and replaces
// its pending entries with them. A zero startDate means today. A subject
// already past the monitoring horizon yields Generated=false and no writes.
func (s *ScheduleService) GenerateSchedule(ctx context.Context, subjectID uuid.UUID, birthDate time.Time, tier schedule.RiskTier, startDate time.Time) (*GenerateResult, error) {
	if subjectID == uuid.Nil {
		return nil, ErrInvalidSubjectID
	}
	if !tier.Valid() {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidRiskTier, string(tier))
	}
	if startDate.IsZero() {
		startDate = s.Today()
	} else {
		startDate = schedule.DateOnly(startDate, s.loc)
	}

	plan, err := schedule.BuildPlan(subjectID, schedule.DateOnly(birthDate, s.loc), tier, startDate)
	if err != nil {
		if errors.Is(err, schedule.ErrBirthAfterStart) {
			return nil, ErrBirthDateInFuture
		}
		return nil, fmt.Errorf("failed to build schedule plan: %w", err)
	}

	result := &GenerateResult{
		SubjectID:    subjectID,
		IntervalDays: plan.IntervalDays,
		RiskTier:     plan.RiskTier,
		StartDate:    plan.StartDate.Format(schedule.DateLayout),
	}
	if plan.BeyondHorizon {
		// Nothing is written, but an unknown subject is still an error.
		if _, err := s.subjects.GetByID(ctx, subjectID); err != nil {
			return nil, fmt.Errorf("failed to get subject %s: %w", subjectID, err)
		}
		result.Message = fmt.Sprintf("no schedule needed: subject is %d months old", plan.CurrentAgeMonths)
		return result, nil
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// Holding the subject row serializes concurrent regenerations.
		if _, err := s.subjects.LockByID(ctx, subjectID); err != nil {
			return fmt.Errorf("failed to lock subject %s: %w", subjectID, err)
		}
		deleted, err := s.schedules.DeletePendingFrom(ctx, subjectID, plan.StartDate)
		if err != nil {
			return fmt.Errorf("failed to delete pending entries for subject %s: %w", subjectID, err)
		}
		if err := s.schedules.BulkCreate(ctx, plan.Entries); err != nil {
			return fmt.Errorf("failed to insert entries for subject %s: %w", subjectID, err)
		}
		result.Deleted = deleted
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Generated = true
	result.Inserted = len(plan.Entries)
	s.logger.WithFields(logrus.Fields{
		"subject_id":    subjectID,
		"risk_tier":     tier,
		"interval_days": plan.IntervalDays,
		"inserted":      result.Inserted,
		"deleted":       result.Deleted,
		"start_date":    result.StartDate,
	}).Info("Schedule generated")
	return result, nil
}

// RegenerateAfterVisit completes the visited entry, records the new risk tier
// and regenerates the schedule from tomorrow. All writes share one transaction.
func (s *ScheduleService) RegenerateAfterVisit(ctx context.Context, subjectID, completedEntryID uuid.UUID, newTier schedule.RiskTier) (*GenerateResult, error) {
	if subjectID == uuid.Nil {
		return nil, ErrInvalidSubjectID
	}
	if completedEntryID == uuid.Nil {
		return nil, ErrInvalidEntryID
	}
	if !newTier.Valid() {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidRiskTier, string(newTier))
	}

	tomorrow := s.Today().AddDate(0, 0, 1)

	var result *GenerateResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		subj, err := s.subjects.LockByID(ctx, subjectID)
		if err != nil {
			return fmt.Errorf("failed to lock subject %s: %w", subjectID, err)
		}

		entry, err := s.schedules.GetByID(ctx, completedEntryID)
		if err != nil {
			return fmt.Errorf("failed to get schedule entry %s: %w", completedEntryID, err)
		}
		if entry.SubjectID != subjectID {
			return ErrEntrySubjectMismatch
		}
		if !entry.Status.CanTransitionTo(schedule.StatusCompleted) {
			return fmt.Errorf("%w: entry %s is %s", ErrEntryNotScheduled, entry.ID, entry.Status)
		}
		if err := s.schedules.UpdateStatus(ctx, entry.ID, schedule.StatusScheduled, schedule.StatusCompleted); err != nil {
			return fmt.Errorf("failed to complete schedule entry %s: %w", entry.ID, err)
		}
		if err := s.subjects.UpdateRiskTier(ctx, subjectID, newTier); err != nil {
			return fmt.Errorf("failed to update risk tier for subject %s: %w", subjectID, err)
		}

		result, err = s.GenerateSchedule(ctx, subjectID, subj.BirthDate, newTier, tomorrow)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"subject_id": subjectID,
		"entry_id":   completedEntryID,
		"risk_tier":  newTier,
	}).Info("Visit completed and schedule regenerated")
	return result, nil
}

// EntriesForSubject lists a subject's entries by window start. Without
// includeCompleted only SCHEDULED and MISSED entries are returned.
func (s *ScheduleService) EntriesForSubject(ctx context.Context, subjectID uuid.UUID, includeCompleted bool) ([]*schedule.Entry, error) {
	if subjectID == uuid.Nil {
		return nil, ErrInvalidSubjectID
	}
	if _, err := s.subjects.GetByID(ctx, subjectID); err != nil {
		return nil, fmt.Errorf("failed to get subject %s: %w", subjectID, err)
	}

	var statuses []schedule.Status
	if !includeCompleted {
		statuses = []schedule.Status{schedule.StatusScheduled, schedule.StatusMissed}
	}
	entries, err := s.schedules.ListBySubject(ctx, subjectID, statuses)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries for subject %s: %w", subjectID, err)
	}
	return entries, nil
}

// EntriesOnDate lists SCHEDULED entries whose window contains day.
func (s *ScheduleService) EntriesOnDate(ctx context.Context, day time.Time) ([]*schedule.DueEntry, error) {
	due, err := s.schedules.ListScheduledOnDate(ctx, schedule.DateOnly(day, s.loc))
	if err != nil {
		return nil, fmt.Errorf("failed to list entries on %s: %w", day.Format(schedule.DateLayout), err)
	}
	return due, nil
}

// SweepMissed marks SCHEDULED entries whose window closed before now's
// calendar day as MISSED. Running it again on the same day changes nothing.
func (s *ScheduleService) SweepMissed(ctx context.Context, now time.Time) (int64, error) {
	today := schedule.DateOnly(now, s.loc)
	n, err := s.schedules.MarkMissedBefore(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep missed entries: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"before": today.Format(schedule.DateLayout),
		"missed": n,
	}).Info("Missed schedule sweep finished")
	return n, nil
}

// DispatchReminders messages the guardian of every SCHEDULED entry whose
// window contains day and that has not been notified yet. A failure on one
// entry is logged and the run continues.
func (s *ScheduleService) DispatchReminders(ctx context.Context, day time.Time) (*ReminderSummary, error) {
	if s.messenger == nil {
		return nil, ErrRemindersDisabled
	}
	due, err := s.EntriesOnDate(ctx, day)
	if err != nil {
		return nil, err
	}

	summary := &ReminderSummary{Due: len(due)}
	for _, d := range due {
		entryLogger := s.logger.WithFields(logrus.Fields{"entry_id": d.ID, "subject_id": d.SubjectID})
		if d.NotificationSent {
			summary.Skipped++
			continue
		}
		if !d.GuardianTelegramID.Valid {
			entryLogger.Debug("No guardian chat configured, reminder skipped")
			summary.Skipped++
			continue
		}

		if err := s.messenger.SendMessage(ctx, d.GuardianTelegramID.Int64, reminderText(d), nil); err != nil {
			entryLogger.WithError(err).Error("Failed to send reminder")
			summary.Failed++
			continue
		}
		if err := s.schedules.MarkNotified(ctx, d.ID, s.now()); err != nil {
			entryLogger.WithError(err).Error("Reminder sent but could not be recorded")
			summary.Failed++
			continue
		}
		summary.Sent++
	}

	s.logger.WithFields(logrus.Fields{
		"date":    schedule.DateOnly(day, s.loc).Format(schedule.DateLayout),
		"due":     summary.Due,
		"sent":    summary.Sent,
		"skipped": summary.Skipped,
		"failed":  summary.Failed,
	}).Info("Reminder dispatch finished")
	return summary, nil
}

func reminderText(d *schedule.DueEntry) string {
	greeting := "Halo"
	if d.GuardianName.Valid && d.GuardianName.String != "" {
		greeting = "Halo " + d.GuardianName.String
	}
	return fmt.Sprintf("%s! Jadwal pemeriksaan %s (usia %d bulan) jatuh pada %s. Silakan datang ke posyandu antara %s dan %s.",
		greeting,
		d.SubjectName,
		d.TargetAgeMonths,
		d.TargetDate().Format(schedule.DateLayout),
		d.WindowStart.Format(schedule.DateLayout),
		d.WindowEnd.Format(schedule.DateLayout),
	)
}
