package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mahesa005/dinacom-steikon-sub000/internal/domain/schedule"
	"github.com/mahesa005/dinacom-steikon-sub000/internal/domain/subject"
)

var ErrInvalidSubjectName = fmt.Errorf("subject name is required")

// RegisterSubjectInput carries the data captured when a new infant record is created.
type RegisterSubjectInput struct {
	Name               string
	BirthDate          time.Time
	RiskTier           schedule.RiskTier
	GuardianName       string
	GuardianTelegramID int64 // 0 when the guardian has no chat
}

// Registration is the outcome of RegisterSubject. Schedule is nil and
// ScheduleError is set when the subject was stored but generation failed.
type Registration struct {
	Subject       *subject.Subject `json:"subject"`
	Schedule      *GenerateResult  `json:"schedule,omitempty"`
	ScheduleError string           `json:"schedule_error,omitempty"`
}

// SubjectService handles the record-creation workflow.
type SubjectService struct {
	subjects  subject.Repository
	schedules *ScheduleService
	logger    *logrus.Entry
}

func NewSubjectService(subjects subject.Repository, schedules *ScheduleService, logger *logrus.Entry) *SubjectService {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &SubjectService{
		subjects:  subjects,
		schedules: schedules,
		logger:    logger.WithField("component", "subject_service"),
	}
}

// RegisterSubject stores a new subject and generates its schedule from today.
// Schedule generation failure does not fail the registration.
func (s *SubjectService) RegisterSubject(ctx context.Context, in RegisterSubjectInput) (*Registration, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidSubjectName
	}
	if !in.RiskTier.Valid() {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidRiskTier, string(in.RiskTier))
	}
	today := s.schedules.Today()
	birth := schedule.DateOnly(in.BirthDate, s.schedules.Location())
	if in.BirthDate.IsZero() || birth.After(today) {
		return nil, ErrBirthDateInFuture
	}

	subj := &subject.Subject{
		ID:        uuid.New(),
		Name:      name,
		BirthDate: birth,
		RiskTier:  in.RiskTier,
	}
	if g := strings.TrimSpace(in.GuardianName); g != "" {
		subj.GuardianName = sql.NullString{String: g, Valid: true}
	}
	if in.GuardianTelegramID != 0 {
		subj.GuardianTelegramID = sql.NullInt64{Int64: in.GuardianTelegramID, Valid: true}
	}

	if err := s.subjects.Create(ctx, subj); err != nil {
		return nil, fmt.Errorf("failed to create subject in repository: %w", err)
	}

	reg := &Registration{Subject: subj}
	result, err := s.schedules.GenerateSchedule(ctx, subj.ID, subj.BirthDate, subj.RiskTier, today)
	if err != nil {
		s.logger.WithError(err).WithField("subject_id", subj.ID).Error("Subject registered but schedule generation failed")
		reg.ScheduleError = err.Error()
		return reg, nil
	}
	reg.Schedule = result
	return reg, nil
}

func (s *SubjectService) GetSubject(ctx context.Context, id uuid.UUID) (*subject.Subject, error) {
	if id == uuid.Nil {
		return nil, ErrInvalidSubjectID
	}
	return s.subjects.GetByID(ctx, id)
}

func (s *SubjectService) ListSubjects(ctx context.Context) ([]*subject.Subject, error) {
	return s.subjects.List(ctx)
}
