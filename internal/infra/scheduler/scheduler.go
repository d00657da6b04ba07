package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/mahesa005/dinacom-steikon-sub000/internal/app"
)

// MaintenanceService is the part of the schedule service the cron jobs drive.
type MaintenanceService interface {
	SweepMissed(ctx context.Context, now time.Time) (int64, error)
	DispatchReminders(ctx context.Context, day time.Time) (*app.ReminderSummary, error)
}

const (
	sweepTimeout    = 1 * time.Minute
	reminderTimeout = 5 * time.Minute // one message per due entry
)

type MaintenanceScheduler struct {
	cronEngine        *cron.Cron
	service           MaintenanceService
	logger            *logrus.Entry
	now               func() time.Time
	cronSpecSweep     string
	cronSpecReminders string // empty disables the reminder job
}

func NewMaintenanceScheduler(
	service MaintenanceService,
	logger *logrus.Entry,
	loc *time.Location,
	cronSpecSweep string, // e.g., "5 0 * * *" (00:05 daily)
	cronSpecReminders string, // e.g., "0 7 * * *" (07:00 daily)
) *MaintenanceScheduler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &MaintenanceScheduler{
		cronEngine:        cron.New(cron.WithLocation(loc)),
		service:           service,
		logger:            logger.WithField("component", "scheduler"),
		now:               time.Now,
		cronSpecSweep:     cronSpecSweep,
		cronSpecReminders: cronSpecReminders,
	}
}

// Start registers the jobs and starts the cron engine. An invalid cron
// expression is returned before anything runs.
func (s *MaintenanceScheduler) Start() error {
	s.logger.Info("Starting maintenance scheduler...")

	if _, err := s.cronEngine.AddFunc(s.cronSpecSweep, s.RunSweep); err != nil {
		return err
	}
	if s.cronSpecReminders != "" {
		if _, err := s.cronEngine.AddFunc(s.cronSpecReminders, s.RunReminders); err != nil {
			return err
		}
	} else {
		s.logger.Info("Reminder job disabled")
	}

	s.cronEngine.Start()
	s.logger.WithField("jobs", len(s.cronEngine.Entries())).Info("Maintenance scheduler started")
	return nil
}

// RunSweep is the body of the nightly missed-entry job.
func (s *MaintenanceScheduler) RunSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	s.logger.Info("Cron job triggered for missed entry sweep")
	if _, err := s.service.SweepMissed(ctx, s.now()); err != nil {
		s.logger.WithError(err).Error("Missed entry sweep failed")
	}
}

// RunReminders is the body of the daily reminder job.
func (s *MaintenanceScheduler) RunReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), reminderTimeout)
	defer cancel()

	s.logger.Info("Cron job triggered for guardian reminders")
	summary, err := s.service.DispatchReminders(ctx, s.now())
	if err != nil {
		s.logger.WithError(err).Error("Reminder dispatch failed")
		return
	}
	if summary.Failed > 0 {
		s.logger.WithField("failed", summary.Failed).Warn("Some reminders were not delivered")
	}
}

func (s *MaintenanceScheduler) Stop() {
	s.logger.Info("Stopping maintenance scheduler...")
	ctx := s.cronEngine.Stop() // waits for running jobs
	<-ctx.Done()
	s.logger.Info("Maintenance scheduler gracefully stopped")
}
