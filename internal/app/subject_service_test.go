package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/mahesa005/dinacom-steikon-sub000/internal/domain/schedule"
	idb "github.com/mahesa005/dinacom-steikon-sub000/internal/infra/database"
)

func TestRegisterSubject_GeneratesSchedule(t *testing.T) {
	env := newTestEnv(day(2025, 3, 1))

	reg, err := env.subjSvc.RegisterSubject(context.Background(), RegisterSubjectInput{
		Name:               "  Sekar  ",
		BirthDate:          day(2025, 1, 1),
		RiskTier:           schedule.RiskHigh,
		GuardianName:       "Ibu Sri",
		GuardianTelegramID: 5005,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.Subject.Name != "Sekar" {
		t.Errorf("expected trimmed name, got %q", reg.Subject.Name)
	}
	if !reg.Subject.GuardianTelegramID.Valid || reg.Subject.GuardianTelegramID.Int64 != 5005 {
		t.Errorf("expected guardian chat to be stored, got %+v", reg.Subject.GuardianTelegramID)
	}
	if reg.Schedule == nil || !reg.Schedule.Generated || reg.ScheduleError != "" {
		t.Fatalf("expected generated schedule, got %+v", reg)
	}
	if reg.Schedule.StartDate != "2025-03-01" {
		t.Errorf("expected schedule from today, got %s", reg.Schedule.StartDate)
	}
	if got := len(scheduledFor(t, env, reg.Subject.ID)); got != reg.Schedule.Inserted {
		t.Errorf("expected %d stored entries, got %d", reg.Schedule.Inserted, got)
	}
}

func TestRegisterSubject_GenerationFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(day(2025, 3, 1))
	env.schedules.bulkCreateErr = fmt.Errorf("copy failed")

	reg, err := env.subjSvc.RegisterSubject(context.Background(), RegisterSubjectInput{
		Name:      "Tari",
		BirthDate: day(2025, 1, 1),
		RiskTier:  schedule.RiskLow,
	})
	if err != nil {
		t.Fatalf("registration must succeed, got %v", err)
	}
	if reg.Schedule != nil || reg.ScheduleError == "" {
		t.Errorf("expected schedule error to be reported, got %+v", reg)
	}
	if _, ok := env.subjects.subjects[reg.Subject.ID]; !ok {
		t.Error("subject must stay registered")
	}
}

func TestRegisterSubject_Validation(t *testing.T) {
	env := newTestEnv(day(2025, 3, 1))
	ctx := context.Background()

	tests := []struct {
		name    string
		input   RegisterSubjectInput
		wantErr error
	}{
		{"blank name", RegisterSubjectInput{Name: " ", BirthDate: day(2025, 1, 1), RiskTier: schedule.RiskLow}, ErrInvalidSubjectName},
		{"unknown tier", RegisterSubjectInput{Name: "Umi", BirthDate: day(2025, 1, 1), RiskTier: "SEVERE"}, ErrInvalidRiskTier},
		{"future birth", RegisterSubjectInput{Name: "Umi", BirthDate: day(2025, 3, 2), RiskTier: schedule.RiskLow}, ErrBirthDateInFuture},
		{"missing birth", RegisterSubjectInput{Name: "Umi", RiskTier: schedule.RiskLow}, ErrBirthDateInFuture},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.subjSvc.RegisterSubject(ctx, tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
	if len(env.subjects.subjects) != 0 {
		t.Errorf("invalid input must not create subjects, found %d", len(env.subjects.subjects))
	}
}

func TestGetSubject(t *testing.T) {
	env := newTestEnv(day(2025, 3, 1))
	subj := env.addSubject("Vina", day(2025, 1, 1), schedule.RiskMedium)
	ctx := context.Background()

	got, err := env.subjSvc.GetSubject(ctx, subj.ID)
	if err != nil || got.Name != "Vina" {
		t.Fatalf("expected Vina, got %+v (%v)", got, err)
	}
	if _, err := env.subjSvc.GetSubject(ctx, uuid.Nil); !errors.Is(err, ErrInvalidSubjectID) {
		t.Errorf("expected ErrInvalidSubjectID, got %v", err)
	}
	if _, err := env.subjSvc.GetSubject(ctx, uuid.New()); !errors.Is(err, idb.ErrSubjectNotFound) {
		t.Errorf("expected ErrSubjectNotFound, got %v", err)
	}
}
