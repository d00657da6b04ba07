package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gopkg.in/telebot.v3"

	"github.com/mahesa005/dinacom-steikon-sub000/internal/domain/schedule"
	"github.com/mahesa005/dinacom-steikon-sub000/internal/domain/subject"
	idb "github.com/mahesa005/dinacom-steikon-sub000/internal/infra/database"
)

// -- Mock Repositories --

type mockSubjectRepo struct {
	subjects  map[uuid.UUID]*subject.Subject
	createErr error
	locks     int
}

func newMockSubjectRepo() *mockSubjectRepo {
	return &mockSubjectRepo{subjects: make(map[uuid.UUID]*subject.Subject)}
}

func (m *mockSubjectRepo) Create(_ context.Context, s *subject.Subject) error {
	if m.createErr != nil {
		return m.createErr
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	m.subjects[s.ID] = s
	return nil
}

func (m *mockSubjectRepo) GetByID(_ context.Context, id uuid.UUID) (*subject.Subject, error) {
	s, ok := m.subjects[id]
	if !ok {
		return nil, idb.ErrSubjectNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockSubjectRepo) LockByID(ctx context.Context, id uuid.UUID) (*subject.Subject, error) {
	m.locks++
	return m.GetByID(ctx, id)
}

func (m *mockSubjectRepo) UpdateRiskTier(_ context.Context, id uuid.UUID, tier schedule.RiskTier) error {
	s, ok := m.subjects[id]
	if !ok {
		return idb.ErrSubjectNotFound
	}
	s.RiskTier = tier
	return nil
}

func (m *mockSubjectRepo) List(_ context.Context) ([]*subject.Subject, error) {
	var result []*subject.Subject
	for _, s := range m.subjects {
		result = append(result, s)
	}
	return result, nil
}

type mockScheduleRepo struct {
	entries       map[uuid.UUID]*schedule.Entry
	subjects      *mockSubjectRepo
	bulkCreateErr error
	notifyErr     error
}

func newMockScheduleRepo(subjects *mockSubjectRepo) *mockScheduleRepo {
	return &mockScheduleRepo{entries: make(map[uuid.UUID]*schedule.Entry), subjects: subjects}
}

func (m *mockScheduleRepo) BulkCreate(_ context.Context, entries []*schedule.Entry) error {
	if m.bulkCreateErr != nil {
		return m.bulkCreateErr
	}
	for _, e := range entries {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		cp := *e
		m.entries[e.ID] = &cp
	}
	return nil
}

func (m *mockScheduleRepo) GetByID(_ context.Context, id uuid.UUID) (*schedule.Entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return nil, idb.ErrEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockScheduleRepo) DeletePendingFrom(_ context.Context, subjectID uuid.UUID, from time.Time) (int64, error) {
	var n int64
	for id, e := range m.entries {
		if e.SubjectID == subjectID && e.Status == schedule.StatusScheduled && !e.WindowEnd.Before(from) {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

func (m *mockScheduleRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to schedule.Status) error {
	e, ok := m.entries[id]
	if !ok {
		return idb.ErrEntryNotFound
	}
	if e.Status != from {
		return idb.ErrStatusConflict
	}
	e.Status = to
	return nil
}

func (m *mockScheduleRepo) MarkNotified(_ context.Context, id uuid.UUID, at time.Time) error {
	if m.notifyErr != nil {
		return m.notifyErr
	}
	e, ok := m.entries[id]
	if !ok {
		return idb.ErrEntryNotFound
	}
	e.NotificationSent = true
	sentAt := at
	e.NotificationSentAt = &sentAt
	return nil
}

func (m *mockScheduleRepo) ListBySubject(_ context.Context, subjectID uuid.UUID, statuses []schedule.Status) ([]*schedule.Entry, error) {
	var result []*schedule.Entry
	for _, e := range m.entries {
		if e.SubjectID != subjectID {
			continue
		}
		if len(statuses) > 0 && !hasStatus(statuses, e.Status) {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].WindowStart.Before(result[j].WindowStart) })
	return result, nil
}

func (m *mockScheduleRepo) ListScheduledOnDate(_ context.Context, day time.Time) ([]*schedule.DueEntry, error) {
	var result []*schedule.DueEntry
	for _, e := range m.entries {
		if e.Status != schedule.StatusScheduled || !e.Contains(day) {
			continue
		}
		d := &schedule.DueEntry{Entry: *e}
		if s, ok := m.subjects.subjects[e.SubjectID]; ok {
			d.SubjectName = s.Name
			d.GuardianName = s.GuardianName
			d.GuardianTelegramID = s.GuardianTelegramID
		}
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].WindowStart.Before(result[j].WindowStart) })
	return result, nil
}

func (m *mockScheduleRepo) MarkMissedBefore(_ context.Context, day time.Time) (int64, error) {
	var n int64
	for _, e := range m.entries {
		if e.Status == schedule.StatusScheduled && e.WindowEnd.Before(day) {
			e.Status = schedule.StatusMissed
			n++
		}
	}
	return n, nil
}

func hasStatus(statuses []schedule.Status, s schedule.Status) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// fakeTx restores both repositories when fn fails, like a rolled back transaction.
type fakeTx struct {
	subjects  *mockSubjectRepo
	schedules *mockScheduleRepo
	depth     int
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if f.depth > 0 {
		return fn(ctx)
	}
	subjects := make(map[uuid.UUID]*subject.Subject, len(f.subjects.subjects))
	for id, s := range f.subjects.subjects {
		cp := *s
		subjects[id] = &cp
	}
	entries := make(map[uuid.UUID]*schedule.Entry, len(f.schedules.entries))
	for id, e := range f.schedules.entries {
		cp := *e
		entries[id] = &cp
	}

	f.depth++
	err := fn(ctx)
	f.depth--
	if err != nil {
		f.subjects.subjects = subjects
		f.schedules.entries = entries
	}
	return err
}

type sentMessage struct {
	chatID int64
	text   string
}

type fakeMessenger struct {
	sent    []sentMessage
	failFor map[int64]bool
}

func (f *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string, _ *telebot.SendOptions) error {
	if f.failFor[chatID] {
		return fmt.Errorf("chat %d unreachable", chatID)
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

// -- Fixtures --

type testEnv struct {
	subjects  *mockSubjectRepo
	schedules *mockScheduleRepo
	messenger *fakeMessenger
	svc       *ScheduleService
	subjSvc   *SubjectService
}

func newTestEnv(now time.Time) *testEnv {
	subjects := newMockSubjectRepo()
	schedules := newMockScheduleRepo(subjects)
	messenger := &fakeMessenger{failFor: map[int64]bool{}}
	svc := NewScheduleService(subjects, schedules, &fakeTx{subjects: subjects, schedules: schedules}, messenger, nil, time.UTC)
	svc.now = func() time.Time { return now }
	return &testEnv{
		subjects:  subjects,
		schedules: schedules,
		messenger: messenger,
		svc:       svc,
		subjSvc:   NewSubjectService(subjects, svc, nil),
	}
}

func (env *testEnv) addSubject(name string, birth time.Time, tier schedule.RiskTier) *subject.Subject {
	s := &subject.Subject{ID: uuid.New(), Name: name, BirthDate: birth, RiskTier: tier}
	env.subjects.subjects[s.ID] = s
	return s
}

func (env *testEnv) addEntry(subjectID uuid.UUID, windowStart time.Time, status schedule.Status) *schedule.Entry {
	e := &schedule.Entry{
		ID:              uuid.New(),
		SubjectID:       subjectID,
		TargetAgeMonths: 3,
		WindowStart:     windowStart,
		WindowEnd:       windowStart.AddDate(0, 0, 6),
		Status:          status,
	}
	env.schedules.entries[e.ID] = e
	return e
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
