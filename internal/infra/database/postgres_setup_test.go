package database_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mahesa005/dinacom-steikon-sub000/internal/domain/schedule"
	"github.com/mahesa005/dinacom-steikon-sub000/internal/domain/subject"
	"github.com/mahesa005/dinacom-steikon-sub000/internal/infra/database"
)

// wib is used so that date re-anchoring is observable: a local midnight
// is the previous day in UTC.
var wib = time.FixedZone("WIB", 7*60*60)

// testStore is the repository stack over a real PostgreSQL database.
type testStore struct {
	DB        *sql.DB
	Subjects  *database.PostgresSubjectRepository
	Schedules *database.PostgresScheduleRepository
	Tx        *database.TxManager
}

// openTestStore connects to TEST_DATABASE_URL, applies the schema and empties
// both tables. The database is wiped, so point it at a throwaway instance.
func openTestStore(t *testing.T) *testStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewPostgresConnection(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// Applying the schema twice must be harmless.
	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if _, err := db.ExecContext(ctx, `TRUNCATE schedule_entries, subjects`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	return &testStore{
		DB:        db,
		Subjects:  database.NewPostgresSubjectRepository(db, wib),
		Schedules: database.NewPostgresScheduleRepository(db, wib),
		Tx:        database.NewTxManager(db),
	}
}

func localDay(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, wib)
}

func (s *testStore) createSubject(t *testing.T, name string, birth time.Time, tier schedule.RiskTier) *subject.Subject {
	t.Helper()
	subj := &subject.Subject{
		Name:               name,
		BirthDate:          birth,
		RiskTier:           tier,
		GuardianName:       sql.NullString{String: "Ibu " + name, Valid: true},
		GuardianTelegramID: sql.NullInt64{Int64: 4242, Valid: true},
	}
	if err := s.Subjects.Create(context.Background(), subj); err != nil {
		t.Fatalf("create subject: %v", err)
	}
	return subj
}

// createEntry stores one entry with the given window through the COPY path.
func (s *testStore) createEntry(t *testing.T, subjectID uuid.UUID, start, end time.Time, status schedule.Status) *schedule.Entry {
	t.Helper()
	e := &schedule.Entry{
		SubjectID:       subjectID,
		TargetAgeMonths: 3,
		WindowStart:     start,
		WindowEnd:       end,
		Status:          status,
	}
	if err := s.Schedules.BulkCreate(context.Background(), []*schedule.Entry{e}); err != nil {
		t.Fatalf("create entry %s..%s: %v", start.Format(schedule.DateLayout), end.Format(schedule.DateLayout), err)
	}
	return e
}

func (s *testStore) exists(t *testing.T, id uuid.UUID) bool {
	t.Helper()
	_, err := s.Schedules.GetByID(context.Background(), id)
	if err == nil {
		return true
	}
	if !errors.Is(err, database.ErrEntryNotFound) {
		t.Fatalf("get entry %s: %v", id, err)
	}
	return false
}
