// internal/infra/database/postgres_schedule_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq" // For pq.CopyIn and pq.Array

	"github.com/mahesa005/dinacom-steikon-sub000/internal/domain/schedule"
)

const entryCols = `id, subject_id, target_age_months, window_start, window_end, status,
	notification_sent, notification_sent_at, created_at, updated_at`

type PostgresScheduleRepository struct {
	db  *sql.DB
	loc *time.Location
}

// NewPostgresScheduleRepository returns a repository whose dates are anchored in loc.
func NewPostgresScheduleRepository(db *sql.DB, loc *time.Location) *PostgresScheduleRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &PostgresScheduleRepository{db: db, loc: loc}
}

func (r *PostgresScheduleRepository) scanEntry(row interface{ Scan(...any) error }, extra ...any) (*schedule.Entry, error) {
	e := &schedule.Entry{}
	var start, end time.Time
	dest := []any{
		&e.ID, &e.SubjectID, &e.TargetAgeMonths, &start, &end, &e.Status,
		&e.NotificationSent, &e.NotificationSentAt, &e.CreatedAt, &e.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	e.WindowStart = dateValue(start, r.loc)
	e.WindowEnd = dateValue(end, r.loc)
	return e, nil
}

func (r *PostgresScheduleRepository) scanEntries(rows *sql.Rows) ([]*schedule.Entry, error) {
	entries := make([]*schedule.Entry, 0)
	for rows.Next() {
		e, err := r.scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning schedule entry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedule entry rows: %w", err)
	}
	return entries, nil
}

// BulkCreate streams the entries with COPY. It joins the ambient transaction
// or opens its own.
func (r *PostgresScheduleRepository) BulkCreate(ctx context.Context, entries []*schedule.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if txn, ok := txFromContext(ctx); ok {
		return r.copyEntries(ctx, txn, entries)
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for bulk create: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	if err := r.copyEntries(ctx, txn, entries); err != nil {
		return err
	}
	return txn.Commit()
}

func (r *PostgresScheduleRepository) copyEntries(ctx context.Context, txn *sql.Tx, entries []*schedule.Entry) error {
	stmt, err := txn.PrepareContext(ctx, pq.CopyIn("schedule_entries",
		"id", "subject_id", "target_age_months", "window_start", "window_end", "status", "notification_sent"))
	if err != nil {
		return fmt.Errorf("failed to prepare copy for bulk create: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, e := range entries {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.Status == "" {
			e.Status = schedule.StatusScheduled
		}
		_, err := stmt.ExecContext(ctx, e.ID.String(), e.SubjectID.String(), e.TargetAgeMonths,
			dateParam(e.WindowStart), dateParam(e.WindowEnd), string(e.Status), e.NotificationSent)
		if err != nil {
			return fmt.Errorf("error buffering schedule entry (subject %s, window %s): %w", e.SubjectID, dateParam(e.WindowStart), err)
		}
		e.CreatedAt = now
		e.UpdatedAt = now
	}

	// The final empty Exec flushes the COPY buffer.
	if _, err := stmt.ExecContext(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("error in bulk create: %w, Detail: %w", ErrDuplicateEntry, err)
		}
		return fmt.Errorf("error flushing bulk create: %w", err)
	}
	return nil
}

func (r *PostgresScheduleRepository) GetByID(ctx context.Context, id uuid.UUID) (*schedule.Entry, error) {
	query := `SELECT ` + entryCols + ` FROM schedule_entries WHERE id = $1`
	e, err := r.scanEntry(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("error getting schedule entry by ID: %w", err)
	}
	return e, nil
}

// DeletePendingFrom deletes the subject's SCHEDULED entries with window_end on
// or after from. An entry straddling from (window 05-30..06-05, from 06-01)
// is deleted too, otherwise it would overlap the first regenerated window.
func (r *PostgresScheduleRepository) DeletePendingFrom(ctx context.Context, subjectID uuid.UUID, from time.Time) (int64, error) {
	query := `DELETE FROM schedule_entries
               WHERE subject_id = $1 AND status = $2 AND window_end >= $3::date`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, subjectID, schedule.StatusScheduled, dateParam(from))
	if err != nil {
		return 0, fmt.Errorf("error deleting pending schedule entries: %w", err)
	}
	return res.RowsAffected()
}

func (r *PostgresScheduleRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to schedule.Status) error {
	query := `UPDATE schedule_entries
               SET status = $1, updated_at = NOW()
               WHERE id = $2 AND status = $3`
	q := conn(ctx, r.db)
	res, err := q.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("error updating schedule entry status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	var current schedule.Status
	err = q.QueryRowContext(ctx, `SELECT status FROM schedule_entries WHERE id = $1`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return ErrEntryNotFound
	}
	if err != nil {
		return fmt.Errorf("error reading schedule entry status: %w", err)
	}
	return fmt.Errorf("%w: entry %s is %s, expected %s", ErrStatusConflict, id, current, from)
}

func (r *PostgresScheduleRepository) MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE schedule_entries
               SET notification_sent = TRUE, notification_sent_at = $1, updated_at = NOW()
               WHERE id = $2`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("error marking schedule entry notified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// ListBySubject returns the subject's entries ordered by window start. An
// empty statuses slice means every status.
func (r *PostgresScheduleRepository) ListBySubject(ctx context.Context, subjectID uuid.UUID, statuses []schedule.Status) ([]*schedule.Entry, error) {
	query := `SELECT ` + entryCols + ` FROM schedule_entries WHERE subject_id = $1`
	args := []any{subjectID}
	if len(statuses) > 0 {
		asStrings := make([]string, len(statuses))
		for i, s := range statuses {
			asStrings[i] = string(s)
		}
		query += ` AND status = ANY($2::varchar[])`
		args = append(args, pq.Array(asStrings))
	}
	query += ` ORDER BY window_start ASC`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying schedule entries by subject: %w", err)
	}
	defer rows.Close()
	return r.scanEntries(rows)
}

func (r *PostgresScheduleRepository) ListScheduledOnDate(ctx context.Context, day time.Time) ([]*schedule.DueEntry, error) {
	query := `SELECT e.id, e.subject_id, e.target_age_months, e.window_start, e.window_end, e.status,
                      e.notification_sent, e.notification_sent_at, e.created_at, e.updated_at,
                      s.name, s.guardian_name, s.guardian_telegram_id
               FROM schedule_entries e
               JOIN subjects s ON s.id = e.subject_id
               WHERE e.status = $1 AND e.window_start <= $2::date AND e.window_end >= $2::date
               ORDER BY e.window_start ASC, s.name`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, schedule.StatusScheduled, dateParam(day))
	if err != nil {
		return nil, fmt.Errorf("error querying schedule entries on date: %w", err)
	}
	defer rows.Close()

	due := make([]*schedule.DueEntry, 0)
	for rows.Next() {
		d := &schedule.DueEntry{}
		e, err := r.scanEntry(rows, &d.SubjectName, &d.GuardianName, &d.GuardianTelegramID)
		if err != nil {
			return nil, fmt.Errorf("error scanning due schedule entry: %w", err)
		}
		d.Entry = *e
		due = append(due, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due schedule entries: %w", err)
	}
	return due, nil
}

func (r *PostgresScheduleRepository) MarkMissedBefore(ctx context.Context, day time.Time) (int64, error) {
	query := `UPDATE schedule_entries
               SET status = $1, updated_at = NOW()
               WHERE status = $2 AND window_end < $3::date`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, schedule.StatusMissed, schedule.StatusScheduled, dateParam(day))
	if err != nil {
		return 0, fmt.Errorf("error sweeping missed schedule entries: %w", err)
	}
	return res.RowsAffected()
}
