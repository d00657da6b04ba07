package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mahesa005/dinacom-steikon-sub000/internal/domain/schedule"
	"github.com/mahesa005/dinacom-steikon-sub000/internal/domain/subject"
)

const subjectCols = `id, name, birth_date, risk_tier, guardian_name, guardian_telegram_id, created_at, updated_at`

type PostgresSubjectRepository struct {
	db  *sql.DB
	loc *time.Location
}

// NewPostgresSubjectRepository returns a repository whose dates are anchored in loc.
func NewPostgresSubjectRepository(db *sql.DB, loc *time.Location) *PostgresSubjectRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &PostgresSubjectRepository{db: db, loc: loc}
}

func (r *PostgresSubjectRepository) scanSubject(row interface{ Scan(...any) error }) (*subject.Subject, error) {
	s := &subject.Subject{}
	var birth time.Time
	if err := row.Scan(&s.ID, &s.Name, &birth, &s.RiskTier, &s.GuardianName, &s.GuardianTelegramID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.BirthDate = dateValue(birth, r.loc)
	return s, nil
}

func (r *PostgresSubjectRepository) Create(ctx context.Context, s *subject.Subject) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	query := `INSERT INTO subjects (id, name, birth_date, risk_tier, guardian_name, guardian_telegram_id)
               VALUES ($1, $2, $3::date, $4, $5, $6)
               RETURNING created_at, updated_at`

	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		s.ID, s.Name, dateParam(s.BirthDate), s.RiskTier, s.GuardianName, s.GuardianTelegramID,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("subject %s already exists: %w", s.ID, err)
		}
		return fmt.Errorf("error creating subject: %w", err)
	}
	return nil
}

func (r *PostgresSubjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*subject.Subject, error) {
	query := `SELECT ` + subjectCols + ` FROM subjects WHERE id = $1`
	s, err := r.scanSubject(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSubjectNotFound
		}
		return nil, fmt.Errorf("error getting subject by ID: %w", err)
	}
	return s, nil
}

func (r *PostgresSubjectRepository) LockByID(ctx context.Context, id uuid.UUID) (*subject.Subject, error) {
	if _, ok := txFromContext(ctx); !ok {
		return r.GetByID(ctx, id)
	}
	query := `SELECT ` + subjectCols + ` FROM subjects WHERE id = $1 FOR UPDATE`
	s, err := r.scanSubject(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSubjectNotFound
		}
		return nil, fmt.Errorf("error locking subject: %w", err)
	}
	return s, nil
}

func (r *PostgresSubjectRepository) UpdateRiskTier(ctx context.Context, id uuid.UUID, tier schedule.RiskTier) error {
	query := `UPDATE subjects SET risk_tier = $1, updated_at = NOW() WHERE id = $2`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, tier, id)
	if err != nil {
		return fmt.Errorf("error updating subject risk tier: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return ErrSubjectNotFound
	}
	return nil
}

func (r *PostgresSubjectRepository) List(ctx context.Context) ([]*subject.Subject, error) {
	query := `SELECT ` + subjectCols + ` FROM subjects ORDER BY name, birth_date`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing subjects: %w", err)
	}
	defer rows.Close()

	subjects := make([]*subject.Subject, 0)
	for rows.Next() {
		s, err := r.scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning subject: %w", err)
		}
		subjects = append(subjects, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subjects: %w", err)
	}
	return subjects, nil
}
