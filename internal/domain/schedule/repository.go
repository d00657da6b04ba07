// internal/domain/schedule/repository.go
package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence operations for schedule entries.
// Implementations join an ambient transaction when ctx carries one.
type Repository interface {
	BulkCreate(ctx context.Context, entries []*Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)

	// DeletePendingFrom removes the subject's SCHEDULED entries whose window
	// has not closed before from (window_end >= from). That includes an entry
	// straddling from, so no kept window overlaps the regenerated ones.
	DeletePendingFrom(ctx context.Context, subjectID uuid.UUID, from time.Time) (int64, error)

	// UpdateStatus moves a single entry from one status to another. It fails
	// when the stored status is not from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error
	MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error

	ListBySubject(ctx context.Context, subjectID uuid.UUID, statuses []Status) ([]*Entry, error)
	ListScheduledOnDate(ctx context.Context, day time.Time) ([]*DueEntry, error)

	// MarkMissedBefore flips SCHEDULED entries with window_end < day to MISSED.
	MarkMissedBefore(ctx context.Context, day time.Time) (int64, error)
}
