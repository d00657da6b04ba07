// internal/domain/schedule/entry.go
package schedule

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// WindowHalfWidthDays is the tolerance on each side of the target visit date.
const WindowHalfWidthDays = 3

// Entry is one follow-up examination window for a subject.
// Corresponds to the 'schedule_entries' table.
type Entry struct {
	ID                 uuid.UUID  `json:"id"`
	SubjectID          uuid.UUID  `json:"subject_id"`
	TargetAgeMonths    int        `json:"target_age_months"`
	WindowStart        time.Time  `json:"window_start"`
	WindowEnd          time.Time  `json:"window_end"`
	Status             Status     `json:"status"`
	NotificationSent   bool       `json:"notification_sent"`
	NotificationSentAt *time.Time `json:"notification_sent_at"` // nil until a reminder was sent
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TargetDate is the midpoint of the window.
func (e *Entry) TargetDate() time.Time {
	return e.WindowStart.AddDate(0, 0, WindowHalfWidthDays)
}

// Contains reports whether day falls inside the window, bounds included.
func (e *Entry) Contains(day time.Time) bool {
	d := DateOnly(day, e.WindowStart.Location())
	return !d.Before(e.WindowStart) && !d.After(e.WindowEnd)
}

// DueEntry is a scheduled entry joined with the subject fields a health
// worker needs to act on it.
type DueEntry struct {
	Entry
	SubjectName        string         `json:"subject_name"`
	GuardianName       sql.NullString `json:"-"`
	GuardianTelegramID sql.NullInt64  `json:"-"`
}
