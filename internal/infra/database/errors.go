package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Custom errors
var ErrSubjectNotFound = fmt.Errorf("subject not found")
var ErrEntryNotFound = fmt.Errorf("schedule entry not found")
var ErrStatusConflict = fmt.Errorf("schedule entry is not in the expected status")
var ErrDuplicateEntry = fmt.Errorf("duplicate schedule entry id")

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// dateParam renders a calendar date for a DATE column. Sending the string
// avoids the session time zone shifting a local midnight into the previous day.
func dateParam(t time.Time) string {
	return t.Format("2006-01-02")
}

// dateValue re-anchors a DATE column (returned by lib/pq at UTC midnight) in loc.
func dateValue(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
