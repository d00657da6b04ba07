package subject

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/mahesa005/dinacom-steikon-sub000/internal/domain/schedule"
)

// Subject is a monitored infant.
type Subject struct {
	ID                 uuid.UUID         `json:"id"`
	Name               string            `json:"name"`
	BirthDate          time.Time         `json:"birth_date"`
	RiskTier           schedule.RiskTier `json:"risk_tier"`
	GuardianName       sql.NullString    `json:"-"` // Parent or caregiver
	GuardianTelegramID sql.NullInt64     `json:"-"` // Reminder destination, optional
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}
