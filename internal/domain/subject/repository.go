package subject

import (
	"context"

	"github.com/google/uuid"

	"github.com/mahesa005/dinacom-steikon-sub000/internal/domain/schedule"
)

// Repository defines the operations for persisting and retrieving Subject entities.
type Repository interface {
	Create(ctx context.Context, s *Subject) error
	GetByID(ctx context.Context, id uuid.UUID) (*Subject, error)
	// LockByID reads the subject and holds a row lock until the surrounding
	// transaction ends. Outside a transaction it behaves like GetByID.
	LockByID(ctx context.Context, id uuid.UUID) (*Subject, error)
	UpdateRiskTier(ctx context.Context, id uuid.UUID, tier schedule.RiskTier) error
	List(ctx context.Context) ([]*Subject, error)
}
