package repository

import (
	"context"

	"taximeter/internal/domain"
)

// HistoryLimit caps the number of completed rides returned by GetAll.
const HistoryLimit = 100

// TripRepository defines the persistence operations for completed rides.
type TripRepository interface {
	// Save persists a completed ride. Saving the same ID twice overwrites the
	// record so retries of a failed hand-off are idempotent.
	Save(ctx context.Context, ride *domain.CompletedRide) error

	// GetByID retrieves a completed ride by ID.
	GetByID(ctx context.Context, id string) (*domain.CompletedRide, error)

	// GetAll retrieves up to HistoryLimit rides, newest first.
	GetAll(ctx context.Context) ([]*domain.CompletedRide, error)

	// SetPaid updates the paid flag, the only mutable field of a record.
	SetPaid(ctx context.Context, id string, paid bool) error

	// DeleteAll removes the whole history.
	DeleteAll(ctx context.Context) error
}
