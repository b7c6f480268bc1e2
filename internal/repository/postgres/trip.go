package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taximeter/internal/domain"
	"taximeter/internal/repository"
)

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
type TripRepository struct {
	q Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{q: db}
}

const tripColumns = `id, name, started_at, ended_at, duration_ms, distance_m, rates, discount, base_fare, final_fare, points, paid`

// Save persists a completed ride. A retried save overwrites the ride data but
// keeps the paid flag already stored.
func (r *TripRepository) Save(ctx context.Context, ride *domain.CompletedRide) error {
	query := `
		INSERT INTO trips (` + tripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, started_at = EXCLUDED.started_at, ended_at = EXCLUDED.ended_at,
			duration_ms = EXCLUDED.duration_ms, distance_m = EXCLUDED.distance_m,
			rates = EXCLUDED.rates, discount = EXCLUDED.discount,
			base_fare = EXCLUDED.base_fare, final_fare = EXCLUDED.final_fare,
			points = EXCLUDED.points
	`

	rates, err := json.Marshal(ride.Rates)
	if err != nil {
		return fmt.Errorf("failed to encode rates: %w", err)
	}
	discount, err := json.Marshal(ride.Discount)
	if err != nil {
		return fmt.Errorf("failed to encode discount: %w", err)
	}
	points := ride.Points
	if points == nil {
		points = []domain.TrackPoint{}
	}
	track, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("failed to encode points: %w", err)
	}

	_, err = r.q.ExecContext(ctx, query,
		ride.ID,
		ride.Name,
		time.UnixMilli(ride.StartedAt).UTC(),
		time.UnixMilli(ride.EndedAt).UTC(),
		ride.DurationMs,
		ride.DistanceMeters,
		rates,
		discount,
		ride.BaseFare,
		ride.FinalFare,
		track,
		ride.Paid,
	)

	return err
}

// GetByID retrieves a completed ride by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.CompletedRide, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	ride, err := scanTrip(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return ride, nil
}

// GetAll retrieves the most recent rides, newest first.
func (r *TripRepository) GetAll(ctx context.Context) ([]*domain.CompletedRide, error) {
	query := `SELECT ` + tripColumns + ` FROM trips ORDER BY ended_at DESC LIMIT $1`

	rows, err := r.q.QueryContext(ctx, query, repository.HistoryLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.CompletedRide
	for rows.Next() {
		ride, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}

	return rides, rows.Err()
}

// SetPaid updates the paid flag of a ride.
func (r *TripRepository) SetPaid(ctx context.Context, id string, paid bool) error {
	result, err := r.q.ExecContext(ctx, `UPDATE trips SET paid = $1 WHERE id = $2`, paid, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// DeleteAll removes every stored ride.
func (r *TripRepository) DeleteAll(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM trips`)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*domain.CompletedRide, error) {
	var ride domain.CompletedRide
	var startedAt, endedAt time.Time
	var rates, discount, points []byte

	if err := row.Scan(
		&ride.ID,
		&ride.Name,
		&startedAt,
		&endedAt,
		&ride.DurationMs,
		&ride.DistanceMeters,
		&rates,
		&discount,
		&ride.BaseFare,
		&ride.FinalFare,
		&points,
		&ride.Paid,
	); err != nil {
		return nil, err
	}

	ride.StartedAt = startedAt.UnixMilli()
	ride.EndedAt = endedAt.UnixMilli()

	if err := json.Unmarshal(rates, &ride.Rates); err != nil {
		return nil, fmt.Errorf("failed to decode rates of trip %s: %w", ride.ID, err)
	}
	if err := json.Unmarshal(discount, &ride.Discount); err != nil {
		return nil, fmt.Errorf("failed to decode discount of trip %s: %w", ride.ID, err)
	}
	if err := json.Unmarshal(points, &ride.Points); err != nil {
		return nil, fmt.Errorf("failed to decode points of trip %s: %w", ride.ID, err)
	}

	return &ride, nil
}

// Ensure TripRepository implements repository.TripRepository.
var _ repository.TripRepository = (*TripRepository)(nil)
