package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"taximeter/internal/domain"
	"taximeter/internal/repository"
)

// SettingsRepository is a PostgreSQL implementation of repository.SettingsRepository.
type SettingsRepository struct {
	q Querier
}

// NewSettingsRepository creates a new PostgreSQL settings repository.
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{q: db}
}

// Get returns the stored rate settings of a meter.
func (r *SettingsRepository) Get(ctx context.Context, meterID string) (*domain.RateConfig, error) {
	var raw []byte
	err := r.q.QueryRowContext(ctx, `SELECT config FROM meter_settings WHERE meter_id = $1`, meterID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	// Start from the defaults so fields missing in older rows keep sane values.
	rates := domain.DefaultRateConfig()
	if err := json.Unmarshal(raw, &rates); err != nil {
		return nil, fmt.Errorf("failed to decode settings of meter %s: %w", meterID, err)
	}

	return &rates, nil
}

// Save upserts the rate settings of a meter.
func (r *SettingsRepository) Save(ctx context.Context, meterID string, rates domain.RateConfig) error {
	raw, err := json.Marshal(rates)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO meter_settings (meter_id, config, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (meter_id) DO UPDATE SET config = EXCLUDED.config, updated_at = NOW()
	`, meterID, raw)

	return err
}

// Ensure SettingsRepository implements repository.SettingsRepository.
var _ repository.SettingsRepository = (*SettingsRepository)(nil)
