package repository

import (
	"context"

	"taximeter/internal/domain"
)

// SettingsRepository stores the rate settings of a meter.
type SettingsRepository interface {
	// Get returns the stored settings, or ErrNotFound when none were saved.
	Get(ctx context.Context, meterID string) (*domain.RateConfig, error)

	// Save stores the settings, replacing any previous value.
	Save(ctx context.Context, meterID string, rates domain.RateConfig) error
}
