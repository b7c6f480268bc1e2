package redis

import (
	"context"
	"time"

	"taximeter/internal/domain"
	"taximeter/internal/meter"
)

// SettingsCache defines the interface for cached rate settings.
type SettingsCache interface {
	GetSettings(ctx context.Context, meterID string) (*domain.RateConfig, error)
	SetSettings(ctx context.Context, meterID string, rates domain.RateConfig) error
	InvalidateSettings(ctx context.Context, meterID string) error
}

// CheckpointStore defines the interface for active-ride checkpoints.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, meterID string, cp meter.Checkpoint) error
	LoadCheckpoint(ctx context.Context, meterID string) (*meter.Checkpoint, error)
	ClearCheckpoint(ctx context.Context, meterID string) error
}

// LockStoreInterface defines the interface for the meter lock.
type LockStoreInterface interface {
	AcquireMeterLock(ctx context.Context, meterID, rideID string, ttl time.Duration) (bool, error)
	ReleaseMeterLock(ctx context.Context, meterID, rideID string) error
}

// PositionStoreInterface defines the interface for last-known positions.
type PositionStoreInterface interface {
	UpdatePosition(ctx context.Context, meterID string, lat, lon float64) error
	LastPosition(ctx context.Context, meterID string) (*Position, error)
	RemovePosition(ctx context.Context, meterID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ SettingsCache          = (*CacheStore)(nil)
	_ CheckpointStore        = (*CacheStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ PositionStoreInterface = (*PositionStore)(nil)
)
