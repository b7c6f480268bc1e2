package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"taximeter/internal/domain"
	"taximeter/internal/meter"
)

// CacheStore handles settings caching and active-ride checkpoints in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// Cache TTL constants
const (
	SettingsCacheTTL = 60 * time.Second
	CheckpointTTL    = 24 * time.Hour // an abandoned ride is forgotten after a day
)

// Key prefixes
const (
	settingsCachePrefix = "cache:settings:"
	checkpointPrefix    = "meter:checkpoint:"
)

// GetSettings retrieves cached rate settings. A miss returns nil, nil.
func (s *CacheStore) GetSettings(ctx context.Context, meterID string) (*domain.RateConfig, error) {
	data, err := s.client.Get(ctx, settingsCachePrefix+meterID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var rates domain.RateConfig
	if err := json.Unmarshal(data, &rates); err != nil {
		return nil, err
	}
	return &rates, nil
}

// SetSettings stores rate settings in cache.
func (s *CacheStore) SetSettings(ctx context.Context, meterID string, rates domain.RateConfig) error {
	data, err := json.Marshal(rates)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, settingsCachePrefix+meterID, data, SettingsCacheTTL).Err()
}

// InvalidateSettings removes cached settings.
func (s *CacheStore) InvalidateSettings(ctx context.Context, meterID string) error {
	return s.client.Del(ctx, settingsCachePrefix+meterID).Err()
}

// SaveCheckpoint stores the state of the active ride.
func (s *CacheStore) SaveCheckpoint(ctx context.Context, meterID string, cp meter.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, checkpointPrefix+meterID, data, CheckpointTTL).Err()
}

// LoadCheckpoint returns the stored checkpoint, or nil, nil when there is none.
func (s *CacheStore) LoadCheckpoint(ctx context.Context, meterID string) (*meter.Checkpoint, error) {
	data, err := s.client.Get(ctx, checkpointPrefix+meterID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var cp meter.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// ClearCheckpoint removes the checkpoint once the ride has ended.
func (s *CacheStore) ClearCheckpoint(ctx context.Context, meterID string) error {
	return s.client.Del(ctx, checkpointPrefix+meterID).Err()
}
