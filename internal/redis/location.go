package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const meterPositionKey = "meters:positions"

// Position is the last accepted location of a meter.
type Position struct {
	MeterID string  `json:"meter_id"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// PositionStore keeps the last accepted position of each meter in a geo index.
type PositionStore struct {
	client *redis.Client
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(client *redis.Client) *PositionStore {
	return &PositionStore{client: client}
}

// UpdatePosition stores a meter's location using GEOADD.
func (s *PositionStore) UpdatePosition(ctx context.Context, meterID string, lat, lon float64) error {
	return s.client.GeoAdd(ctx, meterPositionKey, &redis.GeoLocation{
		Name:      meterID,
		Longitude: lon,
		Latitude:  lat,
	}).Err()
}

// LastPosition returns the stored location, or nil when the meter has none.
func (s *PositionStore) LastPosition(ctx context.Context, meterID string) (*Position, error) {
	positions, err := s.client.GeoPos(ctx, meterPositionKey, meterID).Result()
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 || positions[0] == nil {
		return nil, nil
	}

	return &Position{
		MeterID: meterID,
		Lat:     positions[0].Latitude,
		Lon:     positions[0].Longitude,
	}, nil
}

// RemovePosition removes a meter from the geo index.
func (s *PositionStore) RemovePosition(ctx context.Context, meterID string) error {
	return s.client.ZRem(ctx, meterPositionKey, meterID).Err()
}
