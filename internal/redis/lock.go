package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when it is still held by the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles the single-active-ride lock of a meter in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

func meterLockKey(meterID string) string {
	return fmt.Sprintf("lock:meter:%s", meterID)
}

// AcquireMeterLock attempts to take the meter for the given ride.
// Returns true if the lock was acquired, false if another ride holds it.
func (s *LockStore) AcquireMeterLock(ctx context.Context, meterID, rideID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, meterLockKey(meterID), rideID, ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleaseMeterLock releases the meter if rideID still owns it.
func (s *LockStore) ReleaseMeterLock(ctx context.Context, meterID, rideID string) error {
	return releaseScript.Run(ctx, s.client, []string{meterLockKey(meterID)}, rideID).Err()
}

// MeterLockOwner returns the ride currently holding the meter, empty if free.
func (s *LockStore) MeterLockOwner(ctx context.Context, meterID string) (string, error) {
	owner, err := s.client.Get(ctx, meterLockKey(meterID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return owner, err
}
