package tests

import (
	"context"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"taximeter/internal/domain"
	"taximeter/internal/meter"
	"taximeter/internal/middleware"
	"taximeter/internal/redis"
	"taximeter/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK TRIP REPOSITORY
// ──────────────────────────────────────────────

// MockTripRepository is a mock implementation of TripRepository.
type MockTripRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.CompletedRide

	// Counters for verification
	SaveCallCount int32

	// Error injection
	SaveError    error
	GetAllError  error
	SetPaidError error
}

// NewMockTripRepository creates a new mock trip repository.
func NewMockTripRepository() *MockTripRepository {
	return &MockTripRepository{
		rides: make(map[string]*domain.CompletedRide),
	}
}

// AddRide adds a ride to the mock repository.
func (m *MockTripRepository) AddRide(ride *domain.CompletedRide) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = ride
}

func (m *MockTripRepository) Save(ctx context.Context, ride *domain.CompletedRide) error {
	atomic.AddInt32(&m.SaveCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveError != nil {
		return m.SaveError
	}
	copy := *ride
	if existing, ok := m.rides[ride.ID]; ok {
		copy.Paid = existing.Paid // Upsert keeps the stored paid flag.
	}
	m.rides[ride.ID] = &copy
	return nil
}

func (m *MockTripRepository) GetByID(ctx context.Context, id string) (*domain.CompletedRide, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *ride
	return &copy, nil
}

func (m *MockTripRepository) GetAll(ctx context.Context) ([]*domain.CompletedRide, error) {
	if m.GetAllError != nil {
		return nil, m.GetAllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.CompletedRide, 0, len(m.rides))
	for _, r := range m.rides {
		copy := *r
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EndedAt > result[j].EndedAt })
	if len(result) > repository.HistoryLimit {
		result = result[:repository.HistoryLimit]
	}
	return result, nil
}

func (m *MockTripRepository) SetPaid(ctx context.Context, id string, paid bool) error {
	if m.SetPaidError != nil {
		return m.SetPaidError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok {
		return repository.ErrNotFound
	}
	ride.Paid = paid
	return nil
}

func (m *MockTripRepository) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides = make(map[string]*domain.CompletedRide)
	return nil
}

// SetSaveError changes the injected Save error between calls.
func (m *MockTripRepository) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveError = err
}

// CountRides returns the number of stored rides.
func (m *MockTripRepository) CountRides() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rides)
}

// ──────────────────────────────────────────────
// MOCK SETTINGS REPOSITORY
// ──────────────────────────────────────────────

// MockSettingsRepository is a mock implementation of SettingsRepository.
type MockSettingsRepository struct {
	mu       sync.Mutex
	settings map[string]domain.RateConfig

	// Counters
	GetCallCount  int32
	SaveCallCount int32

	// Error injection
	GetError  error
	SaveError error
}

// NewMockSettingsRepository creates a new mock settings repository.
func NewMockSettingsRepository() *MockSettingsRepository {
	return &MockSettingsRepository{
		settings: make(map[string]domain.RateConfig),
	}
}

func (m *MockSettingsRepository) Get(ctx context.Context, meterID string) (*domain.RateConfig, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rates, ok := m.settings[meterID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rates, nil
}

func (m *MockSettingsRepository) Save(ctx context.Context, meterID string, rates domain.RateConfig) error {
	atomic.AddInt32(&m.SaveCallCount, 1)
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[meterID] = rates
	return nil
}

// ──────────────────────────────────────────────
// MOCK CACHE STORE
// ──────────────────────────────────────────────

// MockCacheStore is a mock implementation of the settings cache and the
// checkpoint store.
type MockCacheStore struct {
	mu          sync.Mutex
	settings    map[string]domain.RateConfig
	checkpoints map[string]meter.Checkpoint

	// Counters
	SaveCheckpointCallCount  int32
	ClearCheckpointCallCount int32
	InvalidateCallCount      int32

	// Error injection
	GetSettingsError    error
	SaveCheckpointError error
	LoadCheckpointError error
}

// NewMockCacheStore creates a new mock cache store.
func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{
		settings:    make(map[string]domain.RateConfig),
		checkpoints: make(map[string]meter.Checkpoint),
	}
}

func (m *MockCacheStore) GetSettings(ctx context.Context, meterID string) (*domain.RateConfig, error) {
	if m.GetSettingsError != nil {
		return nil, m.GetSettingsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rates, ok := m.settings[meterID]
	if !ok {
		return nil, nil // Cache miss
	}
	return &rates, nil
}

func (m *MockCacheStore) SetSettings(ctx context.Context, meterID string, rates domain.RateConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[meterID] = rates
	return nil
}

func (m *MockCacheStore) InvalidateSettings(ctx context.Context, meterID string) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.settings, meterID)
	return nil
}

func (m *MockCacheStore) SaveCheckpoint(ctx context.Context, meterID string, cp meter.Checkpoint) error {
	atomic.AddInt32(&m.SaveCheckpointCallCount, 1)
	if m.SaveCheckpointError != nil {
		return m.SaveCheckpointError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[meterID] = cp
	return nil
}

func (m *MockCacheStore) LoadCheckpoint(ctx context.Context, meterID string) (*meter.Checkpoint, error) {
	if m.LoadCheckpointError != nil {
		return nil, m.LoadCheckpointError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.checkpoints[meterID]
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

func (m *MockCacheStore) ClearCheckpoint(ctx context.Context, meterID string) error {
	atomic.AddInt32(&m.ClearCheckpointCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checkpoints, meterID)
	return nil
}

// Checkpoint returns the stored checkpoint for assertions.
func (m *MockCacheStore) Checkpoint(meterID string) (meter.Checkpoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.checkpoints[meterID]
	return cp, ok
}

// CachedSettings returns the cached settings for assertions.
func (m *MockCacheStore) CachedSettings(meterID string) (domain.RateConfig, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rates, ok := m.settings[meterID]
	return rates, ok
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStore.
type MockLockStore struct {
	mu     sync.Mutex
	owners map[string]string

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		owners: make(map[string]string),
	}
}

func (m *MockLockStore) AcquireMeterLock(ctx context.Context, meterID, rideID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.owners[meterID]; held {
		return false, nil // Lock still held.
	}
	m.owners[meterID] = rideID
	return true, nil
}

func (m *MockLockStore) ReleaseMeterLock(ctx context.Context, meterID, rideID string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owners[meterID] == rideID {
		delete(m.owners, meterID)
	}
	return nil
}

// Hold makes another ride own the meter.
func (m *MockLockStore) Hold(meterID, rideID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[meterID] = rideID
}

// Owner returns the ride holding the meter (for test assertions).
func (m *MockLockStore) Owner(meterID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owners[meterID]
}

// ──────────────────────────────────────────────
// MOCK POSITION STORE
// ──────────────────────────────────────────────

// MockPositionStore is a mock implementation of PositionStore.
type MockPositionStore struct {
	mu        sync.RWMutex
	positions map[string]redis.Position

	// Counters
	UpdateCallCount int32

	// Error injection
	UpdateError error
}

// NewMockPositionStore creates a new mock position store.
func NewMockPositionStore() *MockPositionStore {
	return &MockPositionStore{
		positions: make(map[string]redis.Position),
	}
}

func (m *MockPositionStore) UpdatePosition(ctx context.Context, meterID string, lat, lon float64) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[meterID] = redis.Position{MeterID: meterID, Lat: lat, Lon: lon}
	return nil
}

func (m *MockPositionStore) LastPosition(ctx context.Context, meterID string) (*redis.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.positions[meterID]
	if !ok {
		return nil, nil
	}
	return &pos, nil
}

func (m *MockPositionStore) RemovePosition(ctx context.Context, meterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.positions, meterID)
	return nil
}

// HasPosition checks if a meter position exists.
func (m *MockPositionStore) HasPosition(meterID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.positions[meterID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK IDEMPOTENCY STORE
// ──────────────────────────────────────────────

// MockIdempotencyStore is an in-memory IdempotencyStore.
type MockIdempotencyStore struct {
	mu        sync.Mutex
	responses map[string]middleware.CachedResponse

	// Error injection
	GetError error
}

// NewMockIdempotencyStore creates a new mock idempotency store.
func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{
		responses: make(map[string]middleware.CachedResponse),
	}
}

func (m *MockIdempotencyStore) Get(ctx context.Context, key string) (*middleware.CachedResponse, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.responses[key]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *MockIdempotencyStore) Set(ctx context.Context, key string, response *middleware.CachedResponse, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[key] = *response
	return nil
}

// Count returns the number of stored responses.
func (m *MockIdempotencyStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.responses)
}

// ──────────────────────────────────────────────
// HELPERS
// ──────────────────────────────────────────────

// fakeClock is a manually advanced wall clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fix builds a well-measured fix at the current fake time.
func (c *fakeClock) fix(lat, lon float64) domain.GeoFix {
	acc := 5.0
	return domain.GeoFix{Lat: lat, Lon: lon, Accuracy: &acc, Timestamp: c.Now().UnixMilli()}
}

// newTestLogger returns a silent logger whose entries can be inspected.
func newTestLogger() (*logrus.Logger, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}
