package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"taximeter/internal/domain"
	"taximeter/internal/meter"
	"taximeter/internal/redis"
	"taximeter/internal/repository"
)

// MeterConfig tunes a MeterService.
type MeterConfig struct {
	MeterID  string
	Location *time.Location
	Filter   meter.FilterPolicy

	MotionThresholdMeters float64
	MotionTimeout         time.Duration
	MinFixInterval        time.Duration
	LockTTL               time.Duration

	// Now overrides the wall clock, mainly for tests.
	Now func() time.Time
}

// MeterStores groups the Redis-backed collaborators of a MeterService. Any of
// them may be nil.
type MeterStores struct {
	Checkpoints redis.CheckpointStore
	Locks       redis.LockStoreInterface
	Positions   redis.PositionStoreInterface
}

// MeterService owns the live ride of one meter. Every operation is
// serialized, so fixes and commands never interleave.
type MeterService struct {
	mu sync.Mutex

	cfg      MeterConfig
	settings *SettingsService
	trips    repository.TripRepository
	stores   MeterStores
	log      logrus.FieldLogger

	session  *meter.Session
	throttle *Throttle

	provider        ProviderStatus
	providerMessage string

	pending []*domain.CompletedRide
}

// NewMeterService creates a new MeterService.
func NewMeterService(
	cfg MeterConfig,
	settings *SettingsService,
	trips repository.TripRepository,
	stores MeterStores,
	log logrus.FieldLogger,
) *MeterService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MeterID == "" {
		cfg.MeterID = "default"
	}

	return &MeterService{
		cfg:      cfg,
		settings: settings,
		trips:    trips,
		stores:   stores,
		log:      log.WithField("meter_id", cfg.MeterID),
		throttle: NewThrottle(cfg.MinFixInterval),
		provider: ProviderOK,
	}
}

// StartRideRequest contains the parameters for starting a ride.
type StartRideRequest struct {
	Name     string
	Discount domain.Discount
}

// FixResponse is the outcome of one recorded fix.
type FixResponse struct {
	Result   meter.FixResult  `json:"result"`
	Snapshot *domain.Snapshot `json:"snapshot,omitempty"`
}

// EndRideResult contains the completed ride and whether it reached storage.
type EndRideResult struct {
	Ride      *domain.CompletedRide `json:"ride"`
	Persisted bool                  `json:"persisted"`
}

// MeterStatus describes the meter and its location provider.
type MeterStatus struct {
	MeterID         string           `json:"meter_id"`
	State           domain.RideState `json:"state"`
	RideID          string           `json:"ride_id,omitempty"`
	Provider        ProviderStatus   `json:"provider"`
	ProviderMessage string           `json:"provider_message,omitempty"`
	PendingRides    int              `json:"pending_rides"`
	LastPosition    *redis.Position  `json:"last_position,omitempty"`
}

// RetryResult reports the outcome of flushing the pending backlog.
type RetryResult struct {
	Saved     int `json:"saved"`
	Remaining int `json:"remaining"`
}

// StartRide begins a new ride with the current rate settings.
func (s *MeterService) StartRide(ctx context.Context, req StartRideRequest) (domain.Snapshot, error) {
	if err := req.Discount.Validate(); err != nil {
		return domain.Snapshot{}, err
	}
	if req.Discount.Type == "" {
		req.Discount.Type = domain.DiscountNone
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil && s.session.State().Active() {
		return domain.Snapshot{}, meter.ErrAlreadyRunning
	}

	rates, err := s.settings.Get(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}

	session := meter.NewSession(s.sessionOptions()...)
	if err := session.Start(req.Name, req.Discount, rates); err != nil {
		return domain.Snapshot{}, err
	}

	if s.stores.Locks != nil {
		ok, err := s.stores.Locks.AcquireMeterLock(ctx, s.cfg.MeterID, session.ID(), s.cfg.LockTTL)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("failed to acquire meter lock: %w", err)
		}
		if !ok {
			return domain.Snapshot{}, ErrMeterLocked
		}
	}

	s.session = session
	s.throttle.Reset()
	s.checkpoint(ctx)

	s.log.WithFields(logrus.Fields{
		"ride_id":  session.ID(),
		"discount": req.Discount.Type,
	}).Info("ride started")

	return session.Snapshot()
}

// RecordFix feeds one fix into the live ride. Fixes before the first start
// are ignored.
func (s *MeterService) RecordFix(ctx context.Context, fix domain.GeoFix) (FixResponse, error) {
	if !fix.Valid() {
		return FixResponse{}, ErrInvalidFix
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A delivered fix proves the provider works again.
	s.provider = ProviderOK
	s.providerMessage = ""

	if s.session == nil {
		return FixResponse{Result: meter.FixResult{Outcome: meter.FixIgnored}}, nil
	}

	if s.session.State() == domain.RideStateRunning && !s.throttle.Allow(fix.Timestamp) {
		return s.respond(meter.FixResult{Outcome: meter.FixIgnored, Reason: ReasonThrottled}), nil
	}

	res, err := s.session.OnFix(fix)
	if err != nil {
		return FixResponse{}, err
	}

	log := s.log.WithField("ride_id", s.session.ID())
	switch res.Outcome {
	case meter.FixRejected:
		fields := logrus.Fields{
			"reason":         res.Reason,
			"min_distance_m": res.MinDistance,
			"moving":         res.Moving,
		}
		if fix.Accuracy != nil {
			fields["accuracy_m"] = *fix.Accuracy
		}
		log.WithFields(fields).Debug("fix rejected")
	case meter.FixAccepted:
		if s.stores.Positions != nil {
			if err := s.stores.Positions.UpdatePosition(ctx, s.cfg.MeterID, fix.Lat, fix.Lon); err != nil {
				log.WithError(err).Warn("failed to store last position")
			}
		}
		s.checkpoint(ctx)
	}

	return s.respond(res), nil
}

// ReportProviderError records a location provider failure. The ride state
// is never changed.
func (s *MeterService) ReportProviderError(ctx context.Context, code ProviderStatus, message string) (MeterStatus, error) {
	if !code.ValidError() {
		return MeterStatus{}, ErrInvalidProviderStatus
	}

	s.mu.Lock()
	s.provider = code
	s.providerMessage = message
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"code":    code,
		"message": message,
	}).Warn("location provider error")

	return s.Status(ctx), nil
}

// PauseRide pauses the live ride.
func (s *MeterService) PauseRide(ctx context.Context) (domain.Snapshot, error) {
	return s.transition(ctx, "ride paused", (*meter.Session).Pause, meter.ErrNotRunning)
}

// ResumeRide resumes the paused ride.
func (s *MeterService) ResumeRide(ctx context.Context) (domain.Snapshot, error) {
	return s.transition(ctx, "ride resumed", (*meter.Session).Resume, meter.ErrNotPaused)
}

func (s *MeterService) transition(ctx context.Context, msg string, op func(*meter.Session) error, idleErr error) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return domain.Snapshot{}, idleErr
	}
	if err := op(s.session); err != nil {
		return domain.Snapshot{}, err
	}

	s.checkpoint(ctx)
	s.log.WithField("ride_id", s.session.ID()).Info(msg)

	return s.session.Snapshot()
}

// EndRide closes the live ride and hands it to storage. The completed ride
// is returned even when storage fails; it is then kept for RetryPending.
func (s *MeterService) EndRide(ctx context.Context) (*EndRideResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, meter.ErrNoActiveRide
	}

	ride, err := s.session.End()
	if err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{
		"ride_id":    ride.ID,
		"distance_m": ride.DistanceMeters,
		"fare":       ride.FinalFare,
	})
	log.Info("ride ended")

	s.releaseRide(ctx, ride.ID)

	s.flushPending(ctx)

	persisted := true
	if err := s.trips.Save(ctx, ride); err != nil {
		log.WithError(err).Error("failed to persist completed ride")
		s.pending = append(s.pending, ride)
		persisted = false
	}

	return &EndRideResult{Ride: ride, Persisted: persisted}, nil
}

// RetryPending retries storage of rides whose hand-off failed.
func (s *MeterService) RetryPending(ctx context.Context) (RetryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.flushPending(ctx)
	return RetryResult{Saved: saved, Remaining: len(s.pending)}, err
}

// Pending returns copies of the rides waiting for storage.
func (s *MeterService) Pending() []*domain.CompletedRide {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.CompletedRide, 0, len(s.pending))
	for _, r := range s.pending {
		c := *r
		out = append(out, &c)
	}
	return out
}

// Snapshot returns the live view of the current or last ride.
func (s *MeterService) Snapshot() (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return domain.Snapshot{}, meter.ErrNoActiveRide
	}
	return s.session.Snapshot()
}

// Status reports the meter state and provider health.
func (s *MeterService) Status(ctx context.Context) MeterStatus {
	s.mu.Lock()
	status := MeterStatus{
		MeterID:         s.cfg.MeterID,
		State:           domain.RideStateIdle,
		Provider:        s.provider,
		ProviderMessage: s.providerMessage,
		PendingRides:    len(s.pending),
	}
	if s.session != nil {
		status.State = s.session.State()
		status.RideID = s.session.ID()
	}
	s.mu.Unlock()

	if s.stores.Positions != nil {
		pos, err := s.stores.Positions.LastPosition(ctx, s.cfg.MeterID)
		if err != nil {
			s.log.WithError(err).Warn("failed to read last position")
		}
		status.LastPosition = pos
	}

	return status
}

// Recover restores an active ride from its checkpoint, typically at
// start-up. It reports whether a ride was restored.
func (s *MeterService) Recover(ctx context.Context) (bool, error) {
	if s.stores.Checkpoints == nil {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil && s.session.State().Active() {
		return false, ErrRideInProgress
	}

	cp, err := s.stores.Checkpoints.LoadCheckpoint(ctx, s.cfg.MeterID)
	if err != nil {
		return false, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if cp == nil {
		return false, nil
	}

	session, err := meter.RestoreSession(*cp, s.sessionOptions()...)
	if err != nil {
		return false, fmt.Errorf("failed to restore ride %s: %w", cp.RideID, err)
	}

	s.session = session
	s.throttle.Reset()

	s.log.WithFields(logrus.Fields{
		"ride_id": session.ID(),
		"state":   session.State(),
		"points":  len(cp.Points),
	}).Info("ride recovered from checkpoint")

	return true, nil
}

func (s *MeterService) sessionOptions() []meter.Option {
	return []meter.Option{
		meter.WithClock(s.cfg.Now),
		meter.WithLocation(s.cfg.Location),
		meter.WithFilterPolicy(s.cfg.Filter),
		meter.WithMotionDetection(s.cfg.MotionThresholdMeters, s.cfg.MotionTimeout),
	}
}

func (s *MeterService) respond(res meter.FixResult) FixResponse {
	resp := FixResponse{Result: res}
	if snap, err := s.session.Snapshot(); err == nil {
		resp.Snapshot = &snap
	}
	return resp
}

// checkpoint stores the active ride. Failures are logged; the meter keeps
// running without Redis.
func (s *MeterService) checkpoint(ctx context.Context) {
	if s.stores.Checkpoints == nil {
		return
	}
	cp, ok := s.session.Checkpoint()
	if !ok {
		return
	}
	if err := s.stores.Checkpoints.SaveCheckpoint(ctx, s.cfg.MeterID, cp); err != nil {
		s.log.WithError(err).WithField("ride_id", cp.RideID).Warn("failed to checkpoint ride")
	}
}

func (s *MeterService) releaseRide(ctx context.Context, rideID string) {
	log := s.log.WithField("ride_id", rideID)

	if s.stores.Checkpoints != nil {
		if err := s.stores.Checkpoints.ClearCheckpoint(ctx, s.cfg.MeterID); err != nil {
			log.WithError(err).Warn("failed to clear checkpoint")
		}
	}
	if s.stores.Locks != nil {
		if err := s.stores.Locks.ReleaseMeterLock(ctx, s.cfg.MeterID, rideID); err != nil {
			log.WithError(err).Warn("failed to release meter lock")
		}
	}
	if s.stores.Positions != nil {
		if err := s.stores.Positions.RemovePosition(ctx, s.cfg.MeterID); err != nil {
			log.WithError(err).Warn("failed to clear last position")
		}
	}
}

// flushPending saves queued rides in order and keeps the ones that still fail.
func (s *MeterService) flushPending(ctx context.Context) (int, error) {
	if len(s.pending) == 0 {
		return 0, nil
	}

	var (
		remaining []*domain.CompletedRide
		firstErr  error
		saved     int
	)
	for _, ride := range s.pending {
		if err := s.trips.Save(ctx, ride); err != nil {
			remaining = append(remaining, ride)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to persist ride %s: %w", ride.ID, err)
			}
			continue
		}
		saved++
	}

	s.pending = remaining
	if saved > 0 {
		s.log.WithFields(logrus.Fields{"saved": saved, "remaining": len(remaining)}).Info("pending rides persisted")
	}
	return saved, firstErr
}
