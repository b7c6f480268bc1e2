package meter

import (
	"time"

	"github.com/google/uuid"

	"taximeter/internal/domain"
)

// FixOutcome describes what the session did with a fix.
type FixOutcome string

const (
	FixAccepted FixOutcome = "accepted"
	FixRejected FixOutcome = "rejected"
	FixIgnored  FixOutcome = "ignored"
)

// FixResult is returned by Session.OnFix.
type FixResult struct {
	Outcome     FixOutcome   `json:"outcome"`
	Reason      RejectReason `json:"reason,omitempty"`
	DeltaMeters float64      `json:"delta_m"`
	MinDistance float64      `json:"min_distance_m,omitempty"`
	Moving      bool         `json:"moving"`
}

// Session is the state machine of a single ride:
// Idle -> Running -> {Paused <-> Running} -> Ended.
// A Session is not safe for concurrent use; callers serialize access.
type Session struct {
	now    func() time.Time
	loc    *time.Location
	newID  func() string
	filter FilterPolicy
	motion *MotionDetector

	id             string
	name           string
	state          domain.RideState
	startedAt      int64
	pausedAt       *int64
	totalPausedMs  int64
	points         []domain.TrackPoint
	lastSpeed      *float64
	distanceMeters float64
	discount       domain.Discount
	rates          domain.RateConfig

	completed *domain.CompletedRide
}

// Option customizes a Session.
type Option func(*Session)

// WithClock sets the wall clock used for start, pause, resume, end and snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLocation sets the time zone used for the night surcharge window.
func WithLocation(loc *time.Location) Option {
	return func(s *Session) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithFilterPolicy sets the GeoFilter policy.
func WithFilterPolicy(p FilterPolicy) Option {
	return func(s *Session) { s.filter = p }
}

// WithMotionDetection sets the motion threshold and stationary timeout.
func WithMotionDetection(thresholdMeters float64, timeout time.Duration) Option {
	return func(s *Session) {
		s.motion = NewMotionDetector(thresholdMeters, timeout.Milliseconds())
	}
}

// WithIDGenerator overrides ride ID generation.
func WithIDGenerator(f func() string) Option {
	return func(s *Session) { s.newID = f }
}

// NewSession creates an idle session.
func NewSession(opts ...Option) *Session {
	s := &Session{
		now:    time.Now,
		loc:    time.Local,
		newID:  func() string { return uuid.New().String() },
		filter: DefaultFilterPolicy(),
		motion: NewMotionDetector(5, (30 * time.Second).Milliseconds()),
		state:  domain.RideStateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the ride ID, empty before start.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() domain.RideState { return s.state }

// Rates returns the rate snapshot frozen at start.
func (s *Session) Rates() domain.RateConfig { return s.rates }

// DistanceMeters returns the accumulated distance.
func (s *Session) DistanceMeters() float64 { return s.distanceMeters }

// Points returns a copy of the accepted track.
func (s *Session) Points() []domain.TrackPoint {
	return append([]domain.TrackPoint(nil), s.points...)
}

// Start begins the ride. The rates are frozen for the rest of the ride.
func (s *Session) Start(name string, discount domain.Discount, rates domain.RateConfig) error {
	switch s.state {
	case domain.RideStateRunning, domain.RideStatePaused:
		return ErrAlreadyRunning
	case domain.RideStateEnded:
		return ErrRideEnded
	}

	s.id = s.newID()
	s.name = name
	s.discount = discount
	s.rates = rates
	s.startedAt = s.nowMs()
	s.pausedAt = nil
	s.totalPausedMs = 0
	s.points = nil
	s.lastSpeed = nil
	s.distanceMeters = 0
	s.motion.Reset()
	s.state = domain.RideStateRunning
	return nil
}

// OnFix processes one raw fix. Fixes are only recorded while running; they
// are ignored before start and while paused, and rejected after the end.
func (s *Session) OnFix(fix domain.GeoFix) (FixResult, error) {
	switch s.state {
	case domain.RideStateEnded:
		return FixResult{}, ErrRideEnded
	case domain.RideStateIdle, domain.RideStatePaused:
		return FixResult{Outcome: FixIgnored}, nil
	}

	moving := s.motion.Observe(fix)

	var prev *domain.TrackPoint
	if n := len(s.points); n > 0 {
		prev = &s.points[n-1]
	}

	v := Evaluate(prev, fix, s.filter.WithJitter(s.rates), moving)
	if !v.Accepted {
		return FixResult{
			Outcome:     FixRejected,
			Reason:      v.Reason,
			MinDistance: v.MinDistance,
			Moving:      moving,
		}, nil
	}

	pt := domain.TrackPointFromFix(fix)
	var delta float64
	if prev != nil {
		delta = Accumulate(*prev, pt)
	}

	s.points = append(s.points, pt)
	s.distanceMeters += delta
	s.lastSpeed = fix.Speed

	return FixResult{
		Outcome:     FixAccepted,
		DeltaMeters: delta,
		MinDistance: v.MinDistance,
		Moving:      moving,
	}, nil
}

// Pause freezes the ride clock.
func (s *Session) Pause() error {
	switch s.state {
	case domain.RideStateRunning:
	case domain.RideStateEnded:
		return ErrRideEnded
	default:
		return ErrNotRunning
	}

	now := s.nowMs()
	s.pausedAt = &now
	s.state = domain.RideStatePaused
	return nil
}

// Resume restarts the ride clock, excluding the paused interval for good.
func (s *Session) Resume() error {
	switch s.state {
	case domain.RideStatePaused:
	case domain.RideStateEnded:
		return ErrRideEnded
	default:
		return ErrNotPaused
	}

	s.totalPausedMs = foldPause(s.totalPausedMs, s.pausedAt, s.nowMs())
	s.pausedAt = nil
	s.state = domain.RideStateRunning
	return nil
}

// End closes the ride and returns the history record. An open pause is
// folded into the paused total first.
func (s *Session) End() (*domain.CompletedRide, error) {
	if !s.state.Active() {
		return nil, ErrNoActiveRide
	}

	now := s.nowMs()
	s.totalPausedMs = foldPause(s.totalPausedMs, s.pausedAt, now)
	s.pausedAt = nil

	duration := ElapsedActiveMs(s.startedAt, now, s.totalPausedMs, nil)
	fare := ComputeBreakdown(s.distanceMeters, float64(duration)/1000, s.rates, s.discount, s.hour(now))

	s.completed = &domain.CompletedRide{
		ID:             s.id,
		Name:           s.name,
		StartedAt:      s.startedAt,
		EndedAt:        now,
		DurationMs:     duration,
		DistanceMeters: s.distanceMeters,
		Rates:          s.rates,
		Discount:       s.discount,
		BaseFare:       fare.Raw,
		FinalFare:      fare.Final,
		Points:         s.Points(),
	}
	s.state = domain.RideStateEnded

	return s.Completed(), nil
}

// Completed returns a copy of the history record, nil until the ride ended.
func (s *Session) Completed() *domain.CompletedRide {
	if s.completed == nil {
		return nil
	}
	c := *s.completed
	c.Points = append([]domain.TrackPoint(nil), s.completed.Points...)
	return &c
}

// Snapshot computes the live view of the ride using the session clock. It
// never mutates distance or points.
func (s *Session) Snapshot() (domain.Snapshot, error) {
	switch s.state {
	case domain.RideStateIdle:
		return domain.Snapshot{}, ErrNoActiveRide
	case domain.RideStateEnded:
		c := s.completed
		return domain.Snapshot{
			RideID:         c.ID,
			Name:           c.Name,
			State:          s.state,
			StartedAt:      c.StartedAt,
			DistanceMeters: c.DistanceMeters,
			ElapsedMs:      c.DurationMs,
			LiveFare:       c.FinalFare,
			PointCount:     len(c.Points),
		}, nil
	}

	now := s.nowMs()
	elapsed := ElapsedActiveMs(s.startedAt, now, s.totalPausedMs, s.pausedAt)

	return domain.Snapshot{
		RideID:          s.id,
		Name:            s.name,
		State:           s.state,
		StartedAt:       s.startedAt,
		DistanceMeters:  s.distanceMeters,
		ElapsedMs:       elapsed,
		LiveFare:        ComputeFare(s.distanceMeters, float64(elapsed)/1000, s.rates, s.discount, s.hour(now)),
		PointCount:      len(s.points),
		InstantSpeedKmh: s.instantSpeedKmh(),
	}, nil
}

// instantSpeedKmh prefers the reported speed of the last accepted fix and
// otherwise derives it from the last two track points.
func (s *Session) instantSpeedKmh() float64 {
	if s.lastSpeed != nil {
		return *s.lastSpeed * 3.6
	}
	n := len(s.points)
	if n < 2 {
		return 0
	}
	a, b := s.points[n-2], s.points[n-1]
	dtMs := b.Timestamp - a.Timestamp
	if dtMs < 1 {
		dtMs = 1
	}
	return (Accumulate(a, b) / 1000) / (float64(dtMs) / float64(time.Hour.Milliseconds()))
}

func (s *Session) nowMs() int64 {
	return s.now().UnixMilli()
}

func (s *Session) hour(ms int64) int {
	return time.UnixMilli(ms).In(s.loc).Hour()
}
