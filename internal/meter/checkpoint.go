package meter

import "taximeter/internal/domain"

// Checkpoint is the persisted state of an active ride, enough to rebuild the
// session after a restart.
type Checkpoint struct {
	RideID         string              `json:"ride_id"`
	Name           string              `json:"name"`
	State          domain.RideState    `json:"state"`
	StartedAt      int64               `json:"started_at"`
	PausedAt       *int64              `json:"paused_at,omitempty"`
	TotalPausedMs  int64               `json:"total_paused_ms"`
	Points         []domain.TrackPoint `json:"points"`
	DistanceMeters float64             `json:"distance_m"`
	Discount       domain.Discount     `json:"discount"`
	Rates          domain.RateConfig   `json:"rates"`
}

// Checkpoint captures the active ride. ok is false when the session is not
// running or paused.
func (s *Session) Checkpoint() (cp Checkpoint, ok bool) {
	if !s.state.Active() {
		return Checkpoint{}, false
	}

	var pausedAt *int64
	if s.pausedAt != nil {
		p := *s.pausedAt
		pausedAt = &p
	}

	return Checkpoint{
		RideID:         s.id,
		Name:           s.name,
		State:          s.state,
		StartedAt:      s.startedAt,
		PausedAt:       pausedAt,
		TotalPausedMs:  s.totalPausedMs,
		Points:         s.Points(),
		DistanceMeters: s.distanceMeters,
		Discount:       s.discount,
		Rates:          s.rates,
	}, true
}

// RestoreSession rebuilds an active session from a checkpoint. Motion
// detection starts fresh.
func RestoreSession(cp Checkpoint, opts ...Option) (*Session, error) {
	if !cp.State.Active() {
		return nil, ErrNoActiveRide
	}
	if cp.State == domain.RideStatePaused && cp.PausedAt == nil {
		return nil, ErrNotPaused
	}

	s := NewSession(opts...)
	s.id = cp.RideID
	s.name = cp.Name
	s.state = cp.State
	s.startedAt = cp.StartedAt
	s.totalPausedMs = cp.TotalPausedMs
	s.points = append([]domain.TrackPoint(nil), cp.Points...)
	s.distanceMeters = cp.DistanceMeters
	s.discount = cp.Discount
	s.rates = cp.Rates

	if cp.State == domain.RideStatePaused {
		p := *cp.PausedAt
		s.pausedAt = &p
	}
	return s, nil
}
