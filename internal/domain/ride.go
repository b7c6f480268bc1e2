package domain

// RideState represents the lifecycle state of a ride session.
type RideState string

const (
	RideStateIdle    RideState = "IDLE"
	RideStateRunning RideState = "RUNNING"
	RideStatePaused  RideState = "PAUSED"
	RideStateEnded   RideState = "ENDED"
)

// Active reports whether the ride is running or paused.
func (s RideState) Active() bool {
	return s == RideStateRunning || s == RideStatePaused
}

// CompletedRide is the history record written when a ride ends.
// Only Paid may change after creation.
type CompletedRide struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	StartedAt      int64        `json:"started_at"` // epoch milliseconds
	EndedAt        int64        `json:"ended_at"`
	DurationMs     int64        `json:"duration_ms"`
	DistanceMeters float64      `json:"distance_m"`
	Rates          RateConfig   `json:"rates"`
	Discount       Discount     `json:"discount"`
	BaseFare       float64      `json:"base_fare"` // raw fare before surcharge, minimum, discount, rounding
	FinalFare      float64      `json:"final_fare"`
	Points         []TrackPoint `json:"points"`
	Paid           bool         `json:"paid"`
}

// Snapshot is the read-only view of a ride pulled by the display layer.
type Snapshot struct {
	RideID          string    `json:"ride_id"`
	Name            string    `json:"name"`
	State           RideState `json:"state"`
	StartedAt       int64     `json:"started_at"`
	DistanceMeters  float64   `json:"distance_m"`
	ElapsedMs       int64     `json:"elapsed_ms"`
	LiveFare        float64   `json:"live_fare"`
	PointCount      int       `json:"point_count"`
	InstantSpeedKmh float64   `json:"instant_speed_kmh"`
}
