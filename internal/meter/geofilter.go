package meter

import (
	"math"

	"taximeter/internal/domain"
)

// FilterMode selects the movement threshold model.
type FilterMode string

const (
	// FilterSimple rejects displacements below a fixed jitter threshold while
	// the reported speed is near zero.
	FilterSimple FilterMode = "simple"

	// FilterAdaptive derives the threshold from the motion flag and the time
	// elapsed since the previous accepted point.
	FilterAdaptive FilterMode = "adaptive"
)

// FilterPolicy configures GeoFilter.
type FilterPolicy struct {
	Mode FilterMode

	// JitterThresholdMeters is the fixed threshold of the simple model and the
	// minimum threshold of the adaptive one.
	JitterThresholdMeters float64
	// StationarySpeedKmh is the speed below which a fix counts as standing still.
	StationarySpeedKmh float64

	// MaxAccuracyMeters is the billing-grade accuracy ceiling. Zero disables it.
	MaxAccuracyMeters float64

	MovingBaseMeters     float64
	StationaryBaseMeters float64
	TimeBonusPerSecond   float64
	TimeBonusCapSeconds  float64
	FloorMeters          float64
}

// DefaultFilterPolicy returns the adaptive policy with the stock thresholds.
func DefaultFilterPolicy() FilterPolicy {
	return FilterPolicy{
		Mode:                  FilterAdaptive,
		JitterThresholdMeters: 3,
		StationarySpeedKmh:    1,
		MaxAccuracyMeters:     30,
		MovingBaseMeters:      8,
		StationaryBaseMeters:  15,
		TimeBonusPerSecond:    0.5,
		TimeBonusCapSeconds:   10,
		FloorMeters:           3,
	}
}

// WithJitter returns a copy of the policy using the jitter threshold of the
// given rate settings.
func (p FilterPolicy) WithJitter(rates domain.RateConfig) FilterPolicy {
	p.JitterThresholdMeters = rates.JitterThresholdMeters
	return p
}

// RejectReason explains why a fix was not accepted.
type RejectReason string

const (
	RejectNone     RejectReason = ""
	RejectAccuracy RejectReason = "low_accuracy"
	RejectJitter   RejectReason = "jitter"
)

// Verdict is the detailed outcome of a filter decision.
type Verdict struct {
	Accepted       bool
	Reason         RejectReason
	DistanceMeters float64 // displacement from the previous point, 0 for the first fix
	MinDistance    float64 // threshold that was applied
}

// ShouldAccept reports whether candidate represents real movement worth
// recording after previous. previous is nil for the first fix of a ride.
func ShouldAccept(previous *domain.TrackPoint, candidate domain.GeoFix, policy FilterPolicy, moving bool) bool {
	return Evaluate(previous, candidate, policy, moving).Accepted
}

// Evaluate runs the filter and returns the full verdict.
func Evaluate(previous *domain.TrackPoint, candidate domain.GeoFix, policy FilterPolicy, moving bool) Verdict {
	if policy.MaxAccuracyMeters > 0 && candidate.Accuracy != nil && *candidate.Accuracy > policy.MaxAccuracyMeters {
		return Verdict{Reason: RejectAccuracy}
	}
	if previous == nil {
		return Verdict{Accepted: true}
	}

	d := GreatCircleMeters(previous.Lat, previous.Lon, candidate.Lat, candidate.Lon)

	if policy.Mode == FilterSimple {
		if d < policy.JitterThresholdMeters && nearlyStill(candidate.Speed, policy.StationarySpeedKmh) {
			return Verdict{Reason: RejectJitter, DistanceMeters: d, MinDistance: policy.JitterThresholdMeters}
		}
		return Verdict{Accepted: true, DistanceMeters: d, MinDistance: policy.JitterThresholdMeters}
	}

	minDistance := AdaptiveMinDistance(candidate.Timestamp-previous.Timestamp, moving, policy)
	if d > minDistance {
		return Verdict{Accepted: true, DistanceMeters: d, MinDistance: minDistance}
	}
	return Verdict{Reason: RejectJitter, DistanceMeters: d, MinDistance: minDistance}
}

// AdaptiveMinDistance returns the acceptance threshold of the adaptive model
// for a gap of elapsedMs since the previous accepted point. The threshold
// never drops below the larger of FloorMeters and JitterThresholdMeters.
func AdaptiveMinDistance(elapsedMs int64, moving bool, policy FilterPolicy) float64 {
	base := policy.StationaryBaseMeters
	if moving {
		base = policy.MovingBaseMeters
	}

	seconds := math.Max(float64(elapsedMs)/1000, 0)
	bonus := math.Min(seconds, policy.TimeBonusCapSeconds) * policy.TimeBonusPerSecond

	floor := math.Max(policy.FloorMeters, policy.JitterThresholdMeters)
	return math.Max(base-bonus, floor)
}

// nearlyStill treats a missing speed as standing still.
func nearlyStill(speed *float64, thresholdKmh float64) bool {
	if speed == nil {
		return true
	}
	return *speed*3.6 < thresholdKmh
}
