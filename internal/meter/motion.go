package meter

import "taximeter/internal/domain"

// MotionDetector tracks whether the device is moving, based on the
// displacement between consecutive raw fixes.
type MotionDetector struct {
	thresholdMeters float64
	timeoutMs       int64

	last       *domain.GeoFix
	moving     bool
	lastMoveAt int64
}

// NewMotionDetector creates a detector that flags movement when a raw fix is
// more than thresholdMeters away from the previous one. Every fix re-decides
// the flag; timeoutMs only expires it when Moving is asked for a time with no
// newer fix.
func NewMotionDetector(thresholdMeters float64, timeoutMs int64) *MotionDetector {
	return &MotionDetector{
		thresholdMeters: thresholdMeters,
		timeoutMs:       timeoutMs,
	}
}

// Observe records a raw fix and returns the moving flag as of that fix.
func (m *MotionDetector) Observe(fix domain.GeoFix) bool {
	if m.last != nil {
		d := GreatCircleMeters(m.last.Lat, m.last.Lon, fix.Lat, fix.Lon)
		m.moving = d > m.thresholdMeters
		if m.moving {
			m.lastMoveAt = fix.Timestamp
		}
	}
	f := fix
	m.last = &f
	return m.Moving(fix.Timestamp)
}

// Moving reports whether the device counts as moving at time now (epoch ms).
func (m *MotionDetector) Moving(now int64) bool {
	if !m.moving {
		return false
	}
	return now-m.lastMoveAt < m.timeoutMs
}

// Reset forgets all observed fixes.
func (m *MotionDetector) Reset() {
	m.last = nil
	m.moving = false
	m.lastMoveAt = 0
}
