package domain

// GeoFix is a single raw position sample delivered by the location provider.
type GeoFix struct {
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	Accuracy  *float64 `json:"accuracy,omitempty"` // meters, nil when unknown
	Timestamp int64    `json:"timestamp"`          // epoch milliseconds
	Speed     *float64 `json:"speed,omitempty"`    // m/s, nil when not reported
}

// Valid reports whether the coordinates are inside the WGS84 range and the
// optional measurements are non-negative.
func (f GeoFix) Valid() bool {
	if f.Lat < -90 || f.Lat > 90 || f.Lon < -180 || f.Lon > 180 {
		return false
	}
	if f.Accuracy != nil && *f.Accuracy < 0 {
		return false
	}
	if f.Speed != nil && *f.Speed < 0 {
		return false
	}
	return true
}

// TrackPoint is an accepted fix retained in the ride's path.
type TrackPoint struct {
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	Timestamp int64    `json:"timestamp"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

// TrackPointFromFix converts an accepted fix into a path point.
func TrackPointFromFix(f GeoFix) TrackPoint {
	return TrackPoint{
		Lat:       f.Lat,
		Lon:       f.Lon,
		Timestamp: f.Timestamp,
		Accuracy:  f.Accuracy,
	}
}
