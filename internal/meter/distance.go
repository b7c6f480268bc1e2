// Package meter implements the taxi meter core: fix filtering, distance
// integration, the pause-aware ride clock, the fare engine and the ride
// session state machine.
package meter

import (
	"math"

	"taximeter/internal/domain"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// GreatCircleMeters returns the haversine distance in meters between two
// points given in decimal degrees.
func GreatCircleMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLon := degreesToRadians(lon2 - lon1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// Accumulate returns the distance to add to the running total when next is
// accepted right after prev.
func Accumulate(prev, next domain.TrackPoint) float64 {
	return GreatCircleMeters(prev.Lat, prev.Lon, next.Lat, next.Lon)
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
