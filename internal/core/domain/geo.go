package domain

import (
	"fmt"
	"math"
)

const earthRadiusMeters = 6371000.0

type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the point lies within geographic bounds.
func (p GeoPoint) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}

// DistanceMeters returns the great-circle distance between two points,
// using the haversine formula on a spherical earth.
func DistanceMeters(a, b GeoPoint) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := radians(b.Latitude - a.Latitude)
	dLng := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// BearingDegrees returns the initial bearing from one point toward another,
// normalized to [0, 360).
func BearingDegrees(from, to GeoPoint) float64 {
	lat1 := radians(from.Latitude)
	lat2 := radians(to.Latitude)
	dLng := radians(to.Longitude - from.Longitude)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)

	return math.Mod(degrees(math.Atan2(y, x))+360, 360)
}

type Direction string

const (
	DirectionAhead  Direction = "ahead"
	DirectionBehind Direction = "behind"
)

// ClassifyDirection buckets a bearing relative to the observer's heading.
// The bucket boundary sits exactly at 90 and 270 degrees. An unknown
// heading always classifies as ahead.
func ClassifyDirection(observerHeading *float64, bearing float64) Direction {
	if observerHeading == nil {
		return DirectionAhead
	}
	rel := math.Mod(bearing-*observerHeading+360, 360)
	if rel < 90 || rel >= 270 {
		return DirectionAhead
	}
	return DirectionBehind
}

// Distance is the two-outcome result of a best-effort distance check.
// Unknown means a position was missing, not that the points are far apart.
type Distance struct {
	Meters float64
	Known  bool
}

// DistanceBetween computes the distance when both positions are present.
func DistanceBetween(a, b *GeoPoint) Distance {
	if a == nil || b == nil {
		return Distance{}
	}
	return Distance{Meters: DistanceMeters(*a, *b), Known: true}
}

// FormatDistance renders a distance for display, e.g. "850m" or "1.2km".
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%dm", int(math.Round(meters)))
	}
	return fmt.Sprintf("%.1fkm", meters/1000)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }
