// Package geo computes great-circle distances for arrival certification.
package geo

import (
	"math"

	"piggy-appointment-api/internal/model"
)

// CertifyRadiusKm is the arrival certification radius (150 m).
const CertifyRadiusKm = 0.15

const earthRadiusKm = 6371

// Distance returns the Haversine distance between two coordinates in km,
// at full precision. Rounding is display-only; see DisplayKm.
func Distance(a, b model.Coordinate) float64 {
	dLat := rad(b.Latitude - a.Latitude)
	dLon := rad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(a.Latitude))*math.Cos(rad(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// WithinCertifyRadius decides certification eligibility at full precision.
func WithinCertifyRadius(a, b model.Coordinate) bool {
	return Distance(a, b) <= CertifyRadiusKm
}

// DisplayKm rounds a distance to two decimal places for user-facing text.
func DisplayKm(km float64) float64 {
	return math.Round(km*100) / 100
}

func rad(deg float64) float64 {
	return deg * math.Pi / 180
}
