package geo

import "math"

const earthRadiusM = 6371000

// HaversineKm returns the great-circle distance between two coordinates
// in kilometers.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	return DistanceM(lat1, lng1, lat2, lng2) / 1000
}

// DistanceM returns the great-circle distance between two coordinates
// in meters.
func DistanceM(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

// InZone reports whether a point lies within radiusM meters of center.
func InZone(lat, lng, centerLat, centerLng, radiusM float64) bool {
	return DistanceM(lat, lng, centerLat, centerLng) <= radiusM
}

// ValidCoordinates reports whether latitude and longitude are in range.
func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Usable reports whether a fix with the given accuracy radius is
// precise enough to drive zone crossings and distance accrual.
func Usable(accuracyM, ceilingM float64) bool {
	return accuracyM <= ceilingM
}

// AccuracyLabel buckets a GPS accuracy radius into a quality label.
func AccuracyLabel(accuracyM float64) string {
	switch {
	case accuracyM <= 5:
		return "excellent"
	case accuracyM <= 15:
		return "good"
	case accuracyM <= 50:
		return "acceptable"
	case accuracyM <= 100:
		return "poor"
	default:
		return "unusable"
	}
}
