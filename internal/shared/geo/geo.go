package geo

import "math"

// EarthRadiusM is the mean earth radius used for great-circle distances.
const EarthRadiusM = 6371000.0

// HaversineM returns the great-circle distance in meters between two points.
func HaversineM(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	if a > 1 {
		a = 1
	}
	return 2 * EarthRadiusM * math.Asin(math.Sqrt(a))
}

// HaversineKm is HaversineM in kilometers.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	return HaversineM(lat1, lng1, lat2, lng2) / 1000
}

// OffsetNorth returns the latitude reached by moving meters due north of lat.
func OffsetNorth(lat, meters float64) float64 {
	return lat + meters/EarthRadiusM*180/math.Pi
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
