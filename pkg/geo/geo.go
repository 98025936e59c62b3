// Package geo holds the great-circle math shared by recipient targeting and
// the radius queries.
package geo

import "math"

// EarthRadiusKm matches the radius Mongo's $centerSphere expects.
const EarthRadiusKm = 6378.1

const (
	MinRadiusKm = 0.1
	MaxRadiusKm = 50.0
)

// Point is a longitude/latitude pair in degrees.
type Point struct {
	Lon float64
	Lat float64
}

// Valid reports whether the point lies within the WGS84 coordinate ranges.
func (p Point) Valid() bool {
	return p.Lon >= -180 && p.Lon <= 180 && p.Lat >= -90 && p.Lat <= 90
}

// HaversineKm returns the great-circle distance between a and b in kilometres.
func HaversineKm(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := lat2 - lat1
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// WithinRadius reports whether p is no further than radiusKm from center.
func WithinRadius(center, p Point, radiusKm float64) bool {
	return HaversineKm(center, p) <= radiusKm
}

// RadiusInRange reports whether a targeting radius is inside the accepted bounds.
func RadiusInRange(radiusKm float64) bool {
	return radiusKm >= MinRadiusKm && radiusKm <= MaxRadiusKm
}

// RadiansForKm converts a distance into the angular radius used by $centerSphere.
func RadiansForKm(km float64) float64 {
	return km / EarthRadiusKm
}

// Offset returns the point reached by travelling distanceKm from origin on the given
// bearing (degrees clockwise from north).
func Offset(origin Point, distanceKm, bearingDeg float64) Point {
	delta := distanceKm / EarthRadiusKm
	theta := toRadians(bearingDeg)
	lat1 := toRadians(origin.Lat)
	lon1 := toRadians(origin.Lon)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(theta))
	lon2 := lon1 + math.Atan2(math.Sin(theta)*math.Sin(delta)*math.Cos(lat1), math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2))

	return Point{Lon: toDegrees(lon2), Lat: toDegrees(lat2)}
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }
