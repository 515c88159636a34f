package records

import (
	"fmt"
	"math"
)

// earthRadiusKM is the mean Earth radius used by HaversineKM.
const earthRadiusKM = 6371.0088

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Valid reports whether the point lies within the coordinate ranges.
func (p Point) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lon) &&
		p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// String renders the point the way it appears in the grounding context.
func (p Point) String() string {
	return fmt.Sprintf("%.4f, %.4f", p.Lat, p.Lon)
}

// HaversineKM returns the great-circle distance between a and b.
func HaversineKM(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(min(1, h)))
}

// BoundingBox returns the latitude and longitude ranges that contain every
// point within radiusKM of center. It over-approximates, so callers still
// filter by HaversineKM. Near the poles the longitude range spans the globe.
func BoundingBox(center Point, radiusKM float64) (minLat, maxLat, minLon, maxLon float64) {
	dLat := radiusKM / earthRadiusKM * 180 / math.Pi
	minLat = max(-90, center.Lat-dLat)
	maxLat = min(90, center.Lat+dLat)

	cosLat := math.Cos(center.Lat * math.Pi / 180)
	if cosLat < 1e-6 || maxLat >= 90 || minLat <= -90 {
		return minLat, maxLat, -180, 180
	}
	dLon := dLat / cosLat
	if dLon >= 180 {
		return minLat, maxLat, -180, 180
	}
	return minLat, maxLat, center.Lon - dLon, center.Lon + dLon
}
