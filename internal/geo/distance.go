// Package geo provides geodesy primitives for location analysis:
// great-circle distance, bearing, and coordinate grid rounding.
package geo

import (
	"math"
	"strconv"
)

// EarthRadiusMeters is the mean Earth radius used for great-circle math.
const EarthRadiusMeters = 6371000.0

// MetersPerDegree approximates the ground distance of one degree of
// latitude. Used to convert a lat/lon span into meters.
const MetersPerDegree = 111000.0

// GridPrecision is the number of decimal places used to cluster nearby
// coordinates for frequency analysis (~100 m cells).
const GridPrecision = 3

// Point is a WGS84 coordinate pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether both components are finite numbers.
// Range checks beyond finiteness are the caller's responsibility.
func (p Point) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) &&
		!math.IsNaN(p.Lon) && !math.IsInf(p.Lon, 0)
}

// DistanceMeters returns the haversine great-circle distance between two
// points in meters. Deterministic for identical inputs and symmetric in
// its arguments.
func DistanceMeters(a, b Point) float64 {
	phi1 := radians(a.Lat)
	phi2 := radians(b.Lat)
	dPhi := radians(b.Lat - a.Lat)
	dLambda := radians(b.Lon - a.Lon)

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// BearingDegrees returns the initial bearing from a to b in degrees,
// normalized to [0, 360).
func BearingDegrees(a, b Point) float64 {
	phi1 := radians(a.Lat)
	phi2 := radians(b.Lat)
	dLambda := radians(b.Lon - a.Lon)

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)

	deg := math.Mod(degrees(math.Atan2(y, x))+360, 360)
	return deg
}

// RoundToGrid truncates a coordinate component to GridPrecision decimal
// places so that visits to the same ~100 m cell collapse to one key.
func RoundToGrid(v float64) float64 {
	scale := math.Pow(10, GridPrecision)
	return math.Round(v*scale) / scale
}

// GridKey returns a stable string key for the grid cell containing p.
// Cells are used to group historical samples by visit frequency.
func GridKey(p Point) string {
	return gridComponent(p.Lat) + "," + gridComponent(p.Lon)
}

func gridComponent(v float64) string {
	// Fixed precision keeps grid keys canonical: 0.1 and 0.100 map to the
	// same cell.
	return strconv.FormatFloat(RoundToGrid(v), 'f', GridPrecision, 64)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
