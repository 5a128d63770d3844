// Package location provides models and repositories for device location
// samples and the historical pattern queries the risk detectors consume.
package location

import (
	"errors"
	"time"

	"github.com/kinpoint/kinpoint/internal/geo"
)

// Common errors for location operations.
var (
	ErrSampleNotFound = errors.New("location sample not found")
)

// Sample is one device location report. Samples are immutable once created
// and append-only per subject; ordering is by RecordedAt.
type Sample struct {
	ID        string  `json:"id"`
	SubjectID string  `json:"subject_id"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`

	Accuracy *float64 `json:"accuracy,omitempty"`
	Altitude *float64 `json:"altitude,omitempty"`
	Speed    *float64 `json:"speed,omitempty"` // meters per second
	Heading  *float64 `json:"heading,omitempty"`

	BatteryLevel *int   `json:"battery_level,omitempty"` // 0-100
	Charging     bool   `json:"charging"`
	Status       string `json:"status,omitempty"`

	RecordedAt time.Time `json:"recorded_at"`
}

// Point returns the sample's coordinate pair.
func (s *Sample) Point() geo.Point {
	return geo.Point{Lat: s.Lat, Lon: s.Lon}
}

// Envelope is the statistical envelope of a subject's samples over a
// trailing window: centroid plus bounding box.
type Envelope struct {
	Count  int
	AvgLat float64
	AvgLon float64
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Centroid returns the envelope's average position.
func (e *Envelope) Centroid() geo.Point {
	return geo.Point{Lat: e.AvgLat, Lon: e.AvgLon}
}

// SpanMeters converts the larger of the lat/lon spans into meters.
// This is the "normal range" the trajectory deviation detector compares
// against.
func (e *Envelope) SpanMeters() float64 {
	latSpan := e.MaxLat - e.MinLat
	lonSpan := e.MaxLon - e.MinLon
	span := latSpan
	if span < 0 {
		span = -span
	}
	if abs := absFloat(lonSpan); abs > span {
		span = abs
	}
	return span * geo.MetersPerDegree
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// FrequencyCell is a grid cell (rounded to ~100 m) with a visit count,
// produced by the frequency bucket queries.
type FrequencyCell struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Count int     `json:"count"`
}

// Point returns the cell's grid-rounded center.
func (c FrequencyCell) Point() geo.Point {
	return geo.Point{Lat: c.Lat, Lon: c.Lon}
}
