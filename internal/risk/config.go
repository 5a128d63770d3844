package risk

import (
	"time"

	"github.com/kinpoint/kinpoint/internal/geo"
)

// Config holds every detector threshold so tests and deployments can tune
// them without touching detector code.
type Config struct {
	// Trajectory deviation.
	RecentSampleLimit         int     // samples fetched for the recent window
	MinRecentSamples          int     // below this the detector stays silent
	EnvelopeWindow            time.Duration
	TrajectoryDeviationFactor float64 // multiples of the normal range
	SpeedThresholdMps         float64 // mean recent speed above this is a finding

	// Prolonged stop.
	StopSampleLimit   int
	MinStopSamples    int
	StopMinMeters     float64 // mean consecutive movement below this is "stopped"
	StopMinMinutes    float64 // window must span at least this long
	StopUrgentMinutes float64 // composer escalates past this

	// Destination prediction.
	PredictionWindow      time.Duration
	PredictionBucketLimit int
	PredictionMaxMeters   float64
	MovingSpeedMps        float64
	ConfidenceDivisor     float64

	// Suspicious charging.
	ChargingWindow       time.Duration
	ChargingMinFrequency int
	ChargingKnownMeters  float64
	UsualHourStart       int // inclusive
	UsualHourEnd         int // inclusive
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		RecentSampleLimit:         10,
		MinRecentSamples:          3,
		EnvelopeWindow:            7 * 24 * time.Hour,
		TrajectoryDeviationFactor: 3.0,
		SpeedThresholdMps:         41.67, // 150 km/h

		StopSampleLimit:   20,
		MinStopSamples:    5,
		StopMinMeters:     50,
		StopMinMinutes:    30,
		StopUrgentMinutes: 60,

		PredictionWindow:      30 * 24 * time.Hour,
		PredictionBucketLimit: 3,
		PredictionMaxMeters:   5000,
		MovingSpeedMps:        1.0,
		ConfidenceDivisor:     10,

		ChargingWindow:       30 * 24 * time.Hour,
		ChargingMinFrequency: 3,
		ChargingKnownMeters:  100,
		UsualHourStart:       6,
		UsualHourEnd:         23,
	}
}

// DangerArea is one entry in the externally maintained hazard list.
type DangerArea struct {
	Name         string  `json:"name" koanf:"name"`
	Lat          float64 `json:"lat" koanf:"lat"`
	Lon          float64 `json:"lon" koanf:"lon"`
	RadiusMeters float64 `json:"radius_meters" koanf:"radius_meters"`
	RiskLevel    string  `json:"risk_level" koanf:"risk_level"`
}

// Center returns the area's center point.
func (a DangerArea) Center() geo.Point {
	return geo.Point{Lat: a.Lat, Lon: a.Lon}
}

// Contains reports whether p falls within the area radius.
func (a DangerArea) Contains(p geo.Point) bool {
	return geo.DistanceMeters(a.Center(), p) <= a.RadiusMeters
}
