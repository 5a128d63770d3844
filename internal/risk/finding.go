// Package risk implements the five deterministic detectors that score each
// ingested location sample: trajectory deviation, prolonged stop, dangerous
// area containment, destination prediction, and suspicious charging.
//
// All detectors are pure given the current sample and historical query
// results, and degrade to "no finding" when history is insufficient; they
// never fail ingestion.
package risk

// Severity grades a finding.
type Severity string

// Severity levels, lowest to highest.
const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Kind identifies which detector produced a finding.
type Kind string

// Finding kinds.
const (
	KindTrajectoryDeviation Kind = "trajectory_deviation"
	KindProlongedStop       Kind = "prolonged_stop"
	KindDangerousArea       Kind = "dangerous_area"
	KindSuspiciousCharging  Kind = "suspicious_charging"
)

// Finding is one detector's structured assessment for a single analysis
// cycle. Findings are derived, not stored; the dispatcher projects them
// into alert records.
type Finding struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	Reason   string   `json:"reason"`

	// Detector-specific detail, zero when not applicable.
	DistanceKm float64 `json:"distance_km,omitempty"`
	SpeedKmh   float64 `json:"speed_kmh,omitempty"`
	Minutes    int     `json:"minutes,omitempty"`
	AreaName   string  `json:"area_name,omitempty"`
	RiskLevel  string  `json:"risk_level,omitempty"`
}

// Prediction is an advisory destination estimate, computed on demand and
// never persisted.
type Prediction struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Confidence float64 `json:"confidence"` // [0,1]
	ETAMinutes int     `json:"eta_minutes"`
	DistanceKm float64 `json:"distance_km"`
}

// Assessment bundles the outcome of one analysis cycle.
type Assessment struct {
	Findings   []Finding   `json:"findings"`
	Prediction *Prediction `json:"prediction,omitempty"`
}
