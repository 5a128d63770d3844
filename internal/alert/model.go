// Package alert provides models and repositories for derived alerts and the
// per-subject retention policies that bound how long history is kept.
package alert

import (
	"errors"
	"time"
)

// Common errors for alert operations.
var (
	ErrAlertNotFound    = errors.New("alert not found")
	ErrInvalidRetention = errors.New("retention must be between 1 and 720 hours")
)

// Severity grades an alert.
type Severity string

// Severity levels, lowest to highest.
const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Type identifies what produced an alert.
type Type string

// Alert types. The first four are projections of risk findings; the rest are
// explicit triggers.
const (
	TypeTrajectoryDeviation Type = "trajectory_deviation"
	TypeProlongedStop       Type = "prolonged_stop"
	TypeDangerousArea       Type = "dangerous_area"
	TypeSuspiciousCharging  Type = "suspicious_charging"
	TypeBatteryLow          Type = "battery_low"
	TypePanic               Type = "panic"
	TypeGeofence            Type = "geofence"
)

// Alert is a persisted risk or emergency notification for one subject.
// Never mutated after creation except for the read flag.
type Alert struct {
	ID        string   `json:"id"`
	SubjectID string   `json:"subject_id"`
	Type      Type     `json:"type"`
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`

	Lat *float64 `json:"lat,omitempty"`
	Lon *float64 `json:"lon,omitempty"`

	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Retention policy bounds.
const (
	DefaultRetentionHours = 24
	MinRetentionHours     = 1
	MaxRetentionHours     = 720
)

// RetentionPolicy is a subject's history retention window in hours.
type RetentionPolicy struct {
	SubjectID      string    `json:"subject_id"`
	RetentionHours int       `json:"retention_hours"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Window returns the policy's retention duration.
func (p RetentionPolicy) Window() time.Duration {
	return time.Duration(p.RetentionHours) * time.Hour
}

// ValidRetentionHours reports whether hours is inside the allowed range.
func ValidRetentionHours(hours int) bool {
	return hours >= MinRetentionHours && hours <= MaxRetentionHours
}
