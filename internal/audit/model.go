// Package audit records who looked at whose data. Every privileged
// visibility check leaves a trail record so a subject can later see which
// observers accessed their location, history, or battery state.
package audit

import "time"

// Decision is the outcome of one visibility check.
type Decision string

// Decisions.
const (
	DecisionAllowed Decision = "allowed"
	DecisionDenied  Decision = "denied"
)

// AccessRecord is one audited visibility check.
type AccessRecord struct {
	ID         string    `json:"id"`
	ObserverID string    `json:"observer_id"`
	SubjectID  string    `json:"subject_id"`
	Capability string    `json:"capability"`
	Decision   Decision  `json:"decision"`
	RequestID  string    `json:"request_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
