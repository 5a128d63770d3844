// Package suggest maps the findings of one analysis cycle into an ordered
// list of recommended operator actions.
package suggest

import (
	"github.com/kinpoint/kinpoint/internal/risk"
)

// Priority orders suggestions for the operator.
type Priority string

// Priorities.
const (
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Action identifies a recommended operator response.
type Action string

// Actions.
const (
	ActionCallSubject       Action = "call_subject"
	ActionAlertContacts     Action = "alert_emergency_contacts"
	ActionSendMessage       Action = "send_message"
	ActionCheckStatus       Action = "check_status"
	ActionImmediateContact  Action = "immediate_contact"
	ActionLocalServices     Action = "activate_local_services"
)

// Suggestion is one recommended action with a human-readable description.
type Suggestion struct {
	Action      Action   `json:"action"`
	Priority    Priority `json:"priority"`
	Description string   `json:"description"`
}

// UrgentStopMinutes is the elapsed-stop threshold past which a status check
// escalates to an urgent call.
const UrgentStopMinutes = 60

// Compose turns a cycle's findings into suggestions. Rules are additive and
// their order encodes tie-break; no deduplication happens across detectors,
// so simultaneous findings may produce overlapping suggestions.
func Compose(findings []risk.Finding) []Suggestion {
	var out []Suggestion

	for _, f := range findings {
		switch f.Kind {
		case risk.KindTrajectoryDeviation:
			if f.Severity == risk.SeverityHigh {
				out = append(out,
					Suggestion{
						Action:      ActionCallSubject,
						Priority:    PriorityHigh,
						Description: "Call the subject to verify the situation",
					},
					Suggestion{
						Action:      ActionAlertContacts,
						Priority:    PriorityHigh,
						Description: "Notify the emergency contacts",
					},
				)
			} else {
				out = append(out, Suggestion{
					Action:      ActionSendMessage,
					Priority:    PriorityMedium,
					Description: "Send a message asking if everything is fine",
				})
			}

		case risk.KindProlongedStop:
			out = append(out, Suggestion{
				Action:      ActionCheckStatus,
				Priority:    PriorityMedium,
				Description: "Check on the subject's status",
			})
			if f.Minutes > UrgentStopMinutes {
				out = append(out, Suggestion{
					Action:      ActionCallSubject,
					Priority:    PriorityHigh,
					Description: "Urgent contact recommended",
				})
			}

		case risk.KindDangerousArea:
			out = append(out,
				Suggestion{
					Action:      ActionImmediateContact,
					Priority:    PriorityCritical,
					Description: "Hazardous area detected, contact immediately",
				},
				Suggestion{
					Action:      ActionLocalServices,
					Priority:    PriorityHigh,
					Description: "Consider engaging local safety services",
				},
			)
		}
	}

	return out
}
