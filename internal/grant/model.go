// Package grant provides models and repositories for the two permission
// sources: directed per-pair grants and supervisor capability grants.
// The two tables overlap but are not identical; the authorization resolver
// treats them as distinct sources and unions them.
package grant

import (
	"errors"
	"time"
)

// Common errors for grant operations.
var (
	ErrGrantNotFound = errors.New("grant not found")
)

// Grant is a directed permission: grantor allows grantee to see the listed
// capabilities. Asymmetric: A granting B implies nothing about B granting A.
// Keyed by the directed pair; re-applying upserts in place.
type Grant struct {
	GrantorID string `json:"grantor_id"`
	GranteeID string `json:"grantee_id"`

	ViewLocation bool `json:"can_view_location"`
	ViewBattery  bool `json:"can_view_battery"`
	ViewHistory  bool `json:"can_view_history"`
	SendMessages bool `json:"can_send_messages"`

	PrivacyTier string    `json:"privacy_tier,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SupervisorGrant is a supervisor-role member's explicit capability set for
// one target. Strictly additive to ordinary grants: a supervisor with no
// Grant row may still see the target through this record alone.
// Keyed by (supervisor, target).
type SupervisorGrant struct {
	SupervisorID string `json:"supervisor_id"`
	TargetID     string `json:"target_id"`

	ViewLocation  bool `json:"can_view_location"`
	ViewBattery   bool `json:"can_view_battery"`
	ViewHistory   bool `json:"can_view_history"`
	ReceiveAlerts bool `json:"can_receive_alerts"`
	ViewMessages  bool `json:"can_view_messages"`
	SendMessages  bool `json:"can_send_messages"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Profile is a named permission preset applied between two subjects as a
// grant upsert with a privacy tier label.
type Profile struct {
	Name        string
	Description string
	Tier        string

	ViewLocation bool
	ViewBattery  bool
	ViewHistory  bool
	SendMessages bool
}

// Relationship profile presets, strictest last.
var Profiles = map[string]Profile{
	"guardian_child": {
		Name:         "Guardian and child",
		Description:  "Full visibility for protecting minors",
		Tier:         "guardian_child",
		ViewLocation: true,
		ViewBattery:  true,
		ViewHistory:  true,
		SendMessages: true,
	},
	"partners": {
		Name:         "Partners",
		Description:  "Mutual trust-based sharing without history",
		Tier:         "partners",
		ViewLocation: true,
		ViewBattery:  true,
		ViewHistory:  false,
		SendMessages: false,
	},
	"elder_care": {
		Name:         "Elder care",
		Description:  "Full visibility for looking after elders",
		Tier:         "elder_care",
		ViewLocation: true,
		ViewBattery:  true,
		ViewHistory:  true,
		SendMessages: true,
	},
	"trusted_friend": {
		Name:         "Trusted friend",
		Description:  "Location only, nothing else",
		Tier:         "trusted_friend",
		ViewLocation: true,
	},
	"reassurance_only": {
		Name:        "Reassurance only",
		Description: "Safety status without exact location",
		Tier:        "reassurance_only",
	},
}

// ProfileGrant builds the directed grant a profile implies from grantor to
// grantee.
func ProfileGrant(p Profile, grantorID, granteeID string) Grant {
	return Grant{
		GrantorID:    grantorID,
		GranteeID:    granteeID,
		ViewLocation: p.ViewLocation,
		ViewBattery:  p.ViewBattery,
		ViewHistory:  p.ViewHistory,
		SendMessages: p.SendMessages,
		PrivacyTier:  p.Tier,
	}
}
