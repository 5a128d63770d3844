package api

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/kinpoint/kinpoint/internal/authz"
	"github.com/kinpoint/kinpoint/internal/grant"
	"github.com/kinpoint/kinpoint/internal/membership"
)

// UpsertGrantRequest is the request body for setting a directed grant. The
// grantor is always the caller; absent flags revoke.
type UpsertGrantRequest struct {
	ViewLocation bool `json:"can_view_location"`
	ViewBattery  bool `json:"can_view_battery"`
	ViewHistory  bool `json:"can_view_history"`
	SendMessages bool `json:"can_send_messages"`
}

// ApplyProfileRequest is the request body for applying a relationship
// profile preset.
type ApplyProfileRequest struct {
	Profile string `json:"profile"`
}

// UpsertSupervisorGrantRequest is the request body for setting a
// supervisor's capability set over one target.
type UpsertSupervisorGrantRequest struct {
	SupervisorID  string `json:"supervisor_id"`
	ViewLocation  bool   `json:"can_view_location"`
	ViewBattery   bool   `json:"can_view_battery"`
	ViewHistory   bool   `json:"can_view_history"`
	ReceiveAlerts bool   `json:"can_receive_alerts"`
	ViewMessages  bool   `json:"can_view_messages"`
	SendMessages  bool   `json:"can_send_messages"`
}

// ProfileSummary describes one relationship profile preset.
type ProfileSummary struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	ViewLocation bool   `json:"can_view_location"`
	ViewBattery  bool   `json:"can_view_battery"`
	ViewHistory  bool   `json:"can_view_history"`
	SendMessages bool   `json:"can_send_messages"`
}

// GrantHandlers holds dependencies for permission grant HTTP handlers.
type GrantHandlers struct {
	grants      grant.Repository
	memberships membership.Repository
	roles       authz.RoleSource
}

// NewGrantHandlers creates a new GrantHandlers instance.
func NewGrantHandlers(grants grant.Repository, memberships membership.Repository, roles authz.RoleSource) *GrantHandlers {
	return &GrantHandlers{
		grants:      grants,
		memberships: memberships,
		roles:       roles,
	}
}

// Upsert handles PUT /api/v1/grants/{granteeID}. Re-applying replaces the
// flags in place; the directed pair is the key.
func (h *GrantHandlers) Upsert(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	granteeID := r.PathValue("granteeID")
	if granteeID == caller {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "cannot grant visibility to yourself")
		return
	}

	var req UpsertGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	g := grant.Grant{
		GrantorID:    caller,
		GranteeID:    granteeID,
		ViewLocation: req.ViewLocation,
		ViewBattery:  req.ViewBattery,
		ViewHistory:  req.ViewHistory,
		SendMessages: req.SendMessages,
	}
	if err := h.grants.UpsertGrant(r.Context(), g); err != nil {
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to store grant")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// List handles GET /api/v1/grants - every grant the caller has issued.
func (h *GrantHandlers) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	grants, err := h.grants.GrantsFrom(r.Context(), caller)
	if err != nil {
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to load grants")
		return
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].GranteeID < grants[j].GranteeID })
	writeJSON(w, http.StatusOK, map[string]any{"grants": grants})
}

// Profiles handles GET /api/v1/profiles - the available relationship
// profile presets.
func (h *GrantHandlers) Profiles(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}

	out := make([]ProfileSummary, 0, len(grant.Profiles))
	for key, p := range grant.Profiles {
		out = append(out, ProfileSummary{
			Key:          key,
			Name:         p.Name,
			Description:  p.Description,
			ViewLocation: p.ViewLocation,
			ViewBattery:  p.ViewBattery,
			ViewHistory:  p.ViewHistory,
			SendMessages: p.SendMessages,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	writeJSON(w, http.StatusOK, map[string]any{"profiles": out})
}

// ApplyProfile handles POST /api/v1/grants/{granteeID}/profile - applies a
// named preset as an idempotent grant upsert with a privacy tier label.
func (h *GrantHandlers) ApplyProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	granteeID := r.PathValue("granteeID")
	if granteeID == caller {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "cannot grant visibility to yourself")
		return
	}

	var req ApplyProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	p, ok := grant.Profiles[req.Profile]
	if !ok {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeUnknownProfile, "Unknown relationship profile: "+req.Profile)
		return
	}

	g := grant.ProfileGrant(p, caller, granteeID)
	if err := h.grants.UpsertGrant(r.Context(), g); err != nil {
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to apply profile")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// UpsertSupervisor handles PUT /api/v1/subjects/{id}/supervisor-grant.
// Only a group admin over the target, or a platform super-admin, may shape
// what a supervisor sees.
func (h *GrantHandlers) UpsertSupervisor(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	targetID := r.PathValue("id")

	var req UpsertSupervisorGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if req.SupervisorID == "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "supervisor_id is required")
		return
	}

	isSuper, err := h.roles.IsSuperAdmin(r.Context(), caller)
	if err != nil {
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Authorization check failed")
		return
	}
	if !isSuper {
		isAdmin, err := h.memberships.IsAdminOfSubject(r.Context(), caller, targetID)
		if err != nil {
			WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Authorization check failed")
			return
		}
		if !isAdmin {
			WriteError(w, r.Context(), http.StatusForbidden, ErrCodeAuthorizationDenied, "Only a group admin may set supervisor capabilities")
			return
		}
	}

	g := grant.SupervisorGrant{
		SupervisorID:  req.SupervisorID,
		TargetID:      targetID,
		ViewLocation:  req.ViewLocation,
		ViewBattery:   req.ViewBattery,
		ViewHistory:   req.ViewHistory,
		ReceiveAlerts: req.ReceiveAlerts,
		ViewMessages:  req.ViewMessages,
		SendMessages:  req.SendMessages,
	}
	if err := h.grants.UpsertSupervisorGrant(r.Context(), g); err != nil {
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to store supervisor grant")
		return
	}
	writeJSON(w, http.StatusOK, g)
}
