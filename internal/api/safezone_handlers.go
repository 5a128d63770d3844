package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kinpoint/kinpoint/internal/safezone"
	"github.com/kinpoint/kinpoint/internal/validate"
)

// MaxZoneNameLength caps safe zone names.
const MaxZoneNameLength = 80

// CreateZoneRequest is the request body for creating a safe zone.
type CreateZoneRequest struct {
	Name         string  `json:"name"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	RadiusMeters float64 `json:"radius_meters"`
	NotifyEnter  *bool   `json:"notify_enter,omitempty"`
	NotifyExit   *bool   `json:"notify_exit,omitempty"`
}

// SafeZoneHandlers holds dependencies for safe zone HTTP handlers.
type SafeZoneHandlers struct {
	zones safezone.Repository
}

// NewSafeZoneHandlers creates a new SafeZoneHandlers instance.
func NewSafeZoneHandlers(zones safezone.Repository) *SafeZoneHandlers {
	return &SafeZoneHandlers{zones: zones}
}

// Create handles POST /api/v1/safe-zones. The caller becomes the owner;
// notification flags default to on.
func (h *SafeZoneHandlers) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var req CreateZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	name, err := validate.String(req.Name, validate.StringConstraints{
		TrimSpace: true,
		MaxLength: MaxZoneNameLength,
	})
	if err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "name must be 1-80 characters")
		return
	}
	if req.RadiusMeters <= 0 {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "radius_meters must be positive")
		return
	}

	zone := &safezone.Zone{
		OwnerID:      caller,
		Name:         name,
		Lat:          req.Lat,
		Lon:          req.Lon,
		RadiusMeters: req.RadiusMeters,
		Active:       true,
		NotifyEnter:  true,
		NotifyExit:   true,
	}
	if req.NotifyEnter != nil {
		zone.NotifyEnter = *req.NotifyEnter
	}
	if req.NotifyExit != nil {
		zone.NotifyExit = *req.NotifyExit
	}

	if err := h.zones.Insert(r.Context(), zone); err != nil {
		if errors.Is(err, safezone.ErrInvalidRadius) {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to create safe zone")
		return
	}

	writeJSON(w, http.StatusCreated, zone)
}

// List handles GET /api/v1/safe-zones - the caller's active zones.
func (h *SafeZoneHandlers) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	zones, err := h.zones.ActiveForOwner(r.Context(), caller)
	if err != nil {
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to load safe zones")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"zones": zones})
}

// Deactivate handles DELETE /api/v1/safe-zones/{id}. Zones are soft-deleted
// so alerts that reference them keep their context.
func (h *SafeZoneHandlers) Deactivate(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	if err := h.zones.Deactivate(r.Context(), id, caller); err != nil {
		if errors.Is(err, safezone.ErrZoneNotFound) {
			WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "Safe zone not found")
			return
		}
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to deactivate safe zone")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deactivated": true})
}
