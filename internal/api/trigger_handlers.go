package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kinpoint/kinpoint/internal/dispatch"
	"github.com/kinpoint/kinpoint/internal/safezone"
)

// PanicRequest is the request body for the panic trigger. Coordinates are
// optional; an emergency without a fix still goes out.
type PanicRequest struct {
	Lat *float64 `json:"lat,omitempty"`
	Lon *float64 `json:"lon,omitempty"`
}

// GeofenceEventRequest is the request body for reporting a zone crossing.
type GeofenceEventRequest struct {
	ZoneID     string `json:"zone_id"`
	Transition string `json:"transition"`
}

// CameraRequestBody asks another subject to start a camera session.
type CameraRequestBody struct {
	SubjectID string `json:"subject_id"`
	Payload   string `json:"payload,omitempty"`
}

// CameraResponseBody answers a pending camera request.
type CameraResponseBody struct {
	ObserverID string `json:"observer_id"`
	Accepted   bool   `json:"accepted"`
	Payload    string `json:"payload,omitempty"`
}

// TriggerHandlers holds dependencies for explicit trigger HTTP handlers:
// panic, geofence crossings, camera negotiation.
type TriggerHandlers struct {
	dispatcher *dispatch.Dispatcher
	zones      safezone.Repository
}

// NewTriggerHandlers creates a new TriggerHandlers instance.
func NewTriggerHandlers(dispatcher *dispatch.Dispatcher, zones safezone.Repository) *TriggerHandlers {
	return &TriggerHandlers{
		dispatcher: dispatcher,
		zones:      zones,
	}
}

// Panic handles POST /api/v1/panic - a critical alert fanned out to every
// group channel of the caller.
func (h *TriggerHandlers) Panic(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var req PanicRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
			return
		}
	}

	a, err := h.dispatcher.TriggerPanic(r.Context(), caller, req.Lat, req.Lon)
	if err != nil {
		if errors.Is(err, dispatch.ErrStoreUnavailable) {
			WriteError(w, r.Context(), http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "Alert store unavailable")
			return
		}
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to trigger panic")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// Geofence handles POST /api/v1/geofence-events - records a zone crossing
// by the caller. Crossings the zone's flags disable are acknowledged
// without producing an alert.
func (h *TriggerHandlers) Geofence(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var req GeofenceEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	zone, err := h.zones.GetByID(r.Context(), req.ZoneID)
	if errors.Is(err, safezone.ErrZoneNotFound) {
		WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "Safe zone not found")
		return
	}
	if err != nil {
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to load safe zone")
		return
	}

	a, err := h.dispatcher.TriggerGeofence(r.Context(), caller, zone, dispatch.GeofenceTransition(req.Transition))
	if err != nil {
		var vErr *dispatch.ValidationError
		switch {
		case errors.As(err, &vErr):
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, vErr.Error())
		case errors.Is(err, dispatch.ErrStoreUnavailable):
			WriteError(w, r.Context(), http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "Alert store unavailable")
		default:
			WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to record crossing")
		}
		return
	}

	if a == nil {
		// Crossing acknowledged, notifications disabled for this direction.
		writeJSON(w, http.StatusOK, map[string]any{"recorded": false})
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// CameraRequest handles POST /api/v1/camera/requests. Authorization runs
// through the privileged chain; denial is surfaced as 403.
func (h *TriggerHandlers) CameraRequest(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var req CameraRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if req.SubjectID == "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "subject_id is required")
		return
	}

	if err := h.dispatcher.RequestCamera(r.Context(), caller, req.SubjectID, req.Payload); err != nil {
		if errors.Is(err, dispatch.ErrAuthorizationDenied) {
			WriteError(w, r.Context(), http.StatusForbidden, ErrCodeAuthorizationDenied, "Not authorized to request this subject's camera")
			return
		}
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to send camera request")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"requested": true})
}

// CameraResponse handles POST /api/v1/camera/responses - forwards the
// caller's accept or reject to the requesting observer.
func (h *TriggerHandlers) CameraResponse(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var req CameraResponseBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if req.ObserverID == "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "observer_id is required")
		return
	}

	if err := h.dispatcher.RespondCamera(r.Context(), caller, req.ObserverID, req.Accepted, req.Payload); err != nil {
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to send camera response")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"responded": true})
}
