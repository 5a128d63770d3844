package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/kinpoint/kinpoint/internal/alert"
	"github.com/kinpoint/kinpoint/internal/authz"
)

// DefaultAlertLimit caps alert listings unless the caller asks for less.
const DefaultAlertLimit = 50

// SetRetentionRequest is the request body for updating the caller's
// retention window.
type SetRetentionRequest struct {
	RetentionHours int `json:"retention_hours"`
}

// AlertHandlers holds dependencies for alert and retention HTTP handlers.
type AlertHandlers struct {
	alerts    alert.Repository
	retention alert.RetentionRepository
	resolver  *authz.Resolver
}

// NewAlertHandlers creates a new AlertHandlers instance.
func NewAlertHandlers(alerts alert.Repository, retention alert.RetentionRepository, resolver *authz.Resolver) *AlertHandlers {
	return &AlertHandlers{
		alerts:    alerts,
		retention: retention,
		resolver:  resolver,
	}
}

// List handles GET /api/v1/alerts - the caller's own alerts, newest first.
func (h *AlertHandlers) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	limit := DefaultAlertLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "limit must be a positive integer")
			return
		}
		if n < limit {
			limit = n
		}
	}

	alerts, err := h.alerts.ListBySubject(r.Context(), caller, limit)
	if err != nil {
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to load alerts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// ListForSubject handles GET /api/v1/subjects/{id}/alerts - another
// subject's alerts through the privileged chain.
func (h *AlertHandlers) ListForSubject(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	subjectID := r.PathValue("id")

	allowed, err := h.resolver.CanView(r.Context(), caller, subjectID, authz.CapabilityLocation)
	if err != nil {
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Authorization check failed")
		return
	}
	if !allowed {
		WriteError(w, r.Context(), http.StatusForbidden, ErrCodeAuthorizationDenied, "Not authorized to view this subject's alerts")
		return
	}

	alerts, err := h.alerts.ListBySubject(r.Context(), subjectID, DefaultAlertLimit)
	if err != nil {
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to load alerts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// MarkRead handles POST /api/v1/alerts/{id}/read.
func (h *AlertHandlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}
	id := r.PathValue("id")

	if err := h.alerts.MarkRead(r.Context(), id); err != nil {
		if errors.Is(err, alert.ErrAlertNotFound) {
			WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "Alert not found")
			return
		}
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to mark alert read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"read": true})
}

// GetRetention handles GET /api/v1/retention - the caller's retention
// policy, falling back to the default window.
func (h *AlertHandlers) GetRetention(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	policy, err := h.retention.GetPolicy(r.Context(), caller)
	if err != nil {
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to load retention policy")
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

// SetRetention handles PUT /api/v1/retention. The window must stay inside
// 1-720 hours.
func (h *AlertHandlers) SetRetention(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var req SetRetentionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if err := h.retention.SetPolicy(r.Context(), caller, req.RetentionHours); err != nil {
		if errors.Is(err, alert.ErrInvalidRetention) {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeInvalidRetention, err.Error())
			return
		}
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to update retention policy")
		return
	}

	policy, err := h.retention.GetPolicy(r.Context(), caller)
	if err != nil {
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to load retention policy")
		return
	}
	writeJSON(w, http.StatusOK, policy)
}
