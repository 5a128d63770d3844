package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/kinpoint/kinpoint/internal/authz"
	"github.com/kinpoint/kinpoint/internal/dispatch"
	"github.com/kinpoint/kinpoint/internal/geo"
	"github.com/kinpoint/kinpoint/internal/location"
	"github.com/kinpoint/kinpoint/internal/membership"
)

// DefaultHistoryLimit caps history responses unless the caller asks for less.
const DefaultHistoryLimit = 100

// IngestRequest is the request body for reporting a location sample. The
// subject is always the caller; nobody reports positions for someone else.
type IngestRequest struct {
	Lat          float64  `json:"lat"`
	Lon          float64  `json:"lon"`
	Accuracy     *float64 `json:"accuracy,omitempty"`
	Altitude     *float64 `json:"altitude,omitempty"`
	Speed        *float64 `json:"speed,omitempty"`
	Heading      *float64 `json:"heading,omitempty"`
	BatteryLevel *int     `json:"battery_level,omitempty"`
	Charging     bool     `json:"charging"`
	Status       string   `json:"status,omitempty"`

	RecordedAt *time.Time `json:"recorded_at,omitempty"`
}

// CirclePosition is one co-member's latest position in the circle listing.
// Battery is withheld when the member has revoked battery visibility.
type CirclePosition struct {
	SubjectID    string    `json:"subject_id"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	Geohash      string    `json:"geohash"`
	BatteryLevel *int      `json:"battery_level,omitempty"`
	Charging     bool      `json:"charging"`
	Status       string    `json:"status,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// LocationHandlers holds dependencies for location HTTP handlers.
type LocationHandlers struct {
	dispatcher  *dispatch.Dispatcher
	samples     location.Repository
	resolver    *authz.Resolver
	memberships membership.Repository
}

// NewLocationHandlers creates a new LocationHandlers instance.
func NewLocationHandlers(dispatcher *dispatch.Dispatcher, samples location.Repository, resolver *authz.Resolver, memberships membership.Repository) *LocationHandlers {
	return &LocationHandlers{
		dispatcher:  dispatcher,
		samples:     samples,
		resolver:    resolver,
		memberships: memberships,
	}
}

// Ingest handles POST /api/v1/locations - runs the full ingestion pipeline
// for one sample reported by the caller.
func (h *LocationHandlers) Ingest(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	sample := &location.Sample{
		SubjectID:    caller,
		Lat:          req.Lat,
		Lon:          req.Lon,
		Accuracy:     req.Accuracy,
		Altitude:     req.Altitude,
		Speed:        req.Speed,
		Heading:      req.Heading,
		BatteryLevel: req.BatteryLevel,
		Charging:     req.Charging,
		Status:       req.Status,
	}
	if req.RecordedAt != nil {
		sample.RecordedAt = *req.RecordedAt
	}

	res, err := h.dispatcher.Ingest(r.Context(), sample)
	if err != nil {
		var vErr *dispatch.ValidationError
		switch {
		case errors.As(err, &vErr):
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, vErr.Error())
		case errors.Is(err, dispatch.ErrStoreUnavailable):
			WriteError(w, r.Context(), http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "Sample store unavailable")
		default:
			WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to ingest sample")
		}
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

// Latest handles GET /api/v1/subjects/{id}/location - the privileged
// latest-location lookup. Denial is reported as authorization_denied,
// distinct from a subject that simply has no samples yet.
func (h *LocationHandlers) Latest(w http.ResponseWriter, r *http.Request) {
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
		WriteError(w, r.Context(), http.StatusForbidden, ErrCodeAuthorizationDenied, "Not authorized to view this subject's location")
		return
	}

	sample, err := h.samples.Latest(r.Context(), subjectID)
	if errors.Is(err, location.ErrSampleNotFound) {
		WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "No location reported for this subject")
		return
	}
	if err != nil {
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to load location")
		return
	}

	writeJSON(w, http.StatusOK, sample)
}

// Circle handles GET /api/v1/locations - the latest positions of every
// co-member across the caller's groups. Members who revoked location
// visibility, or who have not reported yet, are silently omitted; a revoked
// battery capability strips only the battery field.
func (h *LocationHandlers) Circle(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	groups, err := h.memberships.GroupsFor(r.Context(), caller)
	if err != nil {
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to resolve groups")
		return
	}

	seen := make(map[string]bool)
	positions := make([]CirclePosition, 0)
	for _, groupID := range groups {
		members, err := h.memberships.MembersOf(r.Context(), groupID)
		if err != nil {
			WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to list group members")
			return
		}
		for _, m := range members {
			if m.SubjectID == caller || seen[m.SubjectID] {
				continue
			}
			seen[m.SubjectID] = true

			allowed, err := h.resolver.PeerAllowed(r.Context(), caller, m.SubjectID, authz.CapabilityLocation)
			if err != nil || !allowed {
				continue
			}

			sample, err := h.samples.Latest(r.Context(), m.SubjectID)
			if err != nil {
				continue
			}

			pos := CirclePosition{
				SubjectID:  m.SubjectID,
				Lat:        sample.Lat,
				Lon:        sample.Lon,
				Geohash:    geo.Geohash(geo.Point{Lat: sample.Lat, Lon: sample.Lon}, geo.GeohashPrecision),
				Charging:   sample.Charging,
				Status:     sample.Status,
				RecordedAt: sample.RecordedAt,
			}
			if batteryOK, err := h.resolver.PeerAllowed(r.Context(), caller, m.SubjectID, authz.CapabilityBattery); err == nil && batteryOK {
				pos.BatteryLevel = sample.BatteryLevel
			}
			positions = append(positions, pos)
		}
	}

	sort.Slice(positions, func(i, j int) bool {
		return positions[i].SubjectID < positions[j].SubjectID
	})
	writeJSON(w, http.StatusOK, map[string]any{"positions": positions})
}

// History handles GET /api/v1/subjects/{id}/history - recent samples for a
// subject, gated by the history capability on the privileged chain.
func (h *LocationHandlers) History(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	subjectID := r.PathValue("id")

	allowed, err := h.resolver.CanView(r.Context(), caller, subjectID, authz.CapabilityHistory)
	if err != nil {
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Authorization check failed")
		return
	}
	if !allowed {
		WriteError(w, r.Context(), http.StatusForbidden, ErrCodeAuthorizationDenied, "Not authorized to view this subject's history")
		return
	}

	limit := DefaultHistoryLimit
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

	samples, err := h.samples.Recent(r.Context(), subjectID, limit)
	if err != nil {
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to load history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"samples": samples})
}
